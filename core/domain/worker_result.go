package domain

// Result is one offer url flowing through the pipeline. Every stage only adds
// fields, so the record stays flat and optional fields stay unset until the
// stage that owns them has run.
type Result struct {
	Index int    `json:"index"`
	URL   string `json:"url"`

	// Offer data carried through from the extraction stages.
	OfferRoot string `json:"offerRoot,omitempty"`
	Title     string `json:"title,omitempty"`
	Price     string `json:"price,omitempty"`

	// Country delivery
	Domain                             string         `json:"domain,omitempty"`
	FiltererName                       string         `json:"filtererName,omitempty"`
	DeliveringToCountry                *Verdict       `json:"deliveringToCountry,omitempty"`
	LabelJustif                        string         `json:"labelJustif,omitempty"`
	URLShippingPolicyPageFoundAnalysis map[string]any `json:"urlShippingPolicyPageFoundAnalysis,omitempty"`
	URLShippingPolicyPageKept          string         `json:"urlShippingPolicyPageKept,omitempty"`
}

// Verdict returns the delivery verdict, or VerdictUnknown when none was set.
func (r *Result) Verdict() Verdict {
	if r.DeliveringToCountry == nil {
		return VerdictUnknown
	}
	return *r.DeliveringToCountry
}

// Page builds the filtering view of this result.
func (r *Result) Page() *Page {
	return &Page{
		Index:        r.Index,
		URL:          r.URL,
		Domain:       r.Domain,
		FiltererName: r.FiltererName,
		Verdict:      r.Verdict(),
	}
}

// ApplyPage copies a filtered page back onto the result.
func (r *Result) ApplyPage(p *Page) {
	r.Domain = p.Domain
	r.FiltererName = p.FiltererName
	r.DeliveringToCountry = p.Verdict.Ptr()
	if p.LabelJustif != "" {
		r.LabelJustif = p.LabelJustif
	}
	if len(p.Analysis) > 0 {
		r.URLShippingPolicyPageFoundAnalysis = p.Analysis
	}
	if p.KeptURL != "" {
		r.URLShippingPolicyPageKept = p.KeptURL
	}
}
