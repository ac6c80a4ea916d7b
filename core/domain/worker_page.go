package domain

// Page is the row a filterer works on: the url, its domain, and whatever
// verdict earlier filterers already assigned.
type Page struct {
	Index        int
	URL          string
	Domain       string
	FiltererName string
	Verdict      Verdict

	LabelJustif string
	Analysis    map[string]any
	KeptURL     string
}

// Apply records a decision made by the named filterer.
func (p *Page) Apply(filterer string, d *Decision) {
	p.FiltererName = filterer
	p.Verdict = d.Verdict
	p.LabelJustif = d.LabelJustif
	p.Analysis = d.Analysis
	p.KeptURL = d.KeptURL
}

// Entry converts the page into a registry entry.
func (p *Page) Entry() RegistryEntry {
	return RegistryEntry{
		FiltererName:           p.FiltererName,
		Result:                 p.Verdict,
		LabelJustif:            p.LabelJustif,
		ShippingPolicyAnalysis: p.Analysis,
		ShippingPolicyPageKept: p.KeptURL,
	}
}

// Decision is what a filterer returns when it has an opinion about a page.
// A nil *Decision means the filterer stays silent.
type Decision struct {
	Verdict     Verdict
	LabelJustif string
	Analysis    map[string]any
	KeptURL     string
}
