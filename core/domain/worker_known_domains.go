package domain

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Registry entry keys as they appear in the persisted registry.
const (
	KeyFiltererName           = "filterer_name"
	KeyResult                 = "RESULT"
	KeyLabelJustif            = "label_justif"
	KeyShippingPolicyAnalysis = "urls_shipping_policy_page_found_analysis"
	KeyShippingPolicyPageKept = "url_shipping_policy_page_kept"
)

// DefaultKeysToSave is the allow-list of entry fields written to the registry.
var DefaultKeysToSave = []string{
	KeyFiltererName,
	KeyResult,
	KeyLabelJustif,
	KeyShippingPolicyAnalysis,
	KeyShippingPolicyPageKept,
}

// RegistryEntry is what the registry remembers about one domain.
type RegistryEntry struct {
	FiltererName           string         `yaml:"filterer_name,omitempty" json:"filterer_name,omitempty"`
	Result                 Verdict        `yaml:"RESULT" json:"RESULT"`
	LabelJustif            string         `yaml:"label_justif,omitempty" json:"label_justif,omitempty"`
	ShippingPolicyAnalysis map[string]any `yaml:"urls_shipping_policy_page_found_analysis,omitempty" json:"urls_shipping_policy_page_found_analysis,omitempty"`
	ShippingPolicyPageKept string         `yaml:"url_shipping_policy_page_kept,omitempty" json:"url_shipping_policy_page_kept,omitempty"`
}

// Keep returns a copy holding only the fields named in keys.
func (e RegistryEntry) Keep(keys []string) RegistryEntry {
	var out RegistryEntry
	if slices.Contains(keys, KeyFiltererName) {
		out.FiltererName = e.FiltererName
	}
	if slices.Contains(keys, KeyResult) {
		out.Result = e.Result
	}
	if slices.Contains(keys, KeyLabelJustif) {
		out.LabelJustif = e.LabelJustif
	}
	if slices.Contains(keys, KeyShippingPolicyAnalysis) {
		out.ShippingPolicyAnalysis = e.ShippingPolicyAnalysis
	}
	if slices.Contains(keys, KeyShippingPolicyPageKept) {
		out.ShippingPolicyPageKept = e.ShippingPolicyPageKept
	}
	return out
}

// DomainBucket maps a domain to its entry.
type DomainBucket map[string]RegistryEntry

// UnmarshalYAML accepts both the mapping form and a bare list of domains,
// which older hand-edited registry files use.
func (b *DomainBucket) UnmarshalYAML(node *yaml.Node) error {
	out := DomainBucket{}
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			return fmt.Errorf("domain bucket: unexpected scalar %q", node.Value)
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			var d string
			if err := item.Decode(&d); err != nil {
				return fmt.Errorf("domain bucket: %w", err)
			}
			out[d] = RegistryEntry{}
		}
	case yaml.MappingNode:
		raw := map[string]*RegistryEntry{}
		if err := node.Decode(&raw); err != nil {
			return fmt.Errorf("domain bucket: %w", err)
		}
		for d, e := range raw {
			if e == nil {
				out[d] = RegistryEntry{}
				continue
			}
			out[d] = *e
		}
	default:
		return fmt.Errorf("domain bucket: unsupported yaml node kind %d", node.Kind)
	}
	*b = out
	return nil
}

// Buckets is the full registry state for one country.
type Buckets struct {
	Pos     DomainBucket `yaml:"domains_pos" json:"domains_pos"`
	Unknown DomainBucket `yaml:"domains_unknwn" json:"domains_unknwn"`
	Neg     DomainBucket `yaml:"domains_neg" json:"domains_neg"`
}

// NewBuckets returns empty, writable buckets.
func NewBuckets() Buckets {
	return Buckets{Pos: DomainBucket{}, Unknown: DomainBucket{}, Neg: DomainBucket{}}
}

// Normalize replaces nil buckets with empty ones.
func (b *Buckets) Normalize() {
	if b.Pos == nil {
		b.Pos = DomainBucket{}
	}
	if b.Unknown == nil {
		b.Unknown = DomainBucket{}
	}
	if b.Neg == nil {
		b.Neg = DomainBucket{}
	}
}

// Bucket returns the bucket holding domains with verdict v.
func (b *Buckets) Bucket(v Verdict) DomainBucket {
	switch v {
	case VerdictPositive:
		return b.Pos
	case VerdictNegative:
		return b.Neg
	default:
		return b.Unknown
	}
}

// Lookup searches positive, then unknown, then negative. The verdict comes
// from the bucket the domain sits in.
func (b *Buckets) Lookup(domain string) (RegistryEntry, Verdict, bool) {
	for _, v := range []Verdict{VerdictPositive, VerdictUnknown, VerdictNegative} {
		if e, ok := b.Bucket(v)[domain]; ok {
			return e, v, true
		}
	}
	return RegistryEntry{}, VerdictUnknown, false
}

// Put stores e under v and removes the domain from the other buckets.
func (b *Buckets) Put(domain string, v Verdict, e RegistryEntry) {
	b.Normalize()
	delete(b.Pos, domain)
	delete(b.Unknown, domain)
	delete(b.Neg, domain)
	b.Bucket(v)[domain] = e
}

// Len returns the number of domains across all buckets.
func (b *Buckets) Len() int {
	return len(b.Pos) + len(b.Unknown) + len(b.Neg)
}

// Clone returns a deep enough copy for independent mutation of the maps.
func (b *Buckets) Clone() Buckets {
	out := NewBuckets()
	for d, e := range b.Pos {
		out.Pos[d] = e
	}
	for d, e := range b.Unknown {
		out.Unknown[d] = e
	}
	for d, e := range b.Neg {
		out.Neg[d] = e
	}
	return out
}

// Each calls fn for every domain in the order positive, unknown, negative.
func (b *Buckets) Each(fn func(domain string, v Verdict, e RegistryEntry)) {
	for _, v := range []Verdict{VerdictPositive, VerdictUnknown, VerdictNegative} {
		for d, e := range b.Bucket(v) {
			fn(d, v, e)
		}
	}
}
