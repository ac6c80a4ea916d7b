package domain

import "fmt"

// Verdict says whether a page or domain is judged to ship to the target country.
type Verdict int

const (
	VerdictNegative Verdict = -1
	VerdictUnknown  Verdict = 0
	VerdictPositive Verdict = 1
)

func (v Verdict) String() string {
	switch v {
	case VerdictPositive:
		return "positive"
	case VerdictUnknown:
		return "unknown"
	case VerdictNegative:
		return "negative"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Valid reports whether v is one of the three known verdicts.
func (v Verdict) Valid() bool {
	return v == VerdictPositive || v == VerdictUnknown || v == VerdictNegative
}

// Ptr returns a pointer to a copy of v.
func (v Verdict) Ptr() *Verdict {
	return &v
}

// Filterer names. They appear in Result.FiltererName and in the cascade configuration string.
const (
	FiltererKnownDomains   = "known_domains"
	FiltererURL            = "url"
	FiltererShippingPolicy = "shipping_policy"
	FiltererUnknown        = "unknown"
)
