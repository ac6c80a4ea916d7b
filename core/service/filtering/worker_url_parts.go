package filtering

import (
	"net/url"
	"strings"
	"unicode"
)

// URLParts is a lower-cased url split into the pieces the heuristics look at.
type URLParts struct {
	Domain          string
	TopLevelDomain  string
	SubLevelDomains []string
	PathSegments    []string
	QueryTokens     []string
}

// ParseURL lower-cases raw and splits it. A url that does not parse yields
// empty parts rather than an error; heuristics simply find nothing in it.
func ParseURL(raw string) URLParts {
	u, err := url.Parse(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return URLParts{}
	}

	host := u.Hostname()
	parts := URLParts{
		Domain:       host,
		PathSegments: strings.Split(u.Path, "/"),
	}

	labels := strings.Split(host, ".")
	parts.TopLevelDomain = labels[len(labels)-1]
	parts.SubLevelDomains = labels[:len(labels)-1]

	// ParseQuery keeps every pair it could decode even when it reports an error
	values, _ := url.ParseQuery(u.RawQuery)
	for _, vs := range values {
		for _, v := range vs {
			parts.QueryTokens = append(parts.QueryTokens, splitNonWord(v)...)
		}
	}
	return parts
}

// DomainOf returns the lower-cased host name of raw.
func DomainOf(raw string) string {
	return ParseURL(raw).Domain
}

func splitNonWord(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}
