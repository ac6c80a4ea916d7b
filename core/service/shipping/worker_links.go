// Package shipping infers whether a merchant ships to the target country by
// reading the shipping-policy page linked from a product page.
package shipping

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is an anchor found on a product page.
type Link struct {
	Href       string // absolute url
	Text       string
	Normalized string
	InFooter   bool
}

// ExtractLinks returns the anchors inside <footer> elements, or every anchor
// of the page when no footer holds one. Relative hrefs are resolved against
// https://<pageDomain>/.
func ExtractLinks(html, pageDomain string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	sel := doc.Find("footer a[href]")
	inFooter := sel.Length() > 0
	if !inFooter {
		sel = doc.Find("a[href]")
	}

	base := &url.URL{Scheme: "https", Host: pageDomain, Path: "/"}
	links := make([]Link, 0, sel.Length())
	sel.Each(func(_ int, a *goquery.Selection) {
		href, ok := resolveHref(base, a.AttrOr("href", ""))
		if !ok {
			return
		}
		links = append(links, Link{
			Href:     href,
			Text:     a.Text(),
			InFooter: inFooter,
		})
	})
	return links, nil
}

func resolveHref(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if ref.Host != "" && ref.Scheme != "" {
		// full url, possibly on another domain
		return href, true
	}
	return base.ResolveReference(ref).String(), true
}

// Candidates normalizes every link text and keeps the unique hrefs whose
// normalized text contains one of the keywords, in discovery order.
func Candidates(links []Link, n *Normalizer, keywords []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for i := range links {
		links[i].Normalized = n.Normalize(links[i].Text)
		if !containsAnySubstring(links[i].Normalized, keywords) {
			continue
		}
		if _, dup := seen[links[i].Href]; dup {
			continue
		}
		seen[links[i].Href] = struct{}{}
		out = append(out, links[i].Href)
	}
	return out
}

func containsAnySubstring(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
