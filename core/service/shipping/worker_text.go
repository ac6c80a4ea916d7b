package shipping

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// VisibleText returns the text of an html document, one non-empty trimmed
// line per line of text. Scripts and styles are dropped.
func VisibleText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template").Remove()

	raw := doc.Text()
	lines := make([]string, 0, 64)
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
