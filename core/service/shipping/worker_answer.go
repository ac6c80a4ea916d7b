package shipping

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Answer values the model may give.
const (
	AnswerYes      = "yes"
	AnswerNo       = "no"
	AnswerNotClear = "not_clear"
)

// Answer is the model's structured reply about one shipping-policy page.
type Answer struct {
	Value         string
	Justification string
	Raw           map[string]any
}

// AnswerKey and JustificationKey are the JSON keys the prompt asks for.
func AnswerKey(country string) string {
	return fmt.Sprintf("is_shipping_%s_answer", strings.ToLower(country))
}

func JustificationKey(country string) string {
	return fmt.Sprintf("is_shipping_%s_justification", strings.ToLower(country))
}

// ParseAnswer decodes the model reply. Code fences and backslashes are
// stripped first. Only undecodable content is an error; missing keys leave
// Value empty.
func ParseAnswer(content, country string) (*Answer, error) {
	cleaned := cleanAnswer(content)

	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode llm answer: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("llm answer is not an object: %q", cleaned)
	}

	a := &Answer{Raw: raw}
	a.Value, _ = raw[AnswerKey(country)].(string)
	a.Justification, _ = raw[JustificationKey(country)].(string)
	a.Value = strings.ToLower(strings.TrimSpace(a.Value))
	return a, nil
}

func cleanAnswer(content string) string {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.ReplaceAll(s, `\`, "")
	return strings.TrimSpace(s)
}
