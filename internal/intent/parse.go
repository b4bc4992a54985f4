package intent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrNoJSON is returned when a reply holds no brace-delimited object.
	ErrNoJSON = errors.New("no JSON object in reply")

	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("missing required field")
)

// requiredFields must all be present for a reply to count as parsed.
var requiredFields = []string{"category", "confidence", "reasoning", "suggested_action"}

// ExtractJSON returns the substring from the first '{' to the last '}'.
func ExtractJSON(reply string) (string, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return reply[start : end+1], nil
}

// ParseResult reads a model reply into a Result. Unknown categories map to
// unclear and confidence is clamped to [0, 1].
func ParseResult(reply string) (Result, error) {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return Result{}, err
	}
	if !gjson.Valid(raw) {
		return Result{}, fmt.Errorf("invalid JSON in reply")
	}

	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return Result{}, fmt.Errorf("reply JSON is not an object")
	}
	for _, field := range requiredFields {
		if v := doc.Get(field); !v.Exists() || v.Type == gjson.Null {
			return Result{}, fmt.Errorf("%w: %s", ErrMissingField, field)
		}
	}

	res := Result{
		Category:              ParseCategory(doc.Get("category").String()),
		Confidence:            clamp01(doc.Get("confidence").Float()),
		Reasoning:             strings.TrimSpace(doc.Get("reasoning").String()),
		SuggestedAction:       strings.TrimSpace(doc.Get("suggested_action").String()),
		RequiresClarification: doc.Get("requires_clarification").Bool(),
		Source:                SourceModel,
	}

	if ents := doc.Get("extracted_entities"); ents.IsObject() {
		res.ExtractedEntities = entitiesFromJSON(ents)
	}
	for _, q := range doc.Get("clarification_questions").Array() {
		if s := strings.TrimSpace(q.String()); s != "" {
			res.ClarificationQuestions = append(res.ClarificationQuestions, s)
		}
	}
	if res.SuggestedAction == "" {
		res.SuggestedAction = suggestedActions[res.Category]
	}
	return res, nil
}

// normalizeLabel lowercases s and turns spaces and hyphens into underscores.
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, `"'.`)
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
