package service

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Rishie123/billprocessor/model"
)

// ParseError reports model output that could not be decoded as a JSON
// object. Raw keeps the original text so the UI can show it for diagnosis.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("model output is not a JSON object: %s", e.Reason)
}

// CleanModelText strips the markdown code fence and the "json" language tag
// Gemini tends to wrap around JSON payloads.
func CleanModelText(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if rest, ok := strings.CutPrefix(s, "json"); ok {
		s = strings.TrimSpace(rest)
	}
	return s
}

// ParseRecord decodes model output into a BillRecord, preserving the key
// order of the JSON object. Values pass through as given; nothing is
// validated beyond the top level being an object. Failures carry the raw
// text back to the caller and are terminal for the request, never retried.
func ParseRecord(text string) (*model.BillRecord, error) {
	clean := CleanModelText(text)

	if !gjson.Valid(clean) {
		return nil, &ParseError{Raw: text, Reason: "malformed JSON"}
	}
	root := gjson.Parse(clean)
	if !root.IsObject() {
		return nil, &ParseError{Raw: text, Reason: "top level is not an object"}
	}

	rec := model.NewBillRecord()
	root.ForEach(func(key, value gjson.Result) bool {
		rec.Set(key.String(), value.String())
		return true
	})
	return rec, nil
}
