package validator

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// fencedObject matches a JSON object wrapped in a Markdown code block.
var fencedObject = regexp.MustCompile("(?s)\x60\x60\x60(?:json|JSON)?\\s*(\\{.*\\})\\s*\x60\x60\x60")

const maxSnippet = 200

// DecodeResponse parses the model's reply into an untyped tree for Validate.
// Code fences and prose around a single object are tolerated; anything that
// still fails to parse is reported on field "$".
func DecodeResponse(text string) (any, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil, fail("$", "model returned an empty response", nil)
	}

	if m := fencedObject.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	} else if !strings.HasPrefix(raw, "{") {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start != -1 && end > start {
			raw = raw[start : end+1]
		}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fail("$", "response is not valid JSON: "+err.Error(), snippet(raw))
	}
	if dec.More() {
		return nil, fail("$", "response must contain a single JSON object", snippet(raw))
	}
	return out, nil
}

func snippet(s string) string {
	if len(s) <= maxSnippet {
		return s
	}
	return s[:maxSnippet] + "..."
}
