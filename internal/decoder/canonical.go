package decoder

import (
	"bytes"
	"encoding/json"
	"strings"
)

// parseArguments decodes accumulated argument text into a structured value
// and its canonical string form. encoding/json marshals map keys in sorted
// order and json.Number preserves the numeric source text, so the canonical
// string is stable across fragmentations of the same logical payload.
func parseArguments(raw string) (value any, canonical string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, "{}", true
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, "", false
	}
	// Trailing garbage after the first JSON value means the text is not a
	// single well-formed value.
	if dec.More() {
		return nil, "", false
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, "", false
	}
	return v, strings.TrimRight(buf.String(), "\n"), true
}
