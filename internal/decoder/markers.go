// Package decoder turns the raw SSE byte stream of a chat-completion endpoint
// into an ordered sequence of typed output parts: visible text, thinking text,
// and structured tool calls. It reconciles two tool-call encodings (the
// per-field "tool_calls" delta channel and an inline marker-delimited syntax
// embedded in the text channel), filters leaked control tokens, and guarantees
// at-most-once emission per logical call.
package decoder

import "strings"

// Markers holds the control-token vocabulary a backend may emit into the text
// channel, plus the terminal stream sentinel. These literals are backend
// specific, not protocol universal, so they are carried as configuration and
// threaded through every component that has to recognize them.
type Markers struct {
	// SectionBegin and SectionEnd wrap an entire tool-call section.
	SectionBegin string
	SectionEnd   string

	// CallBegin, ArgumentBegin and CallEnd delimit one inline tool call:
	//   <call-begin>name:index<argument-begin>{json}<call-end>
	CallBegin     string
	ArgumentBegin string
	CallEnd       string

	// FunctionTagPrefix is the fixed prefix of the function tag pattern.
	// The tag body is a variable identifier, e.g. "functions.search:0".
	FunctionTagPrefix string

	// DataPrefix is the event-line prefix of the transport framing.
	DataPrefix string

	// Sentinel is the terminal payload that signals soft end of stream,
	// independent of any finish_reason value.
	Sentinel string
}

// DefaultMarkers returns the marker vocabulary used by K2-style backends.
func DefaultMarkers() Markers {
	return Markers{
		SectionBegin:      "<|tool_calls_section_begin|>",
		SectionEnd:        "<|tool_calls_section_end|>",
		CallBegin:         "<|tool_call_begin|>",
		ArgumentBegin:     "<|tool_call_argument_begin|>",
		CallEnd:           "<|tool_call_end|>",
		FunctionTagPrefix: "functions.",
		DataPrefix:        "data:",
		Sentinel:          "[DONE]",
	}
}

// fixed returns the closed set of fixed-literal markers, longest first so the
// filter always consumes the longest match at a position.
func (m Markers) fixed() []string {
	out := make([]string, 0, 5)
	for _, s := range []string{m.SectionBegin, m.SectionEnd, m.CallBegin, m.ArgumentBegin, m.CallEnd} {
		if s != "" {
			out = append(out, s)
		}
	}
	// Insertion sort by descending length; the set is tiny.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && len(out[j]) > len(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// maxMarkerLen returns the length of the longest fixed marker. The filter's
// carry buffer is bounded by this value minus one.
func (m Markers) maxMarkerLen() int {
	max := 0
	for _, s := range m.fixed() {
		if len(s) > max {
			max = len(s)
		}
	}
	if len(m.FunctionTagPrefix) > max {
		max = len(m.FunctionTagPrefix)
	}
	return max
}

// isTagBodyChar reports whether c may appear in the variable identifier body
// of a function tag (tool name, optional ":index" suffix, dotted namespaces).
func isTagBodyChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '-' || c == '.' || c == ':':
		return true
	}
	return false
}

// splitFunctionTag strips the function-tag prefix from an inline call header
// and splits the remainder into a tool name and an optional declared index.
// Accepted forms: "name", "name:3", "functions.name:3".
func (m Markers) splitFunctionTag(header string) (name string, index int, hasIndex bool) {
	header = strings.TrimSpace(header)
	header = strings.TrimPrefix(header, m.FunctionTagPrefix)
	if i := strings.LastIndexByte(header, ':'); i >= 0 {
		if n, ok := parseSmallInt(header[i+1:]); ok {
			return header[:i], n, true
		}
	}
	return header, 0, false
}

// parseSmallInt parses a non-negative decimal integer without allowing signs,
// whitespace or empty input.
func parseSmallInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
		if n > 1<<20 {
			return 0, false
		}
	}
	return n, true
}
