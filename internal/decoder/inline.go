package decoder

import "strings"

// maxInlineHeader caps how long an inline call header may stay unterminated
// before the tokenizer gives up and releases the held text downstream. A real
// header is a short function tag; anything longer is a leak, not a call.
const maxInlineHeader = 256

type inlineState int

const (
	inlineIdle inlineState = iota
	inlineInCall
)

// inlineCall is the state of the single in-flight inline call. The inline
// syntax is not index multiplexed, so at most one instance exists at a time.
type inlineCall struct {
	name     string
	index    int
	hasIndex bool
	args     strings.Builder
	emitted  bool
}

// inlineEmission is a tool call extracted from the inline syntax, ready for
// dedup admission by the sequencer.
type inlineEmission struct {
	name      string
	index     int
	hasIndex  bool
	value     any
	canonical string
}

// inlineEvent preserves the arrival interleaving of visible text and
// extracted calls within a single fed fragment. Exactly one field is set.
type inlineEvent struct {
	text string
	call *inlineEmission
}

// inlineParser recognizes the marker-delimited tool-call micro-syntax
// embedded in the text channel. It runs in front of the generic control
// filter: it consumes the call delimiters itself and only the leftover
// visible substrings flow on. Because its delimiters can be split across
// chunks, any ambiguous tail is carried instead of classified.
type inlineParser struct {
	m     Markers
	carry string
	state inlineState
	call  inlineCall
}

func newInlineParser(m Markers) inlineParser {
	return inlineParser{m: m}
}

// Feed consumes one raw text fragment and returns the ordered sequence of
// visible-text segments and extracted tool calls it produced.
func (p *inlineParser) Feed(s string) []inlineEvent {
	if s == "" && p.carry == "" {
		return nil
	}
	buf := p.carry + s
	p.carry = ""

	var events []inlineEvent
	for buf != "" {
		switch p.state {
		case inlineIdle:
			buf, events = p.scanIdle(buf, events)
		case inlineInCall:
			buf, events = p.scanInCall(buf, events)
		}
	}
	return events
}

// scanIdle looks for a call-begin marker. Text preceding it is visible; an
// incomplete header (chunk ended before the terminating delimiter) is held
// back whole, begin marker included, rather than guessed at.
func (p *inlineParser) scanIdle(buf string, events []inlineEvent) (string, []inlineEvent) {
	idx := strings.Index(buf, p.m.CallBegin)
	if idx < 0 {
		keep := overlapSuffix(buf, p.m.CallBegin)
		if vis := buf[:len(buf)-keep]; vis != "" {
			events = append(events, inlineEvent{text: vis})
		}
		p.carry = buf[len(buf)-keep:]
		return "", events
	}
	if vis := buf[:idx]; vis != "" {
		events = append(events, inlineEvent{text: vis})
	}

	rest := buf[idx+len(p.m.CallBegin):]
	ai := strings.Index(rest, p.m.ArgumentBegin)
	ei := strings.Index(rest, p.m.CallEnd)
	switch {
	case ai >= 0 && (ei < 0 || ai < ei):
		name, n, has := p.m.splitFunctionTag(rest[:ai])
		p.call = inlineCall{name: name, index: n, hasIndex: has}
		p.state = inlineInCall
		return rest[ai+len(p.m.ArgumentBegin):], events
	case ei >= 0:
		// Call closed without an argument delimiter: implicit empty args.
		name, n, has := p.m.splitFunctionTag(rest[:ei])
		c := inlineCall{name: name, index: n, hasIndex: has}
		if em, ok := finalizeInline(&c); ok {
			events = append(events, inlineEvent{call: em})
		}
		return rest[ei+len(p.m.CallEnd):], events
	default:
		if len(rest) > maxInlineHeader {
			// Header never terminated; release it downstream where the
			// control filter strips the bare markers.
			events = append(events, inlineEvent{text: buf[idx:]})
			return "", events
		}
		p.carry = buf[idx:]
		return "", events
	}
}

// scanInCall accumulates argument text until the call-end marker. A tail that
// could be a split call-end marker is carried, not appended.
func (p *inlineParser) scanInCall(buf string, events []inlineEvent) (string, []inlineEvent) {
	ei := strings.Index(buf, p.m.CallEnd)
	if ei < 0 {
		keep := overlapSuffix(buf, p.m.CallEnd)
		events = p.appendArgs(buf[:len(buf)-keep], events)
		p.carry = buf[len(buf)-keep:]
		return "", events
	}

	events = p.appendArgs(buf[:ei], events)
	if !p.call.emitted {
		// One final attempt at the authoritative end marker; an inline call
		// that still does not parse is dropped, never surfaced as an error.
		if em, ok := finalizeInline(&p.call); ok {
			events = append(events, inlineEvent{call: em})
		}
	}
	p.call = inlineCall{}
	p.state = inlineIdle
	return buf[ei+len(p.m.CallEnd):], events
}

// appendArgs adds argument text and attempts early emission: the moment the
// accumulated text parses as a JSON value the call is emitted, even though
// consumption continues until the end marker.
func (p *inlineParser) appendArgs(text string, events []inlineEvent) []inlineEvent {
	if text == "" {
		return events
	}
	p.call.args.WriteString(text)
	if p.call.emitted || p.call.name == "" {
		return events
	}
	acc := p.call.args.String()
	if strings.TrimSpace(acc) == "" {
		return events
	}
	if value, canonical, ok := parseArguments(acc); ok {
		p.call.emitted = true
		events = append(events, inlineEvent{call: &inlineEmission{
			name:      p.call.name,
			index:     p.call.index,
			hasIndex:  p.call.hasIndex,
			value:     value,
			canonical: canonical,
		}})
	}
	return events
}

// Finish ends the session for the tokenizer. An active unemitted call is
// dropped (the inline channel is best effort); an Idle carry that never grew
// into a begin marker is returned as ordinary text.
func (p *inlineParser) Finish() string {
	var vis string
	if p.state == inlineIdle {
		vis = p.carry
	}
	p.carry = ""
	p.call = inlineCall{}
	p.state = inlineIdle
	return vis
}

func (p *inlineParser) reset() {
	p.carry = ""
	p.call = inlineCall{}
	p.state = inlineIdle
}

// finalizeInline parses whatever arguments accumulated for a call whose end
// marker was reached. Empty argument text means an implicit empty object.
func finalizeInline(c *inlineCall) (*inlineEmission, bool) {
	if c.name == "" {
		return nil, false
	}
	value, canonical, ok := parseArguments(c.args.String())
	if !ok {
		return nil, false
	}
	c.emitted = true
	return &inlineEmission{
		name:      c.name,
		index:     c.index,
		hasIndex:  c.hasIndex,
		value:     value,
		canonical: canonical,
	}, true
}

// overlapSuffix returns the length of the longest proper prefix of marker
// that is also a suffix of s. That suffix is what must be carried across a
// chunk boundary because it may complete into the marker.
func overlapSuffix(s, marker string) int {
	max := len(marker) - 1
	if max > len(s) {
		max = len(s)
	}
	for k := max; k > 0; k-- {
		if s[len(s)-k:] == marker[:k] {
			return k
		}
	}
	return 0
}
