package decoder

import (
	"fmt"
	"strings"
)

// structuredCall is the per-index buffer for a tool call arriving through the
// structured delta channel. id and name keep the first non-empty value seen;
// argument text accumulates across fragments.
type structuredCall struct {
	id      string
	name    string
	args    strings.Builder
	emitted bool
}

// accumulator merges index-addressed tool-call fragments. Buffers are created
// on first fragment, emitted as soon as their arguments parse, and kept
// afterwards so a backend cannot resurrect a finished call with late
// fragments.
type accumulator struct {
	calls map[int]*structuredCall
	order []int
}

func newAccumulator() accumulator {
	return accumulator{calls: make(map[int]*structuredCall)}
}

// structuredEmission is a completed structured call ready for dedup admission.
type structuredEmission struct {
	id        string
	name      string
	index     int
	value     any
	canonical string
}

// apply merges one fragment and attempts early emission. The returned
// emission is non-nil exactly when the accumulated arguments first became a
// well-formed JSON value for a buffer with a known name.
func (a *accumulator) apply(frag ToolCallFragment) *structuredEmission {
	c, ok := a.calls[frag.Index]
	if !ok {
		c = &structuredCall{}
		a.calls[frag.Index] = c
		a.order = append(a.order, frag.Index)
	}
	if c.emitted {
		// Fragments for a completed index are ignored.
		return nil
	}

	if c.id == "" && frag.ID != "" {
		c.id = frag.ID
	}
	if c.name == "" && frag.Name != "" {
		c.name = frag.Name
	}
	c.args.WriteString(frag.ArgsText)

	if c.name == "" {
		return nil
	}
	acc := c.args.String()
	if strings.TrimSpace(acc) == "" {
		return nil
	}
	value, canonical, ok := parseArguments(acc)
	if !ok {
		return nil
	}
	c.emitted = true
	return &structuredEmission{
		id:        c.id,
		name:      c.name,
		index:     frag.Index,
		value:     value,
		canonical: canonical,
	}
}

// flush finalizes every buffer that has not yet emitted, in arrival order.
// In strict mode (a genuine finish_reason of tool_calls or stop) a buffer
// that still does not parse is a protocol violation and aborts the decode;
// on the soft end-of-stream sentinel the same buffer is dropped silently.
func (a *accumulator) flush(strict bool) ([]structuredEmission, error) {
	var out []structuredEmission
	for _, idx := range a.order {
		c := a.calls[idx]
		if c.emitted {
			continue
		}
		c.emitted = true

		if c.name == "" {
			if strict {
				return out, fmt.Errorf("tool call at index %d finished without a name: %w", idx, ErrProtocolViolation)
			}
			continue
		}
		value, canonical, ok := parseArguments(c.args.String())
		if !ok {
			if strict {
				return out, fmt.Errorf("tool call %q at index %d finished with malformed arguments: %w", c.name, idx, ErrProtocolViolation)
			}
			continue
		}
		out = append(out, structuredEmission{
			id:        c.id,
			name:      c.name,
			index:     idx,
			value:     value,
			canonical: canonical,
		})
	}
	return out, nil
}

func (a *accumulator) reset() {
	a.calls = make(map[int]*structuredCall)
	a.order = nil
}
