package decoder

import (
	"github.com/tidwall/gjson"
)

// FinishReason classifies the finish_reason field of a delta record.
type FinishReason int

const (
	FinishNone FinishReason = iota
	FinishToolCalls
	FinishStop
	FinishOther
)

// ToolCallFragment is one index-addressed slice of a structured tool call.
// A single logical call usually arrives as several fragments: the first
// carries id and name, later ones append to the argument text.
type ToolCallFragment struct {
	Index    int
	ID       string
	Name     string
	ArgsText string
}

// Delta is the typed record decoded from one event line's payload.
type Delta struct {
	Text      string
	Thinking  string
	ToolCalls []ToolCallFragment
	Finish    FinishReason
}

// decodeEvent parses one data payload into a Delta. The bool result is false
// when the payload is not a JSON object at all; such lines are transport
// noise and the caller drops them without aborting the stream.
func decodeEvent(payload string) (Delta, bool) {
	if !gjson.Valid(payload) {
		return Delta{}, false
	}
	root := gjson.Parse(payload)
	if !root.IsObject() {
		return Delta{}, false
	}

	var d Delta
	choice := root.Get("choices.0")
	delta := choice.Get("delta")

	d.Text = delta.Get("content").String()

	// Thinking may surface at three levels depending on the backend:
	// delta.thinking, choice.thinking, or mirrored at the top level. Some
	// OpenAI-compatible servers call it reasoning_content instead.
	for _, r := range []gjson.Result{
		delta.Get("thinking"),
		delta.Get("reasoning_content"),
		choice.Get("thinking"),
		root.Get("thinking"),
	} {
		if r.Type == gjson.String && r.Str != "" {
			d.Thinking = r.Str
			break
		}
	}

	delta.Get("tool_calls").ForEach(func(_, tc gjson.Result) bool {
		frag := ToolCallFragment{
			Index:    int(tc.Get("index").Int()),
			ID:       tc.Get("id").String(),
			Name:     tc.Get("function.name").String(),
			ArgsText: tc.Get("function.arguments").String(),
		}
		d.ToolCalls = append(d.ToolCalls, frag)
		return true
	})

	switch choice.Get("finish_reason").String() {
	case "":
		d.Finish = FinishNone
	case "tool_calls":
		d.Finish = FinishToolCalls
	case "stop":
		d.Finish = FinishStop
	default:
		d.Finish = FinishOther
	}
	return d, true
}
