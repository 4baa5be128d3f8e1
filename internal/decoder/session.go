package decoder

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrProtocolViolation marks a structured tool call whose accumulated
// arguments never became valid JSON at a genuine finish_reason of tool_calls
// or stop. The caller's contract (a tool call has valid arguments) cannot be
// honored, so the whole decode fails.
var ErrProtocolViolation = errors.New("backend violated the tool-call streaming contract")

// errSessionReused guards the single-use invariant: a Session owns the
// mutable state of exactly one request/response cycle.
var errSessionReused = errors.New("decoder: session cannot be reused for a second decode")

// PartKind identifies one of the three output part kinds.
type PartKind string

const (
	PartText     PartKind = "text"
	PartThinking PartKind = "thinking"
	PartToolCall PartKind = "tool_call"
)

// ToolCall is an emitted tool invocation. Arguments is the parsed structured
// value, never a raw string.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

// Part is one ordered output event consumed by the host chat client.
type Part struct {
	Kind     PartKind  `json:"type"`
	Text     string    `json:"text,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
}

// EmitFunc receives parts in emission order. A non-nil error stops the
// decode; parts already delivered are not withdrawn.
type EmitFunc func(Part) error

// Session drives the full decode pipeline for one request: line assembly,
// event decoding, inline tool-call tokenizing, control-token filtering,
// structured accumulation, and deduplicated emission. All mutable state lives
// here; nothing survives the session.
type Session struct {
	markers Markers
	emit    EmitFunc

	lines  lineAssembler
	filter controlFilter
	inline inlineParser
	acc    accumulator
	ledger dedupLedger

	finish  FinishReason
	ended   bool
	used    bool
	dropped int

	newID func() string
}

// NewSession creates the decode state for a single request/response cycle.
func NewSession(m Markers, emit EmitFunc) *Session {
	return &Session{
		markers: m,
		emit:    emit,
		filter:  newControlFilter(m),
		inline:  newInlineParser(m),
		acc:     newAccumulator(),
		ledger:  newDedupLedger(),
		newID:   func() string { return "call_" + uuid.New().String() },
	}
}

// FinishReason returns the last finish_reason observed on the stream.
func (s *Session) FinishReason() FinishReason { return s.finish }

// DroppedLines returns how many malformed event lines were discarded as
// transport noise.
func (s *Session) DroppedLines() int { return s.dropped }

// Decode pulls transport chunks from r until the stream ends, decoding each
// chunk fully before the next read. Cancellation is observed before every
// read: the loop stops issuing reads and returns, discarding buffered but
// unflushed tool calls. All session buffers are cleared before Decode
// returns, on every path.
func (s *Session) Decode(ctx context.Context, r io.Reader) error {
	if s.used {
		return errSessionReused
	}
	s.used = true
	defer s.clear()

	buf := make([]byte, 4*1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			done, cerr := s.consume(buf[:n])
			if cerr != nil {
				return cerr
			}
			if done {
				return nil
			}
		}
		if err == io.EOF {
			return s.finishEOF()
		}
		if err != nil {
			return err
		}
	}
}

// consume processes one transport chunk. done is true once the terminal
// sentinel has been handled; any trailing data after it is ignored.
func (s *Session) consume(chunk []byte) (done bool, err error) {
	for _, line := range s.lines.Feed(chunk) {
		done, err = s.handleLine(line)
		if done || err != nil {
			return done, err
		}
	}
	return false, nil
}

// handleLine classifies one logical line: data payload, terminal sentinel, or
// transport chatter (comments, keep-alives) which is discarded without error.
func (s *Session) handleLine(line string) (done bool, err error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false, nil
	}
	if trimmed == s.markers.Sentinel {
		return true, s.softEnd()
	}
	if !strings.HasPrefix(trimmed, s.markers.DataPrefix) {
		return false, nil
	}
	payload := strings.TrimSpace(trimmed[len(s.markers.DataPrefix):])
	if payload == s.markers.Sentinel {
		return true, s.softEnd()
	}
	if payload == "" {
		return false, nil
	}

	delta, ok := decodeEvent(payload)
	if !ok {
		// Transient malformed lines are expected noise on this transport.
		s.dropped++
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			logrus.WithField("payload", truncateForLog(payload)).Debug("decoder: dropped malformed event line")
		}
		return false, nil
	}
	return false, s.applyDelta(delta)
}

// applyDelta routes one typed delta through the pipeline in arrival order:
// thinking verbatim, text through the inline tokenizer and control filter,
// tool-call fragments through the accumulator, then any finish handling.
func (s *Session) applyDelta(d Delta) error {
	if d.Thinking != "" {
		if err := s.emit(Part{Kind: PartThinking, Text: d.Thinking}); err != nil {
			return err
		}
	}

	if d.Text != "" {
		for _, ev := range s.inline.Feed(d.Text) {
			if ev.call != nil {
				if err := s.emitInline(ev.call); err != nil {
					return err
				}
				continue
			}
			if vis := s.filter.Feed(ev.text); vis != "" {
				if err := s.emit(Part{Kind: PartText, Text: vis}); err != nil {
					return err
				}
			}
		}
	}

	for _, frag := range d.ToolCalls {
		if em := s.acc.apply(frag); em != nil {
			if err := s.emitStructured(em); err != nil {
				return err
			}
		}
	}

	if d.Finish != FinishNone {
		s.finish = d.Finish
	}
	if d.Finish == FinishToolCalls || d.Finish == FinishStop {
		emissions, flushErr := s.acc.flush(true)
		for i := range emissions {
			if err := s.emitStructured(&emissions[i]); err != nil {
				return err
			}
		}
		if flushErr != nil {
			return flushErr
		}
	}
	return nil
}

// softEnd handles the terminal sentinel (or EOF without one): residual inline
// and filter carries are released as literal text, remaining structured
// buffers are flushed best-effort with unparseable ones dropped, not erred.
func (s *Session) softEnd() error {
	if s.ended {
		return nil
	}
	s.ended = true

	if vis := s.inline.Finish(); vis != "" {
		if out := s.filter.Feed(vis); out != "" {
			if err := s.emit(Part{Kind: PartText, Text: out}); err != nil {
				return err
			}
		}
	}
	if tail := s.filter.Flush(); tail != "" {
		if err := s.emit(Part{Kind: PartText, Text: tail}); err != nil {
			return err
		}
	}

	emissions, _ := s.acc.flush(false)
	for i := range emissions {
		if err := s.emitStructured(&emissions[i]); err != nil {
			return err
		}
	}
	return nil
}

// finishEOF completes a stream that closed without a sentinel. A final
// unterminated line is still processed; some backends omit the trailing
// newline on their last event.
func (s *Session) finishEOF() error {
	if s.ended {
		return nil
	}
	if line, ok := s.lines.Flush(); ok {
		done, err := s.handleLine(line)
		if err != nil || done {
			return err
		}
	}
	return s.softEnd()
}

// emitStructured admits a structured-channel emission through the dedup
// ledger and delivers it. Structured calls always carry a stream index.
func (s *Session) emitStructured(em *structuredEmission) error {
	if !s.ledger.admit(em.name, em.index, true, em.canonical) {
		logrus.WithFields(logrus.Fields{"tool": em.name, "index": em.index}).Debug("decoder: suppressed duplicate tool call")
		return nil
	}
	id := em.id
	if id == "" {
		id = s.newID()
	}
	return s.emit(Part{Kind: PartToolCall, ToolCall: &ToolCall{
		ID:        id,
		Name:      em.name,
		Arguments: em.value,
	}})
}

// emitInline admits an inline-syntax emission. The inline encoding carries no
// call id, so one is synthesized.
func (s *Session) emitInline(em *inlineEmission) error {
	if !s.ledger.admit(em.name, em.index, em.hasIndex, em.canonical) {
		logrus.WithField("tool", em.name).Debug("decoder: suppressed duplicate inline tool call")
		return nil
	}
	return s.emit(Part{Kind: PartToolCall, ToolCall: &ToolCall{
		ID:        s.newID(),
		Name:      em.name,
		Arguments: em.value,
	}})
}

// clear deterministically drops every buffer owned by the session.
func (s *Session) clear() {
	s.lines.reset()
	s.filter.reset()
	s.inline.reset()
	s.acc.reset()
	s.ledger.reset()
}

func truncateForLog(s string) string {
	if len(s) > 120 {
		return s[:120]
	}
	return s
}
