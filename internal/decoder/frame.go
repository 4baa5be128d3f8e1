package decoder

import "bytes"

// lineAssembler reassembles logical event lines from network-sized chunks
// that do not align with line boundaries. The trailing partial line of one
// chunk is carried and prepended to the next chunk before re-splitting.
type lineAssembler struct {
	pending []byte
}

// Feed appends one transport chunk and returns every complete line it closes,
// with line terminators stripped. The trailing partial line, if any, stays
// buffered until a later chunk or Flush completes it.
func (a *lineAssembler) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	buf := chunk
	if len(a.pending) > 0 {
		buf = append(a.pending, chunk...)
		a.pending = nil
	}

	var lines []string
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(buf[:i], "\r")))
		buf = buf[i+1:]
	}
	if len(buf) > 0 {
		// Copy so the carry does not alias the caller's chunk buffer.
		a.pending = append([]byte(nil), buf...)
	}
	return lines
}

// Flush returns the unterminated final line, if any. Some backends close the
// connection without a trailing newline after the last event.
func (a *lineAssembler) Flush() (string, bool) {
	if len(a.pending) == 0 {
		return "", false
	}
	line := string(bytes.TrimRight(a.pending, "\r"))
	a.pending = nil
	return line, true
}

// reset discards any buffered partial line.
func (a *lineAssembler) reset() {
	a.pending = nil
}
