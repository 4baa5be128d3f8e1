package decoder

import "strings"

// maxTagBody caps the identifier body of a function tag. A run longer than
// this is consumed as-is rather than carried across chunks, which keeps the
// carry buffer bounded even on degenerate input.
const maxTagBody = 64

// controlFilter removes control markers from the visible text channel. It
// scans character by character with a rolling carry buffer, so a marker split
// at an arbitrary chunk boundary is still recognized: any buffer tail that
// could be the prefix of a marker is held back instead of emitted.
type controlFilter struct {
	markers   []string // fixed literals, longest first
	tagPrefix string
	carry     string
}

func newControlFilter(m Markers) controlFilter {
	return controlFilter{
		markers:   m.fixed(),
		tagPrefix: m.FunctionTagPrefix,
	}
}

// Feed filters one text fragment and returns the visible remainder. Complete
// markers are dropped, a possible split marker at the tail is carried.
func (f *controlFilter) Feed(s string) string {
	if s == "" {
		return ""
	}
	buf := f.carry + s
	f.carry = ""

	var out strings.Builder
	i := 0
scan:
	for i < len(buf) {
		rest := buf[i:]

		// Complete fixed marker at this position: skip it entirely.
		for _, mk := range f.markers {
			if strings.HasPrefix(rest, mk) {
				i += len(mk)
				continue scan
			}
		}

		// Function tag: fixed prefix plus a variable identifier body.
		if f.tagPrefix != "" && strings.HasPrefix(rest, f.tagPrefix) {
			j := i + len(f.tagPrefix)
			for j < len(buf) && j-i-len(f.tagPrefix) < maxTagBody && isTagBodyChar(buf[j]) {
				j++
			}
			if j == len(buf) && j-i-len(f.tagPrefix) < maxTagBody {
				// The body may continue in the next chunk.
				f.carry = buf[i:]
				break
			}
			if j == i+len(f.tagPrefix) {
				// Bare prefix with no identifier body is ordinary text.
				out.WriteString(f.tagPrefix)
				i = j
				continue
			}
			i = j
			continue
		}

		// The tail could still grow into a marker; hold it back.
		if f.couldBeMarkerPrefix(rest) {
			f.carry = rest
			break
		}

		out.WriteByte(buf[i])
		i++
	}
	return out.String()
}

// couldBeMarkerPrefix reports whether tail is a proper prefix of any marker
// or of the function-tag prefix.
func (f *controlFilter) couldBeMarkerPrefix(tail string) bool {
	for _, mk := range f.markers {
		if len(tail) < len(mk) && strings.HasPrefix(mk, tail) {
			return true
		}
	}
	return f.tagPrefix != "" && len(tail) < len(f.tagPrefix) && strings.HasPrefix(f.tagPrefix, tail)
}

// Flush releases the residual carry as literal text. The carry was never
// confirmed to be a marker, so the filter fails open and preserves it.
func (f *controlFilter) Flush() string {
	out := f.carry
	f.carry = ""
	return out
}

func (f *controlFilter) reset() {
	f.carry = ""
}
