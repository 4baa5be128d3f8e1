package decoder

import "strconv"

// dedupLedger is the append-only record of emitted tool-call identities for
// one session. A call is identified by (name, index) when a stream index is
// known and by (name, canonical argument JSON) otherwise; both keys are
// registered on admission so the same logical call arriving through both
// encodings is still emitted at most once.
type dedupLedger struct {
	byArgs  map[string]struct{}
	byIndex map[string]struct{}
}

func newDedupLedger() dedupLedger {
	return dedupLedger{
		byArgs:  make(map[string]struct{}),
		byIndex: make(map[string]struct{}),
	}
}

// admit reports whether the call identified by the given keys has not been
// emitted before, and registers it permanently for the session when admitted.
func (l *dedupLedger) admit(name string, index int, hasIndex bool, canonical string) bool {
	argsKey := name + "\x00" + canonical
	if _, dup := l.byArgs[argsKey]; dup {
		return false
	}
	var indexKey string
	if hasIndex {
		indexKey = name + "\x00" + strconv.Itoa(index)
		if _, dup := l.byIndex[indexKey]; dup {
			return false
		}
	}

	l.byArgs[argsKey] = struct{}{}
	if hasIndex {
		l.byIndex[indexKey] = struct{}{}
	}
	return true
}

func (l *dedupLedger) reset() {
	l.byArgs = make(map[string]struct{})
	l.byIndex = make(map[string]struct{})
}
