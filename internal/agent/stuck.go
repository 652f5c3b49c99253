package agent

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"github.com/droidmind/droidpilot/api/schemas"
)

// hashTextPrefix bounds how much of the first clickable node's text feeds
// the screen hash. Enough to distinguish screens, short enough that cursor
// blinks and counters don't defeat the comparison.
const hashTextPrefix = 24

// ScreenHash derives the equality key used for stuck detection: the
// foreground application, the node count, and a prefix of the first
// clickable node's text. Used only for comparisons within one run.
func ScreenHash(s *schemas.ScreenSnapshot) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s.ApplicationID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(len(s.Nodes))))
	h.Write([]byte{0})

	text := s.FirstClickableText()
	runes := []rune(text)
	if len(runes) > hashTextPrefix {
		text = string(runes[:hashTextPrefix])
	}
	h.Write([]byte(text))
	return h.Sum64()
}

// StuckDetector breaks loops via two independent triggers: the same screen
// hash observed threshold times in a row, or the same (kind, params) action
// chosen threshold times consecutively.
type StuckDetector struct {
	threshold int
	hashes    []uint64
	lastKey   string
	repeats   int
}

// NewStuckDetector builds a detector; threshold is how many identical
// observations (or actions) in a row count as stuck.
func NewStuckDetector(threshold int) *StuckDetector {
	return &StuckDetector{threshold: threshold}
}

// RecordScreen appends a hash to the bounded history and reports whether
// the last threshold hashes are identical.
func (d *StuckDetector) RecordScreen(hash uint64) bool {
	d.hashes = append(d.hashes, hash)
	if len(d.hashes) > d.threshold {
		d.hashes = d.hashes[len(d.hashes)-d.threshold:]
	}
	if len(d.hashes) < d.threshold {
		return false
	}
	for _, h := range d.hashes {
		if h != d.hashes[0] {
			return false
		}
	}
	return true
}

// RecordAction updates the consecutive-repetition counter and reports
// whether the same action has now been chosen threshold times in a row.
func (d *StuckDetector) RecordAction(a schemas.AgentAction) bool {
	key := actionKey(a)
	if key == d.lastKey {
		d.repeats++
	} else {
		d.lastKey = key
		d.repeats = 1
	}
	return d.repeats >= d.threshold
}

// Reset clears both histories so the very next screen is evaluated fresh.
// Recovery must always call this.
func (d *StuckDetector) Reset() {
	d.hashes = d.hashes[:0]
	d.lastKey = ""
	d.repeats = 0
}

func actionKey(a schemas.AgentAction) string {
	var sb strings.Builder
	sb.WriteString(string(a.Kind))
	keys := make([]string, 0, len(a.Params))
	for k := range a.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteByte('|')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(a.Params[k])
	}
	return sb.String()
}
