package session

import "achk/internal/scan"

// ringLog is the bounded ordered result log. Once capacity is reached the
// oldest record is evicted on every append.
type ringLog struct {
	capacity int
	recs     []scan.Record
}

func newRingLog(capacity int) *ringLog {
	if capacity < 1 {
		capacity = 1
	}
	return &ringLog{capacity: capacity}
}

func (l *ringLog) Append(r scan.Record) {
	if len(l.recs) == l.capacity {
		copy(l.recs, l.recs[1:])
		l.recs[len(l.recs)-1] = r
		return
	}
	l.recs = append(l.recs, r)
}

func (l *ringLog) Len() int { return len(l.recs) }

func (l *ringLog) Last() (scan.Record, bool) {
	if len(l.recs) == 0 {
		return scan.Record{}, false
	}
	return l.recs[len(l.recs)-1], true
}

func (l *ringLog) PopLast() (scan.Record, bool) {
	if len(l.recs) == 0 {
		return scan.Record{}, false
	}
	last := l.recs[len(l.recs)-1]
	l.recs = l.recs[:len(l.recs)-1]
	return last, true
}

func (l *ringLog) Clear() { l.recs = l.recs[:0] }

// Records returns a copy of the stored records, oldest first.
func (l *ringLog) Records() []scan.Record {
	return append([]scan.Record(nil), l.recs...)
}

// Texts returns just the line texts, oldest first.
func (l *ringLog) Texts() []string {
	out := make([]string, len(l.recs))
	for i, r := range l.recs {
		out[i] = r.Text
	}
	return out
}
