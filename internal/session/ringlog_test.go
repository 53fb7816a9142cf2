package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"achk/internal/scan"
)

func TestRingLogEvictsOldest(t *testing.T) {
	l := newRingLog(3)
	for i := 1; i <= 5; i++ {
		l.Append(scan.Record{Text: fmt.Sprintf("line %d", i)})
	}

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []string{"line 3", "line 4", "line 5"}, l.Texts())
}

func TestRingLogPopLast(t *testing.T) {
	l := newRingLog(10)
	_, ok := l.PopLast()
	assert.False(t, ok)

	l.Append(scan.Record{Text: "a"})
	l.Append(scan.Record{Text: "b"})

	last, ok := l.PopLast()
	require.True(t, ok)
	assert.Equal(t, "b", last.Text)
	assert.Equal(t, 1, l.Len())

	got, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, "a", got.Text)
}

func TestRingLogClear(t *testing.T) {
	l := newRingLog(2)
	l.Append(scan.Record{Text: "a"})
	l.Clear()
	assert.Zero(t, l.Len())
	_, ok := l.Last()
	assert.False(t, ok)
}
