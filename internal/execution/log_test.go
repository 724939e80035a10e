package execution

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSanitizesFields(t *testing.T) {
	l := NewLog(10, 0)
	l.Record("a\nb\x01c", strings.Repeat("x", 50), &Exception{Name: "Panic", Message: "boom\r\n"})

	require.Equal(t, 1, l.Len())
	e := l.Entries()[0]
	assert.Equal(t, "a bc", e.Code)
	assert.Equal(t, strings.Repeat("x", 10)+"...", e.Result)
	assert.Equal(t, "Panic: boo...", e.Error)
	assert.False(t, strings.ContainsAny(e.Error, "\r\n"))
}

func TestLogEntryTotalCap(t *testing.T) {
	l := NewLog(2000, 100)
	l.Record(strings.Repeat("a", 80), strings.Repeat("b", 80), nil)

	e := l.Entries()[0]
	assert.Len(t, e.Code, 80)
	assert.Len(t, e.Result, 20)
	assert.LessOrEqual(t, e.size(), 100)
}

func TestLogBounded(t *testing.T) {
	l := NewLog(0, 0)
	for i := 0; i < defaultLogEntries+5; i++ {
		l.Record(strings.Repeat("c", i%7+1), "ok", nil)
	}
	assert.Equal(t, defaultLogEntries, l.Len())
}

func TestLogEntriesReturnsCopy(t *testing.T) {
	l := NewLog(0, 0)
	l.Record("code", "result", nil)

	got := l.Entries()
	got[0].Result = "mutated"
	assert.Equal(t, "result", l.Entries()[0].Result)
}
