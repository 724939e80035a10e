package execution

import (
	"strings"
	"sync"
	"time"
)

const (
	defaultFieldMax   = 2000
	defaultEntryMax   = 16000
	defaultLogEntries = 200
)

// Entry is one executed step. Fields are stored already sanitized.
type Entry struct {
	Time   time.Time
	Code   string
	Result string
	Error  string
}

// Log keeps a bounded in-memory record of executed snippets. Every
// field is stripped of newlines and control bytes and truncated before
// storage, and each entry has a total size cap.
type Log struct {
	mu       sync.Mutex
	entries  []Entry
	fieldMax int
	entryMax int
	maxLen   int
}

// NewLog builds a log with the given per-field and per-entry caps.
// Zero or negative values fall back to the defaults.
func NewLog(fieldMax, entryMax int) *Log {
	if fieldMax <= 0 {
		fieldMax = defaultFieldMax
	}
	if entryMax <= 0 {
		entryMax = defaultEntryMax
	}
	return &Log{fieldMax: fieldMax, entryMax: entryMax, maxLen: defaultLogEntries}
}

// Record appends one step. exc may be nil for successful runs.
func (l *Log) Record(code, result string, exc *Exception) {
	var errText string
	if exc != nil {
		errText = exc.Name + ": " + exc.Message
		if exc.Stack != "" {
			errText += " | " + exc.Stack
		}
	}

	e := Entry{
		Time:   time.Now(),
		Code:   sanitizeField(code, l.fieldMax),
		Result: sanitizeField(result, l.fieldMax),
		Error:  sanitizeField(errText, l.fieldMax),
	}

	// Shrink the largest fields until the entry fits its total cap.
	if over := e.size() - l.entryMax; over > 0 {
		e.Result = shrink(e.Result, over)
	}
	if over := e.size() - l.entryMax; over > 0 {
		e.Code = shrink(e.Code, over)
	}
	if over := e.size() - l.entryMax; over > 0 {
		e.Error = shrink(e.Error, over)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.maxLen {
		l.entries = l.entries[len(l.entries)-l.maxLen:]
	}
}

// Entries returns a copy of the stored entries, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of stored entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (e Entry) size() int {
	return len(e.Code) + len(e.Result) + len(e.Error)
}

// sanitizeField replaces newlines and control bytes with spaces and
// truncates to max.
func sanitizeField(s string, max int) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			b.WriteByte(' ')
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > max {
		out = out[:max] + "..."
	}
	return out
}

func shrink(s string, over int) string {
	if over >= len(s) {
		return ""
	}
	return s[:len(s)-over]
}
