// Package loopprotect accounts for messages dropped by channel-side
// loop protection. The counters are purely observational: the drop
// decision itself lives in the channel listeners, and recording a drop
// must never block or fail that path. A periodic summarizer reports
// non-zero channels in one line each, then resets them, so a chatty
// loop shows up in the logs as one line per minute instead of one per
// message.
package loopprotect

import (
	"context"
	"sync"
	"time"

	"dirigent/internal/logging"
)

// Entry is the drop count for one channel within the current window.
type Entry struct {
	Drops       uint64
	WindowStart time.Time
}

// Counters is the shared per-channel drop table. It is injected into
// both the drop path and the summarizer rather than accessed as a
// global.
type Counters struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// New returns an empty counter table.
func New() *Counters {
	return &Counters{entries: make(map[string]*Entry)}
}

// RecordDrop increments the channel's counter. The first drop in a
// window stamps the window start.
func (c *Counters) RecordDrop(channel string) {
	c.mu.Lock()
	e, ok := c.entries[channel]
	if !ok {
		e = &Entry{WindowStart: time.Now()}
		c.entries[channel] = e
	}
	e.Drops++
	c.mu.Unlock()
}

// SnapshotAndReset returns all channels with a non-zero count and
// clears them, under one lock so drops are neither lost nor counted
// twice across windows.
func (c *Counters) SnapshotAndReset() map[string]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]Entry, len(c.entries))
	for ch, e := range c.entries {
		if e.Drops == 0 {
			continue
		}
		out[ch] = *e
	}
	c.entries = make(map[string]*Entry)
	return out
}

// EmitFunc receives one summary line's worth of data.
type EmitFunc func(channel string, e Entry)

// Summarizer periodically reports and resets the counters.
type Summarizer struct {
	counters *Counters
	interval time.Duration
	emit     EmitFunc
}

// NewSummarizer builds a summarizer over the shared counters. A nil
// emit logs through the loops category.
func NewSummarizer(counters *Counters, interval time.Duration, emit EmitFunc) *Summarizer {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if emit == nil {
		emit = func(channel string, e Entry) {
			logging.Get(logging.CategoryLoops).Infow("dropped messages",
				"channel", channel,
				"count", e.Drops,
				"window_start", e.WindowStart.Format(time.RFC3339))
		}
	}
	return &Summarizer{counters: counters, interval: interval, emit: emit}
}

// Run emits summaries on a fixed interval until ctx is cancelled.
func (s *Summarizer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Flush reports every non-zero channel once and resets it.
func (s *Summarizer) Flush() {
	for ch, e := range s.counters.SnapshotAndReset() {
		s.emit(ch, e)
	}
}
