package loopprotect

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSummaryReportsAndResets(t *testing.T) {
	c := New()
	c.RecordDrop("chan-1")
	c.RecordDrop("chan-1")
	c.RecordDrop("chan-1")

	var mu sync.Mutex
	var lines []Entry
	var channels []string
	s := NewSummarizer(c, time.Minute, func(channel string, e Entry) {
		mu.Lock()
		defer mu.Unlock()
		channels = append(channels, channel)
		lines = append(lines, e)
	})

	s.Flush()
	require.Len(t, lines, 1, "one line per non-zero channel")
	assert.Equal(t, "chan-1", channels[0])
	assert.Equal(t, uint64(3), lines[0].Drops)
	assert.False(t, lines[0].WindowStart.IsZero())

	// A tick with no new drops emits nothing for the channel.
	s.Flush()
	assert.Len(t, lines, 1)
}

func TestSnapshotCoversMultipleChannels(t *testing.T) {
	c := New()
	c.RecordDrop("a")
	c.RecordDrop("b")
	c.RecordDrop("b")

	snap := c.SnapshotAndReset()
	require.Len(t, snap, 2)
	assert.Equal(t, uint64(1), snap["a"].Drops)
	assert.Equal(t, uint64(2), snap["b"].Drops)

	assert.Empty(t, c.SnapshotAndReset())
}

func TestConcurrentDropsAreCounted(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				c.RecordDrop("busy")
			}
		}()
	}
	wg.Wait()

	snap := c.SnapshotAndReset()
	assert.Equal(t, uint64(1000), snap["busy"].Drops)
}

func TestRunFlushesOnTickAndStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New()
	c.RecordDrop("chan-9")

	var mu sync.Mutex
	got := make(map[string]uint64)
	s := NewSummarizer(c, 10*time.Millisecond, func(channel string, e Entry) {
		mu.Lock()
		defer mu.Unlock()
		got[channel] += e.Drops
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got["chan-9"] == 1
	}, time.Second, 5*time.Millisecond)

	// Drops recorded after the last tick are flushed on shutdown.
	c.RecordDrop("chan-9")
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, uint64(2), got["chan-9"])
}
