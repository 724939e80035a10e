package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"dirigent/internal/logging"
)

// atCheckInterval is how often one-shot entries are checked. Cron
// entries fire through the cron engine and do not wait on this.
const atCheckInterval = 30 * time.Second

// RunFunc executes one due task. The runner calls it on its own
// goroutine; implementations serialize as they see fit.
type RunFunc func(ctx context.Context, e Entry)

// Runner fires schedule entries. Cron entries run through a cron
// engine rebuilt on every file change; one-shot entries are polled and
// removed from the file after firing.
type Runner struct {
	store *Store
	run   RunFunc
	cron  *cron.Cron

	mu      sync.Mutex
	cronIDs []cron.EntryID
	fired   map[string]bool
}

// NewRunner builds a runner over the store.
func NewRunner(store *Store, run RunFunc) *Runner {
	return &Runner{
		store: store,
		run:   run,
		cron:  cron.New(cron.WithParser(cronParser)),
		fired: make(map[string]bool),
	}
}

// Run loads the schedules, starts the cron engine, and blocks until
// ctx is cancelled. The schedules file is watched so edits apply
// without a restart.
func (r *Runner) Run(ctx context.Context) {
	log := logging.Get(logging.CategoryScheduler)

	r.reload(ctx)
	r.cron.Start()
	defer r.cron.Stop()

	var events chan fsnotify.Event
	var watchErrs chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warnw("file watcher unavailable, relying on periodic checks", "error", err)
	} else {
		defer watcher.Close()
		dir := filepath.Dir(r.store.Path())
		_ = os.MkdirAll(dir, 0755)
		// Watch the directory: saves replace the file by rename, which
		// would silently drop a watch on the file itself.
		if err := watcher.Add(dir); err != nil {
			log.Warnw("failed to watch schedules directory", "dir", dir, "error", err)
		} else {
			events = watcher.Events
			watchErrs = watcher.Errors
		}
	}

	ticker := time.NewTicker(atCheckInterval)
	defer ticker.Stop()

	base := filepath.Base(r.store.Path())
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				log.Debugw("schedules file changed, reloading")
				r.reload(ctx)
			}
		case err := <-watchErrs:
			log.Warnw("schedules watcher error", "error", err)
		case <-ticker.C:
			r.fireDue(ctx)
		}
	}
}

// reload rebuilds the cron jobs from the file and fires anything
// already due.
func (r *Runner) reload(ctx context.Context) {
	log := logging.Get(logging.CategoryScheduler)
	entries := r.store.Load()

	r.mu.Lock()
	for _, id := range r.cronIDs {
		r.cron.Remove(id)
	}
	r.cronIDs = r.cronIDs[:0]

	cronCount := 0
	for _, e := range entries {
		if e.Cron == "" {
			continue
		}
		entry := e
		id, err := r.cron.AddFunc(e.Cron, func() {
			logging.Get(logging.CategoryScheduler).Infow("firing schedule",
				"id", entry.ID, "cron", entry.Cron)
			r.run(ctx, entry)
		})
		if err != nil {
			log.Warnw("skipping entry with bad cron expression",
				"id", e.ID, "cron", e.Cron, "error", err)
			continue
		}
		r.cronIDs = append(r.cronIDs, id)
		cronCount++
	}
	r.mu.Unlock()

	log.Debugw("schedules loaded", "cron", cronCount, "total", len(entries))
	r.fireDue(ctx)
}

// fireDue runs one-shot entries whose time has passed, then removes
// them so they never fire twice.
func (r *Runner) fireDue(ctx context.Context) {
	log := logging.Get(logging.CategoryScheduler)
	now := time.Now()

	for _, e := range r.store.Load() {
		if e.At == "" {
			continue
		}
		when, ok := parseAt(e.At)
		if !ok {
			log.Warnw("skipping entry with bad timestamp", "id", e.ID, "at", e.At)
			continue
		}
		if when.After(now) {
			continue
		}

		r.mu.Lock()
		already := r.fired[e.ID]
		if !already {
			r.fired[e.ID] = true
		}
		r.mu.Unlock()
		if already {
			continue
		}

		log.Infow("firing one-shot schedule", "id", e.ID, "at", e.At)
		entry := e
		go r.run(ctx, entry)
		if _, err := r.store.Remove(e.ID); err != nil {
			log.Warnw("failed to remove fired entry", "id", e.ID, "error", err)
		}
	}
}

// Entries returns the current schedule list for display.
func (r *Runner) Entries() []Entry {
	return r.store.Load()
}
