package watcher

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// batcher coalesces file events into a Batch. Only the latest event per path
// is kept. The batch is emitted once quiet passes with no new event, or as
// soon as maxPaths distinct paths are pending.
type batcher struct {
	quiet     time.Duration
	maxPaths  int
	configDir string
	emit      func(Batch)

	mu     sync.Mutex
	latest map[string]EventType
	timer  *time.Timer
	closed bool
}

func newBatcher(quiet time.Duration, maxPaths int, configDir string, emit func(Batch)) *batcher {
	if maxPaths <= 0 {
		maxPaths = 1
	}
	return &batcher{
		quiet:     quiet,
		maxPaths:  maxPaths,
		configDir: strings.TrimSuffix(configDir, "/"),
		emit:      emit,
		latest:    make(map[string]EventType),
	}
}

func (b *batcher) Add(e FileEvent) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.latest[e.Path] = e.Type
	if len(b.latest) >= b.maxPaths {
		b.emitLocked()
		return
	}
	if b.timer == nil {
		b.timer = time.AfterFunc(b.quiet, b.fire)
	} else {
		b.timer.Reset(b.quiet)
	}
	b.mu.Unlock()
}

// Pending is the number of distinct paths waiting for the next batch.
func (b *batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.latest)
}

func (b *batcher) fire() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.emitLocked()
}

// emitLocked is entered with mu held. It releases mu before calling emit so
// a slow handler never blocks Add. A timer that fires after a size-triggered
// emit finds nothing pending and emits nothing.
func (b *batcher) emitLocked() {
	batch := b.drainLocked()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.mu.Unlock()

	if !batch.Empty() && b.emit != nil {
		b.emit(batch)
	}
}

// drainLocked sorts the pending paths into the batch lists and resets the
// pending set. Every path lands in exactly one list.
func (b *batcher) drainLocked() Batch {
	var batch Batch
	for p, t := range b.latest {
		switch {
		case b.inConfigDir(p):
			batch.ConfigChanged = true
		case t == EventDelete || t == EventRename:
			batch.Removed = append(batch.Removed, p)
		default:
			batch.Changed = append(batch.Changed, p)
		}
	}
	b.latest = make(map[string]EventType)
	sort.Strings(batch.Changed)
	sort.Strings(batch.Removed)
	return batch
}

func (b *batcher) inConfigDir(p string) bool {
	return b.configDir != "" && b.configDir != "." && (p == b.configDir || strings.HasPrefix(p, b.configDir+"/"))
}

// Close emits whatever is pending and drops later events.
func (b *batcher) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.emitLocked()
}
