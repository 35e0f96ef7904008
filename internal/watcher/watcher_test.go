package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatcherSortsPaths(t *testing.T) {
	var got Batch
	b := newBatcher(time.Hour, 100, ".arch", func(batch Batch) { got = batch })
	for _, e := range []FileEvent{
		{Path: "src/b.ts", Type: EventModify},
		{Path: "src/a.ts", Type: EventCreate},
		{Path: "src/old.ts", Type: EventRename},
		{Path: "src/gone.ts", Type: EventDelete},
		{Path: ".arch/registry/base.yaml", Type: EventModify},
	} {
		b.Add(e)
	}
	b.Close()

	assert.Equal(t, []string{"src/a.ts", "src/b.ts"}, got.Changed)
	assert.Equal(t, []string{"src/gone.ts", "src/old.ts"}, got.Removed)
	assert.True(t, got.ConfigChanged)
	assert.False(t, got.Empty())
	assert.True(t, Batch{}.Empty())
}

func TestBatcherKeepsLatestEventPerPath(t *testing.T) {
	var mu sync.Mutex
	var emitted []Batch
	b := newBatcher(20*time.Millisecond, 100, ".arch", func(batch Batch) {
		mu.Lock()
		emitted = append(emitted, batch)
		mu.Unlock()
	})

	b.Add(FileEvent{Path: "a.ts", Type: EventCreate})
	b.Add(FileEvent{Path: "a.ts", Type: EventDelete})
	b.Add(FileEvent{Path: "b.ts", Type: EventModify})
	assert.Equal(t, 2, b.Pending())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(emitted) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"b.ts"}, emitted[0].Changed)
	assert.Equal(t, []string{"a.ts"}, emitted[0].Removed)
}

func TestBatcherEmitsAtMaxPaths(t *testing.T) {
	var got []Batch
	b := newBatcher(time.Hour, 2, ".arch", func(batch Batch) { got = append(got, batch) })

	b.Add(FileEvent{Path: "a.ts"})
	assert.Empty(t, got)
	b.Add(FileEvent{Path: "b.ts"})
	require.Len(t, got, 1)
	assert.Equal(t, []string{"a.ts", "b.ts"}, got[0].Changed)
	assert.Equal(t, 0, b.Pending())
	b.Close()
	assert.Len(t, got, 1)
}

func TestBatcherCloseEmitsPending(t *testing.T) {
	var got []Batch
	b := newBatcher(time.Hour, 10, ".arch", func(batch Batch) { got = append(got, batch) })
	b.Add(FileEvent{Path: ".arch/config.yaml", Type: EventModify})
	b.Close()
	require.Len(t, got, 1)
	assert.True(t, got[0].ConfigChanged)
	assert.Empty(t, got[0].Changed)

	b.Add(FileEvent{Path: "b.ts"})
	assert.Equal(t, 0, b.Pending())
}

func TestShouldIgnore(t *testing.T) {
	w := &Watcher{config: DefaultConfig(), configDir: ".arch"}
	assert.True(t, w.shouldIgnore("node_modules/x/index.js"))
	assert.True(t, w.shouldIgnore(".git"))
	assert.True(t, w.shouldIgnore("src/.hidden.ts"))
	assert.False(t, w.shouldIgnore(".arch"))
	assert.False(t, w.shouldIgnore(".arch/registry/base.yaml"))
	assert.False(t, w.shouldIgnore("src/a.ts"))
}

func TestWatcherDeliversBatches(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))

	batches := make(chan Batch, 4)
	cfg := DefaultConfig()
	cfg.DebounceWindow = 20 * time.Millisecond
	w, err := New(cfg, root, ".arch", HandlerFunc(func(_ context.Context, b Batch) error {
		batches <- b
		return nil
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.ts"), []byte("export const a = 1;\n"), 0o644))

	select {
	case b := <-batches:
		assert.Equal(t, []string{"src/a.ts"}, b.Changed)
		assert.False(t, b.ConfigChanged)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}

	cancel()
	require.NoError(t, <-done)
}
