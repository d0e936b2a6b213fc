package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type orderLog struct {
	mu      sync.Mutex
	entries []string
}

func (o *orderLog) add(entry string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, entry)
}

func (o *orderLog) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.entries...)
}

// blockingHook builds a hook whose Start blocks until its Stop runs,
// recording both transitions.
func blockingHook(name string, log *orderLog, started chan<- struct{}) Hook {
	stopCh := make(chan struct{})
	return Hook{
		Name: name,
		Start: func() error {
			log.add(name + ":start")
			close(started)
			<-stopCh
			return nil
		},
		Stop: func() {
			log.add(name + ":stop")
			close(stopCh)
		},
	}
}

func TestLifecycle_StopsInReverseOrder(t *testing.T) {
	log := &orderLog{}
	firstStarted := make(chan struct{})
	secondStarted := make(chan struct{})

	lc := NewLifecycle(zap.NewNop())
	lc.Add(blockingHook("first", log, firstStarted))
	lc.Add(blockingHook("second", log, secondStarted))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	<-firstStarted
	<-secondStarted
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down")
	}

	entries := log.list()
	require.Len(t, entries, 4)
	assert.Equal(t, "second:stop", entries[2])
	assert.Equal(t, "first:stop", entries[3])
}

func TestLifecycle_StopOnlyHook(t *testing.T) {
	stopped := false
	lc := NewLifecycle(zap.NewNop())
	lc.Add(Hook{Name: "reaper", Stop: func() { stopped = true }})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, lc.Run(ctx))
	assert.True(t, stopped)
}

func TestLifecycle_HookFailureStopsTheRest(t *testing.T) {
	log := &orderLog{}
	healthyStarted := make(chan struct{})

	lc := NewLifecycle(zap.NewNop())
	lc.Add(blockingHook("healthy", log, healthyStarted))
	lc.Add(Hook{
		Name:  "crashy",
		Start: func() error { return assert.AnError },
	})

	done := make(chan error, 1)
	go func() { done <- lc.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "crashy")
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down after hook failure")
	}

	entries := log.list()
	assert.Contains(t, entries, "healthy:stop")
}
