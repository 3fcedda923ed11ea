package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerManager_ProcessesJobs(t *testing.T) {
	w := NewWorkerManager(10, 3, nil)

	var processed int64
	var wg sync.WaitGroup
	w.SetWorker(func(_ int, job interface{}) {
		atomic.AddInt64(&processed, int64(job.(int)))
		wg.Done()
	})

	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()

	for i := 1; i <= 10; i++ {
		wg.Add(1)
		require.NoError(t, w.Enqueue(context.Background(), i))
	}
	wg.Wait()
	assert.Equal(t, int64(55), atomic.LoadInt64(&processed))

	w.Exit()
	w.Exit()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrExited)
	case <-time.After(time.Second):
		t.Fatal("workers did not stop")
	}

	assert.ErrorIs(t, w.Enqueue(context.Background(), 1), ErrExited)
}

func TestWorkerManager_StopsOnContext(t *testing.T) {
	w := NewWorkerManager(1, 2, nil)
	w.SetWorker(func(int, interface{}) {})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workers did not stop")
	}
}

func TestWorkerManager_EnqueueRespectsContext(t *testing.T) {
	w := NewWorkerManager(0, 1, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, w.Enqueue(ctx, 1), context.DeadlineExceeded)
}
