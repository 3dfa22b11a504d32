package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int32
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job", Type: "noop"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job was not processed")
		}
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&processed))
}

func TestQueueRejectsDuplicateKeyWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan string, 2)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		<-release
		finished <- job.ID
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a", Key: "company-1"}))
	err := q.Enqueue(Job{ID: "b", Key: "company-1"})
	assert.True(t, errors.Is(err, ErrAlreadyQueued))
	assert.Equal(t, 1, q.Pending())

	close(release)
	assert.Equal(t, "a", waitFinished(t, finished))
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, 10*time.Millisecond)

	require.NoError(t, q.Enqueue(Job{ID: "c", Key: "company-1"}))
	assert.Equal(t, "c", waitFinished(t, finished))
}

func waitFinished(t *testing.T, finished <-chan string) string {
	t.Helper()
	select {
	case id := <-finished:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
		return ""
	}
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	succeeded := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		close(succeeded)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "retry", Key: "k"}))
	select {
	case <-succeeded:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not succeed after retries")
	}
	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "x"})
	require.Error(t, err)
}
