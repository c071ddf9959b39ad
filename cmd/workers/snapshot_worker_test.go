package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) RefreshStale(ctx context.Context) (int, error) {
	r.calls.Add(1)
	return 1, r.err
}

func TestSnapshotWorkerRefreshesOnStartAndSchedule(t *testing.T) {
	refresher := &countingRefresher{}
	worker := NewSnapshotWorker(refresher, zap.NewNop(), "@every 1s", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Start(ctx) }()

	assert.Eventually(t, func() bool { return refresher.calls.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestSnapshotWorkerRejectsBadSchedule(t *testing.T) {
	worker := NewSnapshotWorker(&countingRefresher{}, zap.NewNop(), "every so often", time.Second)
	assert.Error(t, worker.Start(context.Background()))
}

func TestSnapshotWorkerSurvivesRefreshError(t *testing.T) {
	refresher := &countingRefresher{err: errors.New("db down")}
	worker := NewSnapshotWorker(refresher, zap.NewNop(), "@every 1h", time.Second)

	worker.runOnce(context.Background())
	worker.runOnce(context.Background())
	assert.Equal(t, int32(2), refresher.calls.Load())
}
