package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memora-health/memora-api/internal/service/reconcile"
)

type countingReconciler struct {
	runs atomic.Int32
	err  error
}

func (c *countingReconciler) Run(ctx context.Context) (*reconcile.Report, error) {
	c.runs.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &reconcile.Report{StartedAt: time.Now(), Duration: time.Millisecond}, nil
}

func TestReconcileJobRunsOnStart(t *testing.T) {
	rec := &countingReconciler{}
	job := NewReconcileJob(rec, ReconcileJobConfig{Schedule: "@every 1h", RunOnStart: true}, zerolog.Nop())

	_, ok := job.LastRun()
	assert.False(t, ok)

	require.NoError(t, job.Start())
	t.Cleanup(func() { job.Stop(context.Background()) })

	require.Eventually(t, func() bool {
		_, ok := job.LastRun()
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), rec.runs.Load())
}

func TestReconcileJobFailedRunLeavesLastRunUnset(t *testing.T) {
	rec := &countingReconciler{err: errors.New("provider down")}
	job := NewReconcileJob(rec, ReconcileJobConfig{Schedule: "@every 1h"}, zerolog.Nop())

	job.run()

	assert.Equal(t, int32(1), rec.runs.Load())
	_, ok := job.LastRun()
	assert.False(t, ok)
}

func TestReconcileJobRejectsBadSchedule(t *testing.T) {
	for _, schedule := range []string{"", "every hour"} {
		job := NewReconcileJob(&countingReconciler{}, ReconcileJobConfig{Schedule: schedule}, zerolog.Nop())
		assert.Error(t, job.Start(), schedule)
	}
}
