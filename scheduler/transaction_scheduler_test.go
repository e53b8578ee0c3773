package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJobs struct {
	expired    int32
	reconciled int32
	err        error
}

func (j *countingJobs) ExpireStale(ctx context.Context) (int64, error) {
	atomic.AddInt32(&j.expired, 1)
	return 2, j.err
}

func (j *countingJobs) ReconcilePending(ctx context.Context) (int, error) {
	atomic.AddInt32(&j.reconciled, 1)
	return 0, j.err
}

func TestTransactionScheduler_RunsJobs(t *testing.T) {
	jobs := &countingJobs{}
	ts := NewTransactionScheduler(jobs, "@every 1s", "@every 1s")
	require.NoError(t, ts.Start())
	defer ts.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&jobs.expired) >= 1 && atomic.LoadInt32(&jobs.reconciled) >= 1
	}, 3*time.Second, 20*time.Millisecond)

	status := ts.GetStatus()
	require.Len(t, status, 2)
	entry := status["entry_0"].(map[string]interface{})
	assert.NotEmpty(t, entry["next_run"])
}

func TestTransactionScheduler_InvalidSpec(t *testing.T) {
	ts := NewTransactionScheduler(&countingJobs{}, "every minute please", "")
	require.Error(t, ts.Start())

	ts = NewTransactionScheduler(&countingJobs{}, "", "sometimes")
	require.Error(t, ts.Start())
}

func TestTransactionScheduler_JobErrorsAreLogged(t *testing.T) {
	jobs := &countingJobs{err: errors.New("db down")}
	ts := NewTransactionScheduler(jobs, "", "")
	assert.Equal(t, DefaultExpirySpec, ts.expirySpec)
	assert.Equal(t, DefaultReconcileSpec, ts.reconcileSpec)

	ts.expirePending()
	ts.reconcilePending()
	assert.Equal(t, int32(1), atomic.LoadInt32(&jobs.expired))
	assert.Equal(t, int32(1), atomic.LoadInt32(&jobs.reconciled))
}
