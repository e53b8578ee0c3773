package scheduler

import (
	"context"
	"fmt"
	"time"

	"payverify/helper"

	"github.com/robfig/cron/v3"
)

// Jobs is the periodic transaction maintenance.
type Jobs interface {
	ExpireStale(ctx context.Context) (int64, error)
	ReconcilePending(ctx context.Context) (int, error)
}

const (
	DefaultExpirySpec    = "@every 1m"
	DefaultReconcileSpec = "@every 30s"
)

type TransactionScheduler struct {
	cron          *cron.Cron
	jobs          Jobs
	expirySpec    string
	reconcileSpec string
	timeout       time.Duration
	logger        *helper.Logger
}

func NewTransactionScheduler(jobs Jobs, expirySpec, reconcileSpec string) *TransactionScheduler {
	if expirySpec == "" {
		expirySpec = DefaultExpirySpec
	}
	if reconcileSpec == "" {
		reconcileSpec = DefaultReconcileSpec
	}
	return &TransactionScheduler{
		cron:          cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobs:          jobs,
		expirySpec:    expirySpec,
		reconcileSpec: reconcileSpec,
		timeout:       30 * time.Second,
		logger:        helper.NewLogger("scheduler"),
	}
}

func (ts *TransactionScheduler) Start() error {
	if _, err := ts.cron.AddFunc(ts.expirySpec, ts.expirePending); err != nil {
		return fmt.Errorf("error scheduling pending expiry: %w", err)
	}
	if _, err := ts.cron.AddFunc(ts.reconcileSpec, ts.reconcilePending); err != nil {
		return fmt.Errorf("error scheduling pending reconciliation: %w", err)
	}
	ts.cron.Start()

	for _, entry := range ts.cron.Entries() {
		ts.logger.Info("cron entry %d next run %s", entry.ID, entry.Next.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// Stop waits for running jobs to finish.
func (ts *TransactionScheduler) Stop() {
	<-ts.cron.Stop().Done()
}

func (ts *TransactionScheduler) GetStatus() map[string]interface{} {
	entries := ts.cron.Entries()
	status := make(map[string]interface{})

	for i, entry := range entries {
		status[fmt.Sprintf("entry_%d", i)] = map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next.Format("2006-01-02 15:04:05"),
			"schedule": fmt.Sprintf("%v", entry.Schedule),
		}
	}

	return status
}

func (ts *TransactionScheduler) expirePending() {
	ctx, cancel := context.WithTimeout(context.Background(), ts.timeout)
	defer cancel()

	n, err := ts.jobs.ExpireStale(ctx)
	if err != nil {
		ts.logger.Error("pending expiry failed: %v", err)
		return
	}
	if n > 0 {
		ts.logger.Info("pending expiry failed %d transactions", n)
	}
}

func (ts *TransactionScheduler) reconcilePending() {
	ctx, cancel := context.WithTimeout(context.Background(), ts.timeout)
	defer cancel()

	if _, err := ts.jobs.ReconcilePending(ctx); err != nil {
		ts.logger.Error("pending reconciliation failed: %v", err)
	}
}
