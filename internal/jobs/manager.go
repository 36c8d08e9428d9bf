// Package jobs schedules background finance checks.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"course-ledger/internal/logging"
	"course-ledger/internal/metrics"
	"course-ledger/internal/services/ledger"

	"github.com/robfig/cron/v3"
)

// Reconciler is the slice of the ledger the jobs need.
type Reconciler interface {
	Reconcile(ctx context.Context) ([]ledger.Drift, error)
}

// Manager runs scheduled jobs with seconds precision.
type Manager struct {
	cron       *cron.Cron
	reconciler Reconciler
	schedule   string
	log        *slog.Logger
}

func NewManager(r Reconciler, schedule string) *Manager {
	return &Manager{
		cron:       cron.New(cron.WithSeconds()),
		reconciler: r,
		schedule:   schedule,
		log:        logging.New("jobs"),
	}
}

func (m *Manager) Start() error {
	if _, err := m.cron.AddFunc(m.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		_, _ = m.RunReconcile(ctx)
	}); err != nil {
		return err
	}

	m.cron.Start()
	m.log.Info("cron jobs started", "reconcile_schedule", m.schedule)
	return nil
}

// Stop waits for running jobs to finish.
func (m *Manager) Stop() {
	<-m.cron.Stop().Done()
	m.log.Info("cron jobs stopped")
}

// RunReconcile compares every wallet against its ledger once, reports drift
// and records the drift count. It never repairs balances.
func (m *Manager) RunReconcile(ctx context.Context) ([]ledger.Drift, error) {
	start := time.Now()
	m.log.Info("job started", "job", "reconcile_wallets")

	drifts, err := m.reconciler.Reconcile(ctx)
	if err != nil {
		m.log.Error("job failed", "job", "reconcile_wallets", "error", err)
		return nil, err
	}

	metrics.WalletDrift.Set(float64(len(drifts)))
	for _, d := range drifts {
		m.log.Error("wallet drift",
			"instructor_id", d.InstructorID,
			"wallet_balance", d.WalletBalance,
			"ledger_sum", d.LedgerSum,
		)
	}

	m.log.Info("job completed",
		"job", "reconcile_wallets",
		"drifts", len(drifts),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return drifts, nil
}
