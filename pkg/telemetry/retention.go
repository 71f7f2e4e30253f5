package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes request and system logs older than the retention window on
// a cron schedule. The usage_daily rollup is never pruned.
type Pruner struct {
	store         *Store
	retentionDays int
	schedule      string
	cron          *cron.Cron
	logger        *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewPruner creates a pruner. A retention of zero days disables pruning.
func NewPruner(store *Store, retentionDays int, schedule string) *Pruner {
	return &Pruner{
		store:         store,
		retentionDays: retentionDays,
		schedule:      schedule,
		cron:          cron.New(),
		logger:        slog.Default().With("component", "telemetry.pruner"),
	}
}

// Start schedules the prune job. It validates the cron expression and
// returns without scheduling when retention is disabled.
func (p *Pruner) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.retentionDays <= 0 {
		p.logger.Info("log retention disabled")
		return nil
	}
	if _, err := cron.ParseStandard(p.schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", p.schedule, err)
	}

	if _, err := p.cron.AddFunc(p.schedule, p.runPrune); err != nil {
		return fmt.Errorf("schedule prune job: %w", err)
	}
	p.cron.Start()
	p.running = true

	p.logger.Info("log retention scheduler started",
		"schedule", p.schedule,
		"retention_days", p.retentionDays,
	)
	return nil
}

// Stop halts the scheduler and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("log retention scheduler stopped")
}

// runPrune executes one prune cycle.
func (p *Pruner) runPrune() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -p.retentionDays)
	requestRows, systemRows, err := p.store.PruneBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("scheduled prune failed", "error", err)
		return
	}

	if requestRows > 0 || systemRows > 0 {
		p.logger.Info("pruned old telemetry",
			"request_logs", requestRows,
			"system_logs", systemRows,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	} else {
		p.logger.Debug("scheduled prune completed, nothing to delete")
	}
}
