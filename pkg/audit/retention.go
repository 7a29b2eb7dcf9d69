package audit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/meridianhq/meridian/pkg/observability"
)

// Pruner deletes expired audit events on a cron schedule
type Pruner struct {
	recorder  *SQLRecorder
	retention time.Duration
	schedule  string
	logger    *observability.Logger
	cron      *cron.Cron
}

// NewPruner creates a pruner. schedule is a standard cron expression.
func NewPruner(recorder *SQLRecorder, retention time.Duration, schedule string, logger *observability.Logger) *Pruner {
	return &Pruner{
		recorder:  recorder,
		retention: retention,
		schedule:  schedule,
		logger:    logger,
	}
}

// Start schedules the prune job
func (p *Pruner) Start() error {
	p.cron = cron.New()
	_, err := p.cron.AddFunc(p.schedule, p.runOnce)
	if err != nil {
		return err
	}
	p.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running job to finish
func (p *Pruner) Stop() {
	if p.cron != nil {
		<-p.cron.Stop().Done()
	}
}

func (p *Pruner) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := p.recorder.Prune(ctx, p.retention)
	if err != nil {
		p.logger.WithError(err).Error("audit retention prune failed")
		return
	}
	if removed > 0 {
		p.logger.WithField("removed", removed).Info("pruned expired audit events")
	}
}
