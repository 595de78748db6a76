// Package cron runs recurring housekeeping jobs.
package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gmsas95/mediremind/internal/notify"
)

// Janitor prunes stale cooldown rows once a day. The cooldown window is two
// minutes, so any row older than a day can no longer suppress a send.
type Janitor struct {
	cron      *cron.Cron
	cooldowns *notify.CooldownStore
	logger    *zap.Logger
}

// NewJanitor creates a new housekeeping runner
func NewJanitor(cooldowns *notify.CooldownStore, logger *zap.Logger) (*Janitor, error) {
	j := &Janitor{
		cron:      cron.New(),
		cooldowns: cooldowns,
		logger:    logger,
	}

	if _, err := j.cron.AddFunc("@daily", j.pruneCooldowns); err != nil {
		return nil, fmt.Errorf("failed to schedule cooldown pruning: %w", err)
	}

	return j, nil
}

// Start starts the housekeeping schedule
func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info("Housekeeping janitor started")
}

// Stop stops the schedule and waits for a running job to finish
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info("Housekeeping janitor stopped")
}

func (j *Janitor) pruneCooldowns() {
	cutoff := time.Now().Add(-24 * time.Hour)
	pruned, err := j.cooldowns.Prune(cutoff)
	if err != nil {
		j.logger.Error("Failed to prune cooldowns", zap.Error(err))
		return
	}
	if pruned > 0 {
		j.logger.Info("Pruned stale cooldowns", zap.Int64("count", pruned))
	}
}
