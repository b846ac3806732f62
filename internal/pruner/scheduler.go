// Package pruner runs the state store's expired-entry sweep on a cron
// schedule, so candidate cooldown state and rate-limit bucket usage that
// have outlived their TTL don't accumulate forever in the memory or file
// state store backends. Route cursors are not pruned.
package pruner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-router/internal/metrics"
	"github.com/tributary-ai/llm-router/internal/statestore"
)

// Scheduler runs statestore.Store.PruneExpired on a cron schedule.
type Scheduler struct {
	store   statestore.Store
	metrics *metrics.Metrics
	logger  *logrus.Logger
	cron    *cron.Cron

	mu      sync.Mutex
	running bool
}

// New creates a Scheduler for store. metrics may be nil if metrics
// recording is not wired up.
func New(store statestore.Store, m *metrics.Metrics, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		metrics: m,
		logger:  logger,
		cron:    cron.New(),
	}
}

// Start schedules a prune sweep per schedule (standard 5-field cron
// syntax, e.g. "*/5 * * * *"). If schedule is empty the scheduler does
// nothing. The scheduler stops automatically when ctx is done.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule == "" {
		s.logger.Info("state prune schedule not configured, skipping scheduler")
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("pruner: invalid cron schedule %q: %w", schedule, err)
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		s.runPrune(ctx)
	}); err != nil {
		return fmt.Errorf("pruner: schedule prune job: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.WithField("schedule", schedule).Info("state prune scheduler started")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) runPrune(ctx context.Context) {
	result, err := s.store.PruneExpired(ctx, time.Now().UnixMilli())
	if err != nil {
		s.logger.WithError(err).Error("scheduled state prune failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordPruneRun(result.PrunedBuckets, result.PrunedCandidateStates)
	}
	if result.PrunedBuckets == 0 && result.PrunedCandidateStates == 0 {
		s.logger.Debug("scheduled state prune completed, nothing to remove")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"prunedBuckets":         result.PrunedBuckets,
		"prunedCandidateStates": result.PrunedCandidateStates,
	}).Info("scheduled state prune completed")
}

// Stop stops the scheduler and waits for any running sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
		s.running = false
		s.logger.Info("state prune scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is currently active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
