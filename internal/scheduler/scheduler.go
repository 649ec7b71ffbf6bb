// Package scheduler drives the pipeline on cron schedules for daemon mode.
package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"octoadvisor/internal/notifier"
	"octoadvisor/internal/pipeline"
)

// Scheduler manages the cron tasks of daemon mode.
type Scheduler struct {
	Cron     *cron.Cron
	Pipeline *pipeline.Pipeline
	Notifier *notifier.Telegram
	Ctx      context.Context
}

// NewScheduler creates a scheduler around one pipeline.
func NewScheduler(ctx context.Context, p *pipeline.Pipeline, tn *notifier.Telegram) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Pipeline: p,
		Notifier: tn,
		Ctx:      ctx,
	}
}

// RegisterAll registers the advisor run and the candle-only sync.
func (s *Scheduler) RegisterAll(adviseCron, syncCron string) error {
	if _, err := s.Cron.AddFunc(adviseCron, s.adviseTask); err != nil {
		return fmt.Errorf("register advise task: %w", err)
	}
	if _, err := s.Cron.AddFunc(syncCron, s.syncTask); err != nil {
		return fmt.Errorf("register sync task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunAdviseNow executes the advisor task immediately (for RUN_ON_START).
func (s *Scheduler) RunAdviseNow() {
	s.adviseTask()
}

func (s *Scheduler) adviseTask() {
	log.Println("[INFO] running scheduled advisor pass")
	if err := s.Pipeline.Run(s.Ctx); err != nil {
		log.Printf("[ERROR] advisor pass: %v", err)
		s.trySend(fmt.Sprintf("Advisor-Durchlauf fehlgeschlagen: %v", err))
	}
}

func (s *Scheduler) syncTask() {
	log.Println("[INFO] running scheduled candle sync")
	s.Pipeline.SyncAll(s.Ctx)
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
