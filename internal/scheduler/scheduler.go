package scheduler

import (
	"context"
	"fmt"
	"log"

	"ipopulse/internal/pipeline"
	"ipopulse/internal/summary"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the daily ingestion batch on a cron schedule. Each firing
// is one full pipeline run followed by the summary step; overlapping runs
// are not expected and not guarded against beyond the cron spacing.
type Scheduler struct {
	Cron       *cron.Cron
	Pipeline   *pipeline.Pipeline
	Summarizer *summary.Generator
	Ctx        context.Context
}

// NewScheduler creates a new Scheduler. Summarizer may be nil when no LLM
// is configured.
func NewScheduler(ctx context.Context, p *pipeline.Pipeline, g *summary.Generator) *Scheduler {
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds()),
		Pipeline:   p,
		Summarizer: g,
		Ctx:        ctx,
	}
}

// Register registers the daily task.
func (s *Scheduler) Register(dailyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.dailyTask); err != nil {
		return fmt.Errorf("register daily task: %w", err)
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

// RunNow executes the daily task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.dailyTask()
}

func (s *Scheduler) dailyTask() {
	log.Println("[INFO] running daily ingestion")
	if err := s.Pipeline.Run(); err != nil {
		log.Printf("[ERROR] daily ingestion: %v", err)
		return
	}
	if s.Summarizer == nil {
		return
	}
	if err := s.Summarizer.Run(s.Ctx); err != nil {
		log.Printf("[ERROR] summary step: %v", err)
	}
}
