package schedule

import (
	"context"

	"gopherai-study/internal/app"
)

// Sweeper evicts expired sessions.
type Sweeper interface {
	Sweep(ctx context.Context) (app.SweepReport, error)
}

type SweepJob struct {
	sweeper Sweeper
}

func NewSweepJob(sweeper Sweeper) *SweepJob {
	return &SweepJob{sweeper: sweeper}
}

func (j *SweepJob) Name() string {
	return "session_sweep"
}

func (j *SweepJob) Run(ctx context.Context) error {
	_, err := j.sweeper.Sweep(ctx)
	return err
}
