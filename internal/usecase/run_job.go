package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"HotelRevenue/internal/domain/models"
	applogger "HotelRevenue/pkg/logger"
	"HotelRevenue/pkg/queue"
)

// RunJobType is the queue message type of a background full run.
const RunJobType = "revenue.run"

// RunJob executes queued full runs.
type RunJob struct {
	uc  *RevenueUseCase
	log *applogger.Logger
}

func NewRunJob(uc *RevenueUseCase, log *applogger.Logger) *RunJob {
	if log == nil {
		log = applogger.Nop()
	}
	return &RunJob{uc: uc, log: log}
}

func (j *RunJob) Name() string { return "full-run" }
func (j *RunJob) Type() string { return RunJobType }

// Handle runs the pipeline. A held run lock is retried; a halted run is not,
// since its failure is recorded in the report.
func (j *RunJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.Decode[models.RunParams](payload)
	if err != nil {
		return err
	}
	res := j.uc.RunFull(ctx, *p)
	if res.Message == models.ErrRunInProgress.Error() {
		return models.ErrRunInProgress
	}
	if !res.Success {
		j.log.Warn("queued run failed", applogger.String("message", res.Message))
	}
	return nil
}

var _ queue.Job = (*RunJob)(nil)

// EnqueueRun schedules a full run in the background and returns the job ID.
func EnqueueRun(ctx context.Context, q queue.Enqueuer, p models.RunParams) (string, error) {
	if q == nil {
		return "", errors.New("background runs are not configured")
	}
	id, err := q.Enqueue(ctx, RunJobType, p)
	if err != nil {
		return "", fmt.Errorf("enqueue run: %w", err)
	}
	return id, nil
}
