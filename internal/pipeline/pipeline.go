// Package pipeline orchestrates the daily analytical run: an ordered list
// of named stages with per-stage status, duration, and error capture. A
// failed stage never cancels later stages.
package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Stage statuses.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Overall run statuses.
const (
	RunSuccess = "success"
	RunPartial = "partial"
	RunFailed  = "failed"
)

// StageFunc executes one stage and returns its summary.
type StageFunc func(ctx context.Context) (map[string]any, error)

// Stage is one named pipeline step. SkipIf, when set, is evaluated just
// before the stage runs; a non-empty return skips with that reason.
type Stage struct {
	Name   string
	Run    StageFunc
	SkipIf func() string
}

// StageResult records one stage execution.
type StageResult struct {
	Name            string         `json:"name"`
	Status          string         `json:"status"`
	DurationSeconds float64        `json:"duration_seconds"`
	Summary         map[string]any `json:"summary,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// Result records one full pipeline run.
type Result struct {
	Status          string        `json:"status"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
	DurationSeconds float64       `json:"duration_seconds"`
	Stages          []StageResult `json:"stages"`
	GeneratedAt     time.Time     `json:"generated_at"`
}

// Orchestrator runs the stage list and persists the latest summary.
type Orchestrator struct {
	stages     []Stage
	statusPath string
	logger     *zap.Logger
}

// New builds an Orchestrator writing pipeline_status.json under dataDir.
func New(stages []Stage, dataDir string, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		stages:     stages,
		statusPath: filepath.Join(dataDir, "pipeline_status.json"),
		logger:     logger,
	}
}

// Run executes every stage in order and writes the status summary.
func (o *Orchestrator) Run(ctx context.Context) *Result {
	result := &Result{StartedAt: time.Now().UTC()}
	o.logger.Info("pipeline starting", zap.Int("stages", len(o.stages)))

	for _, stage := range o.stages {
		result.Stages = append(result.Stages, o.runStage(ctx, stage))
	}

	result.FinishedAt = time.Now().UTC()
	result.DurationSeconds = result.FinishedAt.Sub(result.StartedAt).Seconds()
	result.GeneratedAt = result.FinishedAt
	result.Status = overallStatus(result.Stages)

	if err := o.writeStatus(result); err != nil {
		o.logger.Error("pipeline status write failed", zap.Error(err))
	}

	o.logger.Info("pipeline complete",
		zap.String("status", result.Status),
		zap.Float64("duration_s", result.DurationSeconds),
	)
	for _, stage := range result.Stages {
		o.logger.Info("stage result",
			zap.String("stage", stage.Name),
			zap.String("status", stage.Status),
			zap.Float64("duration_s", stage.DurationSeconds),
			zap.String("error", stage.Error),
		)
	}
	return result
}

func (o *Orchestrator) runStage(ctx context.Context, stage Stage) StageResult {
	if stage.SkipIf != nil {
		if reason := stage.SkipIf(); reason != "" {
			o.logger.Info("stage skipped",
				zap.String("stage", stage.Name),
				zap.String("reason", reason),
			)
			return StageResult{
				Name:    stage.Name,
				Status:  StatusSkipped,
				Summary: map[string]any{"reason": reason},
			}
		}
	}

	started := time.Now()
	o.logger.Info("stage starting", zap.String("stage", stage.Name))

	summary, err := runProtected(ctx, stage.Run)
	duration := time.Since(started).Seconds()
	if err != nil {
		o.logger.Error("stage failed",
			zap.String("stage", stage.Name),
			zap.Error(err),
		)
		return StageResult{
			Name:            stage.Name,
			Status:          StatusFailed,
			DurationSeconds: duration,
			Error:           err.Error(),
		}
	}
	return StageResult{
		Name:            stage.Name,
		Status:          StatusSuccess,
		DurationSeconds: duration,
		Summary:         summary,
	}
}

// runProtected converts a stage panic into a stage error so one broken
// processor cannot take down the scheduler process.
func runProtected(ctx context.Context, fn StageFunc) (summary map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	return fn(ctx)
}

type panicError struct{ value any }

func (e panicError) Error() string {
	return "stage panic: " + stringify(e.value)
}

func stringify(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	raw, _ := json.Marshal(v)
	return string(raw)
}

func overallStatus(stages []StageResult) string {
	failed, succeeded := 0, 0
	for _, stage := range stages {
		switch stage.Status {
		case StatusFailed:
			failed++
		case StatusSuccess:
			succeeded++
		}
	}
	switch {
	case failed == 0:
		return RunSuccess
	case succeeded == 0:
		return RunFailed
	default:
		return RunPartial
	}
}

func (o *Orchestrator) writeStatus(result *Result) error {
	if err := os.MkdirAll(filepath.Dir(o.statusPath), 0o750); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	tmp := o.statusPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, o.statusPath)
}

// LatestStatus reads the last persisted pipeline summary.
func LatestStatus(dataDir string) (*Result, error) {
	raw, err := os.ReadFile(filepath.Join(dataDir, "pipeline_status.json"))
	if err != nil {
		return nil, err
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
