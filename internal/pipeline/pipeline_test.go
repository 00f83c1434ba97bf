package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okStage(name string) Stage {
	return Stage{Name: name, Run: func(context.Context) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	}}
}

func failStage(name string) Stage {
	return Stage{Name: name, Run: func(context.Context) (map[string]any, error) {
		return nil, errors.New("boom")
	}}
}

func TestRunAllSuccess(t *testing.T) {
	dir := t.TempDir()
	o := New([]Stage{okStage("a"), okStage("b")}, dir, zap.NewNop())

	result := o.Run(context.Background())
	assert.Equal(t, RunSuccess, result.Status)
	require.Len(t, result.Stages, 2)
	for _, stage := range result.Stages {
		assert.Equal(t, StatusSuccess, stage.Status)
	}

	persisted, err := LatestStatus(dir)
	require.NoError(t, err)
	assert.Equal(t, RunSuccess, persisted.Status)
	require.Len(t, persisted.Stages, 2)
}

func TestRunContinuesPastFailure(t *testing.T) {
	ran := false
	after := Stage{Name: "after", Run: func(context.Context) (map[string]any, error) {
		ran = true
		return nil, nil
	}}
	o := New([]Stage{failStage("bad"), after}, t.TempDir(), zap.NewNop())

	result := o.Run(context.Background())
	assert.True(t, ran, "stages after a failure still run")
	assert.Equal(t, RunPartial, result.Status)
	assert.Equal(t, StatusFailed, result.Stages[0].Status)
	assert.Equal(t, "boom", result.Stages[0].Error)
}

func TestRunAllFailed(t *testing.T) {
	o := New([]Stage{failStage("a"), failStage("b")}, t.TempDir(), zap.NewNop())
	result := o.Run(context.Background())
	assert.Equal(t, RunFailed, result.Status)
}

func TestSkippedStagesS7(t *testing.T) {
	oracleOff := Stage{
		Name: "oracle_enrichment",
		Run: func(context.Context) (map[string]any, error) {
			t.Fatal("skipped stage must not run")
			return nil, nil
		},
		SkipIf: func() string { return "ENABLE_LLM_ENRICHMENT=false" },
	}
	o := New([]Stage{okStage("crawl"), oracleOff, okStage("index")}, t.TempDir(), zap.NewNop())

	result := o.Run(context.Background())
	assert.Equal(t, RunSuccess, result.Status, "skipped stages do not degrade the run")
	assert.Equal(t, StatusSkipped, result.Stages[1].Status)
	assert.Equal(t, "ENABLE_LLM_ENRICHMENT=false", result.Stages[1].Summary["reason"])
	assert.Zero(t, result.Stages[1].DurationSeconds)
}

func TestStagePanicIsIsolated(t *testing.T) {
	panicking := Stage{Name: "panics", Run: func(context.Context) (map[string]any, error) {
		panic("nil map write")
	}}
	o := New([]Stage{panicking, okStage("after")}, t.TempDir(), zap.NewNop())

	result := o.Run(context.Background())
	assert.Equal(t, StatusFailed, result.Stages[0].Status)
	assert.Contains(t, result.Stages[0].Error, "stage panic")
	assert.Equal(t, StatusSuccess, result.Stages[1].Status)
}

func TestStageDurationsSumWithinTotal(t *testing.T) {
	o := New([]Stage{okStage("a"), okStage("b"), okStage("c")}, t.TempDir(), zap.NewNop())
	result := o.Run(context.Background())

	var sum float64
	for _, stage := range result.Stages {
		sum += stage.DurationSeconds
	}
	assert.LessOrEqual(t, sum, result.DurationSeconds+0.05)
}
