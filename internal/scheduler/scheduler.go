// Package scheduler registers periodic crawl tasks from the source catalog
// and bounds their concurrency. Interval schedules use cron @every entries;
// daily/weekly/monthly use fixed UTC cron expressions, each smeared with a
// per-task startup jitter.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/source"
)

// RunSourceFunc executes one crawl for a source definition.
type RunSourceFunc func(ctx context.Context, def source.Definition) *crawler.Result

// RunPipelineFunc executes the daily analytical pipeline.
type RunPipelineFunc func(ctx context.Context)

// StateReader exposes the override flag and priming signal the scheduler
// consults.
type StateReader interface {
	SourceState(sourceID string) crawler.SourceState
	HasRawData() bool
}

// Config bounds scheduler behavior.
type Config struct {
	MaxConcurrentCrawls int
	JitterMaxSeconds    int
	PipelineCronHour    int
	PipelineCronMinute  int
	// DrainTimeout bounds how long Stop waits for in-flight runs.
	DrainTimeout time.Duration
}

// Scheduler owns the cron instance and the in-flight accounting.
type Scheduler struct {
	cfg         Config
	catalog     *source.Catalog
	runSource   RunSourceFunc
	runPipeline RunPipelineFunc
	state       StateReader
	logger      *zap.Logger

	cron      *cron.Cron
	globalSem chan struct{}

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	rng *rand.Rand
}

// New builds a Scheduler over the catalog.
func New(cfg Config, catalog *source.Catalog, runSource RunSourceFunc, runPipeline RunPipelineFunc, state StateReader, logger *zap.Logger) *Scheduler {
	if cfg.MaxConcurrentCrawls <= 0 {
		cfg.MaxConcurrentCrawls = 5
	}
	if cfg.JitterMaxSeconds < 0 {
		cfg.JitterMaxSeconds = 0
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:         cfg,
		catalog:     catalog,
		runSource:   runSource,
		runPipeline: runPipeline,
		state:       state,
		logger:      logger,
		cron:        cron.New(cron.WithLocation(time.UTC)),
		globalSem:   make(chan struct{}, cfg.MaxConcurrentCrawls),
		inFlight:    make(map[string]struct{}),
		ctx:         ctx,
		cancel:      cancel,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// cronSpec maps a symbolic schedule to a cron expression.
func cronSpec(schedule string) (string, error) {
	switch schedule {
	case "2h":
		return "@every 2h", nil
	case "4h":
		return "@every 4h", nil
	case "daily":
		return "0 6 * * *", nil
	case "weekly":
		return "0 3 * * 1", nil
	case "monthly":
		return "0 2 1 * *", nil
	default:
		return "", fmt.Errorf("unknown schedule %q", schedule)
	}
}

// Start registers all enabled sources plus the daily pipeline and starts
// the cron loop. It does not block; first-run priming happens async.
func (s *Scheduler) Start() error {
	registered := 0
	for _, def := range s.catalog.All() {
		def := def
		if !s.enabled(def) {
			continue
		}
		spec, err := cronSpec(def.Schedule)
		if err != nil {
			s.logger.Warn("skipping source with unknown schedule",
				zap.String("source_id", def.ID),
				zap.String("schedule", def.Schedule),
			)
			continue
		}
		jitter := s.jitter()
		if _, err := s.cron.AddFunc(spec, func() {
			s.runWithJitter(def, jitter)
		}); err != nil {
			return fmt.Errorf("register %s: %w", def.ID, err)
		}
		registered++
	}

	if s.runPipeline != nil {
		spec := fmt.Sprintf("%d %d * * *", s.cfg.PipelineCronMinute, s.cfg.PipelineCronHour)
		if _, err := s.cron.AddFunc(spec, func() {
			s.runPipeline(s.ctx)
		}); err != nil {
			return fmt.Errorf("register pipeline: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.Int("sources", registered),
		zap.Int("pipeline_hour", s.cfg.PipelineCronHour),
		zap.Int("pipeline_minute", s.cfg.PipelineCronMinute),
	)

	// First-run priming: with an empty raw tree, run the pipeline once so
	// the read API has data before the first cron firing.
	if s.runPipeline != nil && s.state != nil && !s.state.HasRawData() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.logger.Info("raw data empty, priming pipeline")
			s.runPipeline(s.ctx)
		}()
	}
	return nil
}

// Trigger runs one source out-of-band. A run already in flight for the
// same source is rejected.
func (s *Scheduler) Trigger(sourceID string) error {
	def, ok := s.catalog.Get(sourceID)
	if !ok {
		return fmt.Errorf("source not found: %s", sourceID)
	}
	if !s.tryAcquireSource(def.ID) {
		return fmt.Errorf("source %s is already running", sourceID)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.releaseSource(def.ID)
		s.runBounded(def)
	}()
	return nil
}

// TriggerPipeline runs the full pipeline out-of-band.
func (s *Scheduler) TriggerPipeline() {
	if s.runPipeline == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runPipeline(s.ctx)
	}()
}

// RunAll triggers every enabled source (optionally limited to a dimension)
// and waits for completion. Used by the CLI and the pipeline crawl stage.
func (s *Scheduler) RunAll(ctx context.Context, dimension string) int {
	var wg sync.WaitGroup
	ran := 0
	for _, def := range s.catalog.All() {
		def := def
		if !s.enabled(def) {
			continue
		}
		if dimension != "" && def.Dimension != dimension {
			continue
		}
		if !s.tryAcquireSource(def.ID) {
			continue
		}
		ran++
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.releaseSource(def.ID)
			s.runBoundedCtx(ctx, def)
		}()
	}
	wg.Wait()
	return ran
}

// Stop quiesces: no new firings, then wait up to the drain deadline for
// in-flight runs before cancelling them.
func (s *Scheduler) Stop() {
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.DrainTimeout):
		s.logger.Warn("drain deadline reached, cancelling in-flight runs")
		s.cancel()
		<-done
	}
	s.cancel()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) enabled(def source.Definition) bool {
	if s.state != nil {
		if override := s.state.SourceState(def.ID).IsEnabledOverride; override != nil {
			return *override
		}
	}
	return def.IsEnabled()
}

func (s *Scheduler) jitter() time.Duration {
	if s.cfg.JitterMaxSeconds == 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.rng.Intn(s.cfg.JitterMaxSeconds+1)) * time.Second
}

func (s *Scheduler) runWithJitter(def source.Definition, jitter time.Duration) {
	if !s.enabled(def) {
		return
	}
	if !s.tryAcquireSource(def.ID) {
		s.logger.Debug("skipping overlapping run", zap.String("source_id", def.ID))
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.releaseSource(def.ID)
		if jitter > 0 {
			timer := time.NewTimer(jitter)
			defer timer.Stop()
			select {
			case <-s.ctx.Done():
				return
			case <-timer.C:
			}
		}
		s.runBounded(def)
	}()
}

func (s *Scheduler) runBounded(def source.Definition) {
	s.runBoundedCtx(s.ctx, def)
}

func (s *Scheduler) runBoundedCtx(ctx context.Context, def source.Definition) {
	select {
	case s.globalSem <- struct{}{}:
		defer func() { <-s.globalSem }()
	case <-ctx.Done():
		return
	}
	s.runSource(ctx, def)
}

func (s *Scheduler) tryAcquireSource(sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.inFlight[sourceID]; running {
		return false
	}
	s.inFlight[sourceID] = struct{}{}
	return true
}

func (s *Scheduler) releaseSource(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, sourceID)
}

// InFlight reports how many source runs are active.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}
