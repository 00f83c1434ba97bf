// Package app wires the subsystems together: config, logging, storage,
// fetch infrastructure, processors, pipeline, scheduler, and the read API.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/api"
	"github.com/Ryder-MHumble/deanagent/internal/browser"
	"github.com/Ryder-MHumble/deanagent/internal/config"
	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/fetcher"
	"github.com/Ryder-MHumble/deanagent/internal/httpclient"
	"github.com/Ryder-MHumble/deanagent/internal/index"
	"github.com/Ryder-MHumble/deanagent/internal/intel/briefing"
	"github.com/Ryder-MHumble/deanagent/internal/intel/personnel"
	"github.com/Ryder-MHumble/deanagent/internal/intel/policy"
	"github.com/Ryder-MHumble/deanagent/internal/intel/techfrontier"
	"github.com/Ryder-MHumble/deanagent/internal/intel/university"
	"github.com/Ryder-MHumble/deanagent/internal/logging"
	"github.com/Ryder-MHumble/deanagent/internal/metrics"
	"github.com/Ryder-MHumble/deanagent/internal/oracle"
	"github.com/Ryder-MHumble/deanagent/internal/pipeline"
	"github.com/Ryder-MHumble/deanagent/internal/scheduler"
	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/storage"
)

// App owns every long-lived subsystem.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Catalog   *source.Catalog
	Store     *storage.Store
	HTTP      *httpclient.Client
	Browser   *browser.Pool
	Runner    *crawler.Runner
	Scheduler *scheduler.Scheduler
	Pipeline  *pipeline.Orchestrator
	Oracle    oracle.Oracle

	Policy       *policy.Processor
	Personnel    *personnel.Processor
	TechFrontier *techfrontier.Processor
	University   *university.Processor
	Briefing     *briefing.Processor
}

// New builds the full application graph.
func New(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	catalog, err := source.LoadCatalog(cfg.Crawler.SourcesDir, logger)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	store := storage.New(cfg.Storage.DataDir, logger)

	httpClient := httpclient.New(httpclient.Config{
		PerDomainMax:        cfg.Crawler.PerDomainMax,
		DefaultRequestDelay: cfg.Crawler.DefaultRequestDelay,
		Timeout:             cfg.HTTPTimeout(),
		MaxRetries:          cfg.HTTP.MaxRetries,
		BackoffInitial:      time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
		BackoffJitter:       time.Duration(cfg.HTTP.BackoffJitterMs) * time.Millisecond,
	}, logger)

	pool := browser.NewPool(browser.Config{
		MaxContexts:     cfg.Browser.MaxContexts,
		WaitTimeout:     time.Duration(cfg.Browser.WaitTimeoutMs) * time.Millisecond,
		DetailTimeout:   time.Duration(cfg.Browser.DetailTimeoutMs) * time.Millisecond,
		ShutdownTimeout: time.Duration(cfg.Browser.ShutdownTimeoutMs) * time.Millisecond,
		DomainQPS:       cfg.Browser.DomainQPS,
	}, logger)

	registry := fetcher.NewRegistry(fetcher.Deps{
		HTTP:          httpClient,
		Browser:       fetcher.BrowserRenderer{Pool: pool},
		Snapshots:     store,
		Logger:        logger,
		TwitterAPIKey: cfg.Twitter.APIKey,
	})

	runner := crawler.NewRunner(registry.Build, store, logger)

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Catalog: catalog,
		Store:   store,
		HTTP:    httpClient,
		Browser: pool,
		Runner:  runner,
	}

	if cfg.OracleAvailable() {
		app.Oracle = oracle.NewClient(cfg.Oracle.APIKey, cfg.Oracle.Model)
	}

	processedRoot := store.ProcessedDir("")
	app.Policy = policy.New(store, processedRoot, logger)
	app.Personnel = personnel.New(store, processedRoot, logger)
	app.TechFrontier = techfrontier.New(store, processedRoot, logger)
	app.University = university.New(store, processedRoot, logger)
	app.Briefing = briefing.New(store, processedRoot, logger)

	app.Pipeline = pipeline.New(app.buildStages(), cfg.Storage.DataDir, logger)

	app.Scheduler = scheduler.New(scheduler.Config{
		MaxConcurrentCrawls: cfg.Scheduler.MaxConcurrentCrawls,
		JitterMaxSeconds:    cfg.Scheduler.JitterMaxSeconds,
		PipelineCronHour:    cfg.Pipeline.CronHour,
		PipelineCronMinute:  cfg.Pipeline.CronMinute,
		DrainTimeout:        30 * time.Second,
	}, catalog, app.RunSource, app.RunPipeline, store, logger)

	return app, nil
}

// RunSource executes one crawl and records metrics.
func (a *App) RunSource(ctx context.Context, def source.Definition) *crawler.Result {
	result := a.Runner.Run(ctx, def)
	metrics.RecordCrawl(result)
	return result
}

// RunPipeline executes the full daily pipeline.
func (a *App) RunPipeline(ctx context.Context) {
	result := a.Pipeline.Run(ctx)
	metrics.RecordPipeline(result.Status)
}

// oracleSkipReason explains why enrichment stages are skipped, or "".
func (a *App) oracleSkipReason() string {
	if !a.Config.Oracle.Enabled {
		return "ENABLE_LLM_ENRICHMENT=false"
	}
	if a.Config.Oracle.APIKey == "" {
		return "ORACLE_API_KEY not set"
	}
	return ""
}

func (a *App) buildStages() []pipeline.Stage {
	oracleSkip := a.oracleSkipReason
	return []pipeline.Stage{
		{
			Name: "crawl_all",
			Run: func(ctx context.Context) (map[string]any, error) {
				ran := a.Scheduler.RunAll(ctx, "")
				return map[string]any{"sources": ran}, nil
			},
		},
		{
			Name: "process_policy",
			Run: func(context.Context) (map[string]any, error) {
				return a.Policy.Process(policy.Options{})
			},
		},
		{
			Name: "process_personnel",
			Run: func(context.Context) (map[string]any, error) {
				return a.Personnel.Process(personnel.Options{})
			},
		},
		{
			Name: "process_university_eco",
			Run: func(context.Context) (map[string]any, error) {
				return a.University.Process(university.Options{})
			},
		},
		{
			Name: "process_tech_frontier",
			Run: func(context.Context) (map[string]any, error) {
				return a.TechFrontier.Process(techfrontier.Options{})
			},
		},
		{
			Name:   "enrich_policy_oracle",
			SkipIf: oracleSkip,
			Run: func(ctx context.Context) (map[string]any, error) {
				return a.Policy.EnrichWithOracle(ctx, a.Oracle, a.Config.Oracle.Threshold, 3)
			},
		},
		{
			Name:   "enrich_personnel_oracle",
			SkipIf: oracleSkip,
			Run: func(ctx context.Context) (map[string]any, error) {
				return a.Personnel.EnrichWithOracle(ctx, a.Oracle, 3)
			},
		},
		{
			Name:   "enrich_tech_frontier_oracle",
			SkipIf: oracleSkip,
			Run: func(ctx context.Context) (map[string]any, error) {
				return a.TechFrontier.EnrichWithOracle(ctx, a.Oracle)
			},
		},
		{
			Name: "generate_index",
			Run: func(context.Context) (map[string]any, error) {
				idx, err := index.Generate(a.Catalog, a.Store)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"total_sources":  idx.TotalSources,
					"total_enabled":  idx.TotalEnabled,
					"total_articles": idx.TotalArticles,
					"dimensions":     len(idx.Dimensions),
				}, nil
			},
		},
		{
			Name: "generate_briefing",
			SkipIf: func() string {
				if !a.Store.HasRawData() {
					return "no raw data to summarize"
				}
				return ""
			},
			Run: func(ctx context.Context) (map[string]any, error) {
				return a.Briefing.Process(ctx, a.Oracle, briefing.Options{})
			},
		},
	}
}

// APIServer builds the HTTP read API bound to this app.
func (a *App) APIServer() *api.Server {
	return api.NewServer(a.Catalog, a.Store, a.Scheduler, a.Logger)
}

// Close releases long-lived resources.
func (a *App) Close() {
	a.Browser.Close()
	_ = a.Logger.Sync()
}
