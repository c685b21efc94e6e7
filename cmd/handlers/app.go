package handlers

import (
	"fmt"

	"skim/internal/cache"
	"skim/internal/clusterer"
	"skim/internal/config"
	"skim/internal/feeds"
	"skim/internal/fetch"
	"skim/internal/gmail"
	"skim/internal/library"
	"skim/internal/llm"
	"skim/internal/logger"
	"skim/internal/notify"
	"skim/internal/related"
	"skim/internal/resolver"
	"skim/internal/scheduler"
	"skim/internal/store"
	"skim/internal/summarize"
)

// App holds the wired application components for one command invocation.
type App struct {
	Config     *config.Config
	Store      *store.Store
	Cache      *cache.Tiered
	Provider   llm.Provider
	Parser     *feeds.Parser
	Fetcher    *fetch.Enhanced
	Resolver   *resolver.Resolver
	Notifier   *notify.Engine
	Summarizer *summarize.Summarizer
	Clusterer  *clusterer.Clusterer
	Library    *library.Library
	Related    *related.Finder
	Mailer     *gmail.Poller
	Scheduler  *scheduler.Scheduler

	renderer *fetch.Renderer
}

// openApp loads configuration and wires every component. Components that
// need credentials (LLM provider, Gmail, related links) stay nil when
// unconfigured; their commands report that instead of failing at startup.
func openApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.Open(cfg.App.DBPath)
	if err != nil {
		return nil, err
	}

	tiered, err := cache.NewTiered(cfg.Cache.MemoryCapacity, cfg.Cache.Directory, cfg.Cache.DiskTTL)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	provider, err := llm.NewFromConfig(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	app := &App{
		Config:   cfg,
		Store:    st,
		Cache:    tiered,
		Provider: provider,
		Parser:   feeds.NewParser(),
		Resolver: resolver.New(),
		Notifier: notify.New(st),
	}

	fetcher := fetch.New(fetch.Options{MinContentLength: cfg.Fetch.MinContentLength})
	var renderer *fetch.Renderer
	if cfg.Fetch.EnableJSRender {
		renderer = fetch.NewRenderer(cfg.Fetch.JSRenderTimeout)
		app.renderer = renderer
	}
	var archiver *fetch.Archiver
	if cfg.Fetch.EnableArchive {
		archiver = fetch.NewArchiver(cfg.Fetch.ArchiveMaxAge)
	}
	app.Fetcher = fetch.NewEnhanced(fetcher, renderer, archiver)

	if provider != nil {
		app.Summarizer = summarize.New(provider, tiered, summarize.Options{
			DefaultTier:   llm.TierFast,
			DisableCritic: cfg.AI.DisableCritic,
		})
		app.Clusterer = clusterer.New(provider, tiered, st)
	}

	app.Library = library.New(st, app.Fetcher, app.Resolver, library.Options{
		UploadsDir:      cfg.App.UploadsDir,
		MaxUploadSizeMB: cfg.Library.MaxUploadSizeMB,
	})

	if cfg.Related.Enabled && cfg.Related.ExaAPIKey != "" {
		app.Related = related.NewFinder(cfg.Related.ExaAPIKey, provider, tiered)
	}

	if cfg.Gmail.ClientID != "" && cfg.Gmail.ClientSecret != "" {
		app.Mailer = gmail.NewPoller(cfg.Gmail.ClientID, cfg.Gmail.ClientSecret)
	}

	// Interface fields must stay nil (not typed-nil) when a component is off.
	var sum scheduler.Summarizer
	if app.Summarizer != nil {
		sum = app.Summarizer
	}
	var mailer scheduler.Mailer
	if app.Mailer != nil {
		mailer = app.Mailer
	}
	app.Scheduler = scheduler.New(st, app.Parser, app.Fetcher, app.Resolver, app.Notifier, sum, mailer, scheduler.Options{
		ArchiveAfterDays: cfg.App.ArchiveAfterDays,
	})

	return app, nil
}

// Close releases the store and the shared browser process.
func (a *App) Close() {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if err := a.Store.Close(); err != nil {
		logger.Warn("failed to close store", "error", err)
	}
}
