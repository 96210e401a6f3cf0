package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/fincoach/internal/answerability"
	"github.com/Veraticus/fincoach/internal/catalog"
	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/config"
	"github.com/Veraticus/fincoach/internal/critic"
	"github.com/Veraticus/fincoach/internal/fallback"
	"github.com/Veraticus/fincoach/internal/guard"
	"github.com/Veraticus/fincoach/internal/llm"
	"github.com/Veraticus/fincoach/internal/model"
	"github.com/Veraticus/fincoach/internal/observe"
	"github.com/Veraticus/fincoach/internal/ofx"
	"github.com/Veraticus/fincoach/internal/orchestrator"
	"github.com/Veraticus/fincoach/internal/plaid"
	"github.com/Veraticus/fincoach/internal/router"
	"github.com/Veraticus/fincoach/internal/simplefin"
	"github.com/Veraticus/fincoach/internal/skills"
	"github.com/Veraticus/fincoach/internal/slots"
	"github.com/Veraticus/fincoach/internal/snapshot"
	"github.com/Veraticus/fincoach/internal/storage"
)

const eventBuffer = 256

// app is the wired pipeline plus the stores behind it.
type app struct {
	settings config.Settings
	logger   *slog.Logger
	catalog  *catalog.Catalog
	store    *storage.SQLiteStorage
	unknowns *fallback.UnknownLog
	resolver *slots.Resolver
	router   *router.Router
	orch     *orchestrator.Orchestrator
	sink     *observe.AsyncSink
}

// newApp loads settings and wires every component. withPipeline false skips
// the generation tiers and orchestrator for commands that only read stores.
func newApp(ctx context.Context, withPipeline bool) (*app, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	cat, err := loadCatalog(viper.GetString("catalog.path"))
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, settings.Storage.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Debug("Opened database", "path", store.Path())

	unknowns := fallback.NewUnknownLog(fallback.UnknownLogConfig{
		Persister:      store,
		Logger:         logger,
		Retention:      settings.Unknown.Retention(),
		MaxEntries:     settings.Unknown.MaxEntries,
		RetentionFloor: settings.Unknown.RetentionFloor,
	})
	records, err := store.ListUnknowns(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load unanswered questions: %w", err)
	}
	unknowns.Load(records)

	a := &app{
		settings: settings,
		logger:   logger,
		catalog:  cat,
		store:    store,
		unknowns: unknowns,
		resolver: slots.NewResolver(logger),
	}
	if !withPipeline {
		a.router = router.New(cat, router.WithLogger(logger))
		return a, nil
	}

	if err := a.wirePipeline(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wirePipeline() error {
	s := a.settings
	routerOpts := []router.Option{router.WithLogger(a.logger)}

	var standard, escalated llm.Client
	if s.LLM.Enabled() {
		stdClient, err := llm.NewClient(s.LLM.StandardConfig())
		if err != nil {
			return fmt.Errorf("failed to create standard generator: %w", err)
		}
		escClient, err := llm.NewClient(s.LLM.EscalatedConfig())
		if err != nil {
			return fmt.Errorf("failed to create escalated generator: %w", err)
		}
		stdTier := llm.NewTier(llm.TierStandard, stdClient, s.LLM.Timeout, s.LLM.MaxTokens, a.logger)
		standard = stdTier
		escalated = llm.NewTier(llm.TierEscalated, escClient, s.LLM.EscalatedTimeout, s.LLM.EscalatedMaxTokens, a.logger)
		routerOpts = append(routerOpts, router.WithClassifier(
			llm.NewIntentClassifier(stdTier, s.Router.GenerativeRatePerMinute, a.logger)))
	} else {
		a.logger.Debug("no generation provider configured, answering from templates")
	}
	a.router = router.New(a.catalog, routerOpts...)

	gate := answerability.NewGate(a.catalog, s.Cache.AnswerabilityTTL, s.Cache.MaxEntries, a.logger)
	a.sink = observe.NewAsyncSink(observe.MultiSink{a.store, observe.NewLogSink(a.logger)}, eventBuffer, a.logger)

	orch, err := orchestrator.New(orchestrator.Config{
		Catalog:            a.catalog,
		Resolver:           a.resolver,
		Router:             a.router,
		Gate:               gate,
		Executor:           skills.NewLocal(a.logger),
		Standard:           standard,
		Escalated:          escalated,
		Fallback:           fallback.NewGenerator(a.catalog, gate, a.unknowns, a.logger),
		Unknowns:           a.unknowns,
		Battery:            guard.DefaultBattery(),
		Critic:             critic.New(),
		Safety:             observe.NewSafetyClassifier(),
		Perf:               observe.NewPerfMonitor(observe.PerfThresholds{MaxLatency: s.Perf.MaxLatency, MaxTokens: s.Perf.MaxTokens}, a.logger),
		Sink:               a.sink,
		Logger:             a.logger,
		ResponseTTL:        s.Cache.ResponseTTL,
		ResponseCacheSize:  s.Cache.MaxEntries,
		EscalatedMaxTokens: s.LLM.EscalatedMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	a.orch = orch
	return nil
}

// close drains pending events before closing the database.
func (a *app) close() {
	if a.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.sink.Close(ctx); err != nil {
			a.logger.Warn("failed to flush request events", "error", err)
		}
		cancel()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}

// loadSnapshot builds the context snapshot from every configured source.
func (a *app) loadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	var providers []snapshot.Provider
	if a.settings.Snapshot.Path != "" {
		providers = append(providers, snapshot.NewFileProvider(a.settings.Snapshot.Path))
	}
	if len(a.settings.Snapshot.OFXFiles) > 0 {
		providers = append(providers, ofx.NewProvider(a.settings.Snapshot.OFXFiles, a.logger))
	}
	if a.settings.Plaid.Enabled {
		client, err := plaid.NewClient(a.settings.Plaid.ClientConfig(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Plaid client: %w", err)
		}
		providers = append(providers, plaid.NewProvider(client, a.settings.Plaid.Lookback(), a.logger))
	}
	if a.settings.SimpleFIN.Enabled {
		p, err := a.simpleFINProvider(ctx)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		a.logger.Warn("no snapshot sources configured; answers will be limited",
			"hint", "set snapshot.path, snapshot.ofx_files, plaid.enabled or simplefin.enabled")
	}

	snap, err := snapshot.Build(ctx, a.logger, providers...)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snap, nil
}

func (a *app) simpleFINProvider(ctx context.Context) (*simplefin.Provider, error) {
	s := a.settings.SimpleFIN
	accessURL := s.AccessURL
	if accessURL == "" {
		var err error
		accessURL, err = simplefin.LoadOrClaimAuth(ctx, s.Token, s.StateFile, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to authorize SimpleFIN: %w", err)
		}
	}
	client, err := simplefin.NewClient(accessURL, a.logger)
	if err != nil {
		return nil, err
	}
	return simplefin.NewProvider(client, s.Lookback(), a.logger), nil
}

// loadCatalog reads a catalog override from path, or the embedded default.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	data, err := os.ReadFile(config.ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return catalog.Load(data)
}

// session pairs the pipeline with one snapshot for repeated questions.
type session struct {
	orch *orchestrator.Orchestrator
	snap *model.Snapshot
}

// Ask implements tui.Asker. Rejected input comes back as the plain
// rephrase message.
func (s session) Ask(ctx context.Context, utterance string) (orchestrator.Response, error) {
	resp, err := s.orch.Handle(ctx, utterance, s.snap)
	if err != nil {
		return resp, errors.New(userMessage(err))
	}
	return resp, nil
}

// userMessage prefers the user-facing text of a UserError.
func userMessage(err error) string {
	var userErr *common.UserError
	if errors.As(err, &userErr) {
		return userErr.UserMessage
	}
	return err.Error()
}
