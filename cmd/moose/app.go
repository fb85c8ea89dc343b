package main

import (
	"fmt"
	"net/http"
	"time"

	"openmoose/internal/brain"
	"openmoose/internal/browser"
	"openmoose/internal/config"
	"openmoose/internal/embedding"
	"openmoose/internal/logging"
	"openmoose/internal/memory"
	"openmoose/internal/orchestrator"
	"openmoose/internal/router"
	"openmoose/internal/skills"
)

// app holds the wired pipeline for the lifetime of one command.
type app struct {
	cfg     *config.Config
	engine  embedding.Engine
	memory  *memory.SQLiteStore
	router  *router.Router
	orch    *orchestrator.Orchestrator
	reader  *browser.Reader
	watcher *config.Watcher
}

// newApp loads configuration and wires the full pipeline: embedding
// engine, memory store, skill routes, tool registry, gateway client,
// orchestrator and the config watcher.
func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := logging.Initialize(config.MooseHome()); err != nil {
		fmt.Printf("warning: file logging unavailable: %v\n", err)
	}
	logging.Boot("moose starting (model=%s, gateway=%s)", cfg.Gateway.Model, cfg.Gateway.BaseURL)

	engine, err := embedding.New(embedding.Options{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding engine: %w", err)
	}

	mem, err := memory.NewSQLiteStore(cfg.Memory.DatabasePath, engine)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}

	reader := browser.NewReader()
	skillCtx := &skills.Context{
		Memory:    mem,
		Sandbox:   skills.NewLocalSandbox(),
		Browser:   reader,
		Speech:    skills.LogSpeaker{},
		Messenger: skills.LogMessenger{},
		HTTP:      &http.Client{Timeout: 15 * time.Second},
	}

	builder := router.NewBuilder(engine).
		WithThresholds(cfg.Router.RouteThreshold, cfg.Router.ExecuteThreshold)
	for _, route := range skills.Builtin() {
		builder.Register(route)
	}
	manifests, err := skills.LoadManifests(cfg.Router.SkillsDir)
	if err != nil {
		logging.Get(logging.CategorySkills).Warn("skill manifests unavailable: %v", err)
	}
	for _, route := range manifests {
		builder.Register(route)
	}
	rt := builder.Build()

	gateway := brain.NewGatewayClient(brain.GatewayConfig{
		BaseURL: cfg.Gateway.BaseURL,
		APIKey:  cfg.Gateway.APIKey,
		Model:   cfg.Gateway.Model,
		Timeout: cfg.GetGatewayTimeout(),
	})

	orch := orchestrator.New(rt, gateway, skills.BuildToolRegistry(skillCtx), mem, skillCtx, orchestrator.Options{
		MaxToolIterations:  cfg.Orchestrator.MaxToolIterations,
		DecomposeMinLength: cfg.Orchestrator.DecomposeMinLength,
		MaxSubActions:      cfg.Orchestrator.MaxSubActions,
		CaptureTriggers:    cfg.Orchestrator.CaptureTriggers,
	})

	a := &app{
		cfg:    cfg,
		engine: engine,
		memory: mem,
		router: rt,
		orch:   orch,
		reader: reader,
	}

	// Hot-reload keeps log category toggles live; pipeline thresholds
	// apply on next start.
	if watcher, werr := config.NewWatcher(configPath); werr == nil {
		a.watcher = watcher
	} else {
		logging.Boot("config watcher unavailable: %v", werr)
	}

	return a, nil
}

// Close releases everything newApp opened.
func (a *app) Close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.reader != nil {
		a.reader.Close()
	}
	if a.memory != nil {
		a.memory.Close()
	}
	logging.CloseAll()
}
