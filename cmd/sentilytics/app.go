package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"sentilytics/internal/config"
	"sentilytics/internal/gateway"
	"sentilytics/internal/insight"
	"sentilytics/internal/logging"
	"sentilytics/internal/session"
	"sentilytics/internal/store"
	"sentilytics/internal/types"
)

// app bundles the wired components every command needs: config, the
// feedback store, the Gemini gateway, and the insight orchestrator.
type app struct {
	workspace string
	cfg       *config.Config
	store     *store.Store
	gateway   *gateway.Client
	orch      *insight.Orchestrator
}

// newApp loads config, initializes category logging, opens the store,
// and wires the gateway behind the orchestrator.
func newApp() (*app, error) {
	ws := workspace
	if ws == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve workspace: %w", err)
		}
		ws = cwd
	}

	if err := logging.Initialize(ws); err != nil {
		logger.Warn("File logging unavailable", zap.Error(err))
	}

	cfg, err := config.Load(filepath.Join(ws, config.DefaultPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	key := apiKey
	if key == "" {
		key = cfg.Gemini.APIKey
	}

	gw := gateway.NewClientWithConfig(gateway.Config{
		APIKey:          key,
		BaseURL:         cfg.Gemini.BaseURL,
		Model:           cfg.Gemini.Model,
		Timeout:         cfg.GetGeminiTimeout(),
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
	})

	dbPath := cfg.Store.DatabasePath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(ws, dbPath)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	logging.Boot("App wired (workspace=%s model=%s)", ws, gw.GetModel())
	return &app{
		workspace: ws,
		cfg:       cfg,
		store:     st,
		gateway:   gw,
		orch:      insight.New(gw),
	}, nil
}

// Close releases the store.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.Warn("Failed to close store", zap.Error(err))
	}
}

// currentUser returns the logged-in user or an actionable error.
func (a *app) currentUser() (types.User, error) {
	user, ok, err := session.Current(a.store)
	if err != nil {
		return types.User{}, err
	}
	if !ok {
		return types.User{}, fmt.Errorf("not logged in; run 'sentilytics login --email you@example.com' first")
	}
	return user, nil
}

// visibleCorpus loads the full corpus and scopes it to the user.
func (a *app) visibleCorpus(user types.User) ([]types.FeedbackRecord, error) {
	corpus, err := a.store.List()
	if err != nil {
		return nil, err
	}
	return session.Filter(user, corpus), nil
}
