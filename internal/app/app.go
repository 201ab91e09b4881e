// Package app wires configuration, the generation backend and storage
// together, and implements the command-line operations.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"adaptive-meal-planner/internal/config"
	"adaptive-meal-planner/internal/database"
	"adaptive-meal-planner/internal/engine"
	"adaptive-meal-planner/internal/llm"
	"adaptive-meal-planner/internal/metrics"
	"adaptive-meal-planner/internal/planner"
	"adaptive-meal-planner/internal/session"

	"github.com/google/uuid"
)

// App holds the application's dependencies.
type App struct {
	cfg          *config.Config
	textGen      llm.TextGenerator
	gateway      *planner.Gateway
	db           *database.DB
	metricsStore *metrics.Store
}

// NewApp connects to the configured backend and opens the metrics database.
// Missing backend credentials are not fatal: every generation request then
// fails with planner.ErrGenerationUnavailable.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	textGen, err := llm.NewTextGenerator(ctx, cfg)
	switch {
	case errors.Is(err, llm.ErrNoCredentials):
		log.Printf("Warning: %v; plan generation is unavailable", err)
		textGen = nil
	case err != nil:
		return nil, fmt.Errorf("failed to create text generator: %w", err)
	}

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		closeGenerator(textGen)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return newApp(cfg, textGen, db), nil
}

func newApp(cfg *config.Config, textGen llm.TextGenerator, db *database.DB) *App {
	return &App{
		cfg:          cfg,
		textGen:      textGen,
		gateway:      planner.NewGateway(textGen),
		db:           db,
		metricsStore: metrics.NewStore(db.SQL),
	}
}

func (a *App) Config() *config.Config { return a.cfg }

// Gateway is the generation gateway shared by every session.
func (a *App) Gateway() *planner.Gateway { return a.gateway }

func (a *App) MetricsStore() *metrics.Store { return a.metricsStore }

// NewSessionStore builds the in-memory session store for a long-running surface.
func (a *App) NewSessionStore() *session.Store {
	return session.NewStore(a.cfg.SessionCapacity, a.cfg.SessionTTL, a.gateway, engine.WithUsageRecorder(a.metricsStore))
}

// newSession starts a one-off session for a CLI run.
func (a *App) newSession() *session.Session {
	return session.New(uuid.NewString(), a.gateway, engine.WithUsageRecorder(a.metricsStore))
}

// generationContext applies the configured deadline to one backend call.
func (a *App) generationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.GenerationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.cfg.GenerationTimeout)
}

func (a *App) Close() error {
	closeGenerator(a.textGen)
	return a.db.Close()
}

func closeGenerator(textGen llm.TextGenerator) {
	if c, ok := textGen.(llm.Closer); ok {
		if err := c.Close(); err != nil {
			log.Printf("failed to close text generator: %v", err)
		}
	}
}
