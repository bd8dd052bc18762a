package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"jericho/internal/config"
	"jericho/internal/db"
	"jericho/internal/engine"
	"jericho/internal/migrate"
)

// Options select the workspace and the overrides applied on top of its
// jericho.yml. Empty fields leave the file value alone.
type Options struct {
	Workspace  string
	TimeZone   string
	Classifier string
	Log        *zap.Logger
}

// Workspace is an opened, migrated workspace with its engine.
type Workspace struct {
	Path   string
	DB     *sql.DB
	Config *config.Config
	Engine engine.Engine
}

func (w *Workspace) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}

// ResolveConfig loads jericho.yml when present, falls back to defaults and
// applies overrides. The result is validated.
func ResolveConfig(opts Options) (*config.Config, error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.TimeZone != "" {
		cfg.Planner.TimeZone = opts.TimeZone
	}
	if opts.Classifier != "" {
		cfg.Planner.Classifier = opts.Classifier
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve opens the workspace database, migrates it and builds the engine.
func Resolve(ctx context.Context, opts Options) (*Workspace, error) {
	cfg, err := ResolveConfig(opts)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open workspace db: %w", err)
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	eng := engine.New(conn, cfg)
	if opts.Log != nil {
		eng.Log = opts.Log
	}
	return &Workspace{Path: db.Path(opts.Workspace), DB: conn, Config: cfg, Engine: eng}, nil
}
