package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskboard/internal/config"
	pkgconfig "taskboard/pkg/config"
	"taskboard/pkg/db"
	"taskboard/pkg/logger"
)

// env is what every subcommand needs: config, a logger and a pool.
type env struct {
	cfg  *config.Config
	log  *zap.Logger
	pool *pgxpool.Pool
}

func open(ctx context.Context) (*env, error) {
	name := configEnv
	if name == "" {
		name = pkgconfig.GetConfigEnv()
	}
	cfg, err := config.Load(configDir, name)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.NewLogger(cfg.LogLevel)
	pool, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return &env{cfg: cfg, log: log, pool: pool}, nil
}

func (e *env) Close() {
	e.pool.Close()
	e.log.Sync()
}
