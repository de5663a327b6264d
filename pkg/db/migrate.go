package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Migrate 执行幂等的建表脚本（CREATE ... IF NOT EXISTS）
func Migrate(ctx context.Context, pool *pgxpool.Pool, schema string, logger *zap.Logger) error {
	logger.Info("Applying database schema")

	if _, err := pool.Exec(ctx, schema); err != nil {
		logger.Error("Failed to apply schema", zap.Error(err))
		return fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("Database schema is up to date")
	return nil
}
