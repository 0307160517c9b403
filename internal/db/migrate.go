package db

import (
	"context"
	"fmt"
	"strings"

	"MarksAPI/internal/db/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// Migrate applies the embedded goose migrations through the pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{log.Sugar().Named("goose")})
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.s.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.s.Fatalf(strings.TrimSuffix(format, "\n"), v...)
}
