package app

import (
	"context"
	"fmt"

	"github.com/rpattn/iptvsync/internal/config"
	"github.com/rpattn/iptvsync/internal/db"
	"github.com/rpattn/iptvsync/internal/repository"

	"go.uber.org/zap"
)

// Store bundles the repositories of the configured storage driver.
type Store struct {
	Accounts repository.AccountRepository
	Logs     repository.IngestionLogRepository
	close    func()
}

// OpenStore connects to Postgres (running migrations when enabled) or opens
// the embedded sqlite file, depending on database.driver.
func OpenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Store, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		gdb, err := db.OpenSQLite(cfg.SQLite.Path, repository.SQLiteModels()...)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite store", zap.String("path", cfg.SQLite.Path))
		return &Store{
			Accounts: repository.NewGormAccountRepository(gdb),
			Logs:     repository.NewGormIngestionLogRepository(gdb),
			close: func() {
				if err := db.CloseSQLite(gdb); err != nil {
					logger.Warn("failed to close sqlite store", zap.Error(err))
				}
			},
		}, nil

	case config.DriverPostgres:
		if cfg.Database.Migrate {
			if err := db.RunMigrations(cfg.Database.Config, logger); err != nil {
				return nil, err
			}
		}
		conn, err := db.NewConnection(ctx, cfg.Database.Config)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to postgres",
			zap.String("host", cfg.Database.Host),
			zap.String("dbname", cfg.Database.DBName),
		)
		return &Store{
			Accounts: repository.NewAccountRepository(conn.Pool),
			Logs:     repository.NewIngestionLogRepository(conn.Pool),
			close:    conn.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// Ping checks the account store.
func (s *Store) Ping(ctx context.Context) error {
	return s.Accounts.Ping(ctx)
}

// Close releases the underlying connections.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}
