// Package store persists risk state and the decision ledger in PostgreSQL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"trading-core/internal/logging"
)

// Config holds database configuration.
type Config struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"5432"`
	User     string `yaml:"user" default:"postgres"`
	Password string `yaml:"password"`
	Database string `yaml:"database" default:"trading"`
	SSLMode  string `yaml:"ssl_mode" default:"disable"`
}

// DB wraps the PostgreSQL connection pool.
type DB struct {
	Pool   *pgxpool.Pool
	logger logging.Logger
}

// NewDB connects to PostgreSQL and verifies the connection.
func NewDB(ctx context.Context, cfg Config, logger logging.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger = logger.Component("store")
	logger.Info("connected to database", "database", cfg.Database)
	return &DB{Pool: pool, logger: logger}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("database connection closed")
	}
}

// RunMigrations creates the schema if it does not exist.
func (db *DB) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS risk_states (
			subscription_id VARCHAR(64) PRIMARY KEY,
			daily_loss_amount DECIMAL(20, 8) NOT NULL DEFAULT 0,
			last_loss_reset_date DATE NOT NULL,
			consecutive_losses INT NOT NULL DEFAULT 0,
			cooldown_until TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS trade_decisions (
			id SERIAL PRIMARY KEY,
			evaluation_id UUID NOT NULL UNIQUE,
			subscription_id VARCHAR(64) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			action VARCHAR(4) NOT NULL,
			confidence DECIMAL(5, 4) NOT NULL,
			signal_source VARCHAR(20) NOT NULL,
			approved BOOLEAN NOT NULL,
			reason TEXT NOT NULL,
			stop_loss_price DECIMAL(20, 8),
			take_profit_price DECIMAL(20, 8),
			position_size_pct DECIMAL(8, 4),
			risk_reward DECIMAL(8, 4),
			max_leverage INT,
			trailing_stop_active BOOLEAN NOT NULL DEFAULT FALSE,
			warnings JSONB,
			decision_source VARCHAR(10) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_decisions_subscription ON trade_decisions(subscription_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_decisions_symbol ON trade_decisions(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_decisions_created ON trade_decisions(created_at)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	db.logger.Info("migrations complete", "count", len(migrations))
	return nil
}
