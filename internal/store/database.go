package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Database wraps the PostgreSQL connection used for the dataset mirror and
// the harvest run history.
type Database struct {
	conn *sql.DB
	dsn  string
}

// NewDatabase opens and pings a PostgreSQL connection.
func NewDatabase(dsn string) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{
		conn: db,
		dsn:  dsn,
	}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// DB returns the underlying *sql.DB for queries
func (db *Database) DB() *sql.DB {
	return db.conn
}

type migration struct {
	version string
	sql     string
}

var migrations = []migration{
	{
		version: "001_create_fixtures",
		sql: `
			CREATE TABLE IF NOT EXISTS fixtures (
				position     INTEGER NOT NULL,
				season       TEXT NOT NULL,
				league       TEXT NOT NULL,
				week         TEXT NOT NULL,
				match_date   TEXT NOT NULL DEFAULT '',
				code         TEXT NOT NULL,
				home_team    TEXT NOT NULL,
				away_team    TEXT NOT NULL,
				ft_score     TEXT NOT NULL,
				ht_score     TEXT NOT NULL DEFAULT '',
				odds_home    NUMERIC(10,3),
				odds_draw    NUMERIC(10,3),
				odds_away    NUMERIC(10,3),
				odds_home_or_draw NUMERIC(10,3),
				odds_home_or_away NUMERIC(10,3),
				odds_away_or_draw NUMERIC(10,3),
				odds_under   NUMERIC(10,3),
				odds_over    NUMERIC(10,3)
			);
			CREATE INDEX IF NOT EXISTS idx_fixtures_slice ON fixtures (season, league, week);
		`,
	},
	{
		version: "002_create_harvest_runs",
		sql: `
			CREATE TABLE IF NOT EXISTS harvest_runs (
				run_id         TEXT PRIMARY KEY,
				trigger        TEXT NOT NULL,
				status         TEXT NOT NULL,
				status_message TEXT,
				leagues_total  INTEGER NOT NULL DEFAULT 0,
				leagues_done   INTEGER NOT NULL DEFAULT 0,
				records        INTEGER NOT NULL DEFAULT 0,
				checkpoint     TEXT,
				last_error     TEXT,
				created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				started_at     TIMESTAMPTZ,
				completed_at   TIMESTAMPTZ
			);
			CREATE INDEX IF NOT EXISTS idx_harvest_runs_created ON harvest_runs (created_at DESC);
		`,
	},
}

// RunMigrations applies every migration not yet recorded in schema_migrations.
func (db *Database) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	// Create migrations tracking table
	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		if err := db.runMigration(ctx, m); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", m.version, err)
		}
	}

	log.Println("✓ All migrations completed successfully")
	return nil
}

// createMigrationsTable creates a table to track which migrations have been run
func (db *Database) createMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := db.conn.ExecContext(ctx, query)
	return err
}

// runMigration runs a single migration if it hasn't been applied yet
func (db *Database) runMigration(ctx context.Context, m migration) error {
	var exists bool
	err := db.conn.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.version).Scan(&exists)
	if err != nil {
		return err
	}

	if exists {
		log.Printf("  ⊘ Skipping %s (already applied)", m.version)
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Printf("  ✓ Applied %s", m.version)
	return nil
}

// HealthCheck performs a health check on the database
func (db *Database) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return db.conn.PingContext(ctx)
}
