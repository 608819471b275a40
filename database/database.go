package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/go-sql-driver/mysql"
)

const sessionsTable = `
CREATE TABLE IF NOT EXISTS client_sessions (
    id           CHAR(36)      NOT NULL PRIMARY KEY,
    username     VARCHAR(255)  NOT NULL,
    role         VARCHAR(16)   NOT NULL,
    sealed_token VARBINARY(512) NOT NULL,
    cached_user  TEXT          NULL,
    created_at   DATETIME      NOT NULL,
    expires_at   DATETIME      NULL,
    INDEX idx_client_sessions_expires (expires_at)
)`

// Connect opens the MySQL pool for the session store. Times are read back as
// time.Time in UTC whatever the DSN says.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	log.Printf("database connection established addr=%s db=%s", cfg.Addr, cfg.DBName)
	return db, nil
}

// Migrate creates the tables the client owns.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sessionsTable); err != nil {
		return fmt.Errorf("create client_sessions: %w", err)
	}
	return nil
}

// PurgeExpired removes sessions past their expiry and reports how many went.
func PurgeExpired(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM client_sessions WHERE expires_at IS NOT NULL AND expires_at <= ?", now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
