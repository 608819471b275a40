package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nobugs-bank/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IsPostgresDSN reports whether dsn names a Postgres server rather than MySQL.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// PostgresStore is the client_sessions table on Postgres.
type PostgresStore struct {
	pool   *pgxpool.Pool
	sealer *Sealer
	now    func() time.Time
}

func NewPostgresStore(pool *pgxpool.Pool, sealer *Sealer) *PostgresStore {
	return &PostgresStore{pool: pool, sealer: sealer, now: time.Now}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS client_sessions (
			id           TEXT PRIMARY KEY,
			username     TEXT NOT NULL,
			role         TEXT NOT NULL,
			sealed_token BYTEA NOT NULL,
			cached_user  JSONB,
			created_at   TIMESTAMPTZ NOT NULL,
			expires_at   TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_client_sessions_expires ON client_sessions (expires_at);
	`)
	if err != nil {
		return fmt.Errorf("create client_sessions: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, id string, rec Record) error {
	sealed, err := s.sealer.Seal([]byte(rec.Session.Token))
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}
	var cached []byte
	if rec.User != nil {
		if cached, err = json.Marshal(rec.User); err != nil {
			return fmt.Errorf("encode cached user: %w", err)
		}
	}
	var expires *time.Time
	if !rec.ExpiresAt.IsZero() {
		t := rec.ExpiresAt.UTC()
		expires = &t
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO client_sessions (id, username, role, sealed_token, cached_user, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			role = EXCLUDED.role,
			sealed_token = EXCLUDED.sealed_token,
			cached_user = EXCLUDED.cached_user,
			expires_at = EXCLUDED.expires_at
	`, id, rec.Session.Username, string(rec.Session.Role), sealed, cached, created.UTC(), expires)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (Record, error) {
	var (
		rec     Record
		role    string
		sealed  []byte
		cached  []byte
		expires *time.Time
	)
	row := s.pool.QueryRow(ctx, `
		SELECT username, role, sealed_token, cached_user, created_at, expires_at
		FROM client_sessions
		WHERE id = $1
	`, id)
	if err := row.Scan(&rec.Session.Username, &role, &sealed, &cached, &rec.CreatedAt, &expires); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("load session: %w", err)
	}
	rec.Session.Role = models.Role(role)
	if expires != nil {
		rec.ExpiresAt = *expires
	}
	if rec.Expired(s.now()) {
		if err := s.Delete(ctx, id); err != nil {
			return Record{}, err
		}
		return Record{}, ErrNotFound
	}

	token, err := s.sealer.Open(sealed)
	if err != nil {
		return Record{}, fmt.Errorf("open credential: %w", err)
	}
	rec.Session.Token = string(token)
	if len(cached) > 0 {
		var profile models.Profile
		if err := json.Unmarshal(cached, &profile); err != nil {
			return Record{}, fmt.Errorf("decode cached user: %w", err)
		}
		rec.User = &profile
	}
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM client_sessions WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes sessions past their expiry and reports how many went.
func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM client_sessions WHERE expires_at IS NOT NULL AND expires_at <= $1", now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
