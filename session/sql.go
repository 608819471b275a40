package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nobugs-bank/models"
)

// SQLStore keeps shell sessions in the client_sessions table so they survive
// a restart. The credential column holds a sealed value only.
type SQLStore struct {
	db     *sql.DB
	sealer *Sealer
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, sealer *Sealer) *SQLStore {
	return &SQLStore{db: db, sealer: sealer, now: time.Now}
}

func (s *SQLStore) Save(ctx context.Context, id string, rec Record) error {
	sealed, err := s.sealer.Seal([]byte(rec.Session.Token))
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}
	var cached sql.NullString
	if rec.User != nil {
		data, err := json.Marshal(rec.User)
		if err != nil {
			return fmt.Errorf("encode cached user: %w", err)
		}
		cached = sql.NullString{String: string(data), Valid: true}
	}
	var expires sql.NullTime
	if !rec.ExpiresAt.IsZero() {
		expires = sql.NullTime{Time: rec.ExpiresAt.UTC(), Valid: true}
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO client_sessions (id, username, role, sealed_token, cached_user, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			username = VALUES(username),
			role = VALUES(role),
			sealed_token = VALUES(sealed_token),
			cached_user = VALUES(cached_user),
			expires_at = VALUES(expires_at)
	`, id, rec.Session.Username, string(rec.Session.Role), sealed, cached, created.UTC(), expires)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, id string) (Record, error) {
	var (
		rec     Record
		role    string
		sealed  []byte
		cached  sql.NullString
		expires sql.NullTime
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT username, role, sealed_token, cached_user, created_at, expires_at
		FROM client_sessions
		WHERE id = ?
	`, id)
	if err := row.Scan(&rec.Session.Username, &role, &sealed, &cached, &rec.CreatedAt, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("load session: %w", err)
	}
	rec.Session.Role = models.Role(role)
	if expires.Valid {
		rec.ExpiresAt = expires.Time
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
	if cached.Valid {
		var profile models.Profile
		if err := json.Unmarshal([]byte(cached.String), &profile); err != nil {
			return Record{}, fmt.Errorf("decode cached user: %w", err)
		}
		rec.User = &profile
	}
	return rec, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM client_sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
