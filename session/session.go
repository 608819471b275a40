// Package session derives client credentials and persists sessions between
// requests (shell) or process runs (CLI).
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"nobugs-bank/models"
)

var ErrNotFound = errors.New("session not found")

// BasicCredential derives the Authorization value from the login pair. The
// backend accepts this fixed scheme; it is reversible and cannot be revoked
// server-side, so stores seal it at rest.
func BasicCredential(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func New(username string, role models.Role, password string) models.Session {
	return models.Session{
		Username: username,
		Role:     role,
		Token:    BasicCredential(username, password),
	}
}

// Record is what a client keeps between requests: the credential and an
// optional cached profile for the header.
type Record struct {
	Session   models.Session
	User      *models.Profile
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Store keeps one record per shell session id.
type Store interface {
	Save(ctx context.Context, id string, rec Record) error
	Load(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error
}
