package session

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"nobugs-bank/models"
)

const (
	sessionFile = "session.json"
	keyFile     = "client.key"
)

type fileRecord struct {
	Username    string          `json:"username"`
	Role        models.Role     `json:"role"`
	SealedToken string          `json:"sealed_token"`
	User        *models.Profile `json:"user,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// FileStore is the CLI's local storage: one session per directory, the
// credential sealed with a key generated next to it on first use.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) Save(rec Record) error {
	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return err
	}
	sealer, err := f.sealer()
	if err != nil {
		return err
	}
	sealed, err := sealer.Seal([]byte(rec.Session.Token))
	if err != nil {
		return err
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	data, err := json.MarshalIndent(fileRecord{
		Username:    rec.Session.Username,
		Role:        rec.Session.Role,
		SealedToken: base64.StdEncoding.EncodeToString(sealed),
		User:        rec.User,
		CreatedAt:   created,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.dir, sessionFile), data, 0600)
}

func (f *FileStore) Load() (Record, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, sessionFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	var fr fileRecord
	if err := json.Unmarshal(data, &fr); err != nil {
		return Record{}, fmt.Errorf("decode session file: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(fr.SealedToken)
	if err != nil {
		return Record{}, ErrCorrupt
	}
	sealer, err := f.sealer()
	if err != nil {
		return Record{}, err
	}
	token, err := sealer.Open(sealed)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Session:   models.Session{Username: fr.Username, Role: fr.Role, Token: string(token)},
		User:      fr.User,
		CreatedAt: fr.CreatedAt,
	}, nil
}

// Clear removes the stored credential and cached user. A missing file is not an error.
func (f *FileStore) Clear() error {
	err := os.Remove(filepath.Join(f.dir, sessionFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *FileStore) sealer() (*Sealer, error) {
	path := filepath.Join(f.dir, keyFile)
	key, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		key = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(f.dir, 0700); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, key, 0600); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return NewSealer(key)
}
