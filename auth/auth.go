// Package auth ties a browser to its stored client session through a signed
// cookie and gates screens by role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"nobugs-bank/models"
	"nobugs-bank/session"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

const CookieName = "nobugs_session"

var ErrInvalidToken = errors.New("invalid session token")

type Claims struct {
	SessionID string      `json:"sid"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	jwt.StandardClaims
}

// Current is the session attached to a request by VerifyToken.
type Current struct {
	ID     string
	Record session.Record
}

func (c *Current) Session() *models.Session {
	return &c.Record.Session
}

type contextKey struct{}

func WithCurrent(ctx context.Context, cur *Current) context.Context {
	return context.WithValue(ctx, contextKey{}, cur)
}

// FromContext returns the request's session, if VerifyToken found one.
func FromContext(ctx context.Context) (*Current, bool) {
	cur, ok := ctx.Value(contextKey{}).(*Current)
	return cur, ok && cur != nil
}

// Manager issues session cookies and resolves them back to stored records.
type Manager struct {
	key   []byte
	ttl   time.Duration
	store session.Store
	now   func() time.Time
}

func NewManager(key []byte, ttl time.Duration, store session.Store) *Manager {
	return &Manager{key: key, ttl: ttl, store: store, now: time.Now}
}

func (m *Manager) IssueToken(sessionID string, sess models.Session, expires time.Time) (string, error) {
	claims := &Claims{
		SessionID: sessionID,
		Username:  sess.Username,
		Role:      sess.Role,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  m.now().Unix(),
			ExpiresAt: expires.Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.key)
}

func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Start stores a new session and sets its cookie on w.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, sess models.Session, user *models.Profile) (string, error) {
	id := uuid.NewString()
	now := m.now()
	rec := session.Record{
		Session:   sess,
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, id, rec); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	token, err := m.IssueToken(id, sess, rec.ExpiresAt)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  rec.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	log.Printf("session started id=%s user=%s role=%s", id, sess.Username, sess.Role)
	return token, nil
}

// Update replaces the stored record of the current session, e.g. after the
// cached profile changed.
func (m *Manager) Update(ctx context.Context, cur *Current) error {
	return m.store.Save(ctx, cur.ID, cur.Record)
}

// End forgets the credential and cached user and expires the cookie.
func (m *Manager) End(ctx context.Context, w http.ResponseWriter, cur *Current) error {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if cur == nil {
		return nil
	}
	if err := m.store.Delete(ctx, cur.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	log.Printf("session ended id=%s user=%s", cur.ID, cur.Record.Session.Username)
	return nil
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// VerifyToken attaches the stored session named by the request's cookie or
// bearer token. Requests without a valid one continue anonymously.
func (m *Manager) VerifyToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.ParseToken(tokenString)
		if err != nil {
			log.Printf("session token rejected path=%s error=%v", r.URL.Path, err)
			next.ServeHTTP(w, r)
			return
		}
		rec, err := m.store.Load(r.Context(), claims.SessionID)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				log.Printf("session load failed id=%s error=%v", claims.SessionID, err)
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithCurrent(r.Context(), &Current{ID: claims.SessionID, Record: rec})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession sends anonymous requests back to the login screen.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur, ok := FromContext(r.Context())
		if !ok || !cur.Session().Authenticated() {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole renders the wrapped screen only for an exact role match.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cur, ok := FromContext(r.Context())
			if !ok || !cur.Session().Authenticated() || cur.Record.Session.Role != role {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
