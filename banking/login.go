package banking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nobugs-bank/bankapi"
	"nobugs-bank/models"
	"nobugs-bank/session"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type LoginAPI interface {
	Login(ctx context.Context, username, password string) (models.LoginResponse, error)
}

// Login asks the backend for the user's role and builds the session around
// the derived credential.
func Login(ctx context.Context, api LoginAPI, username, password string) (models.Session, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return models.Session{}, models.Invalid("", "Please enter a username and password.")
	}
	resp, err := api.Login(ctx, username, password)
	if err != nil {
		var rejected *bankapi.RejectedError
		if errors.As(err, &rejected) {
			return models.Session{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, rejected.Message)
		}
		return models.Session{}, err
	}
	if resp.Role != models.RoleAdmin && resp.Role != models.RoleUser {
		return models.Session{}, fmt.Errorf("login: unexpected role %q", resp.Role)
	}
	return session.New(username, resp.Role, password), nil
}

// Landing is where a freshly logged in user is sent.
func Landing(role models.Role) string {
	if role == models.RoleAdmin {
		return "/admin"
	}
	return "/dashboard"
}
