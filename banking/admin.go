package banking

import (
	"context"
	"log"
	"strings"

	"nobugs-bank/models"
)

type AdminAPI interface {
	Users(ctx context.Context, sess *models.Session) ([]models.User, error)
	CreateUser(ctx context.Context, sess *models.Session, user models.NewUser) (models.User, error)
}

func ListUsers(ctx context.Context, api AdminAPI, sess *models.Session) ([]models.User, error) {
	return api.Users(ctx, sess)
}

// CreateUser adds a user, USER role unless told otherwise, and returns the
// refreshed user list.
func CreateUser(ctx context.Context, api AdminAPI, sess *models.Session, user models.NewUser) ([]models.User, error) {
	user.Username = strings.TrimSpace(user.Username)
	if user.Username == "" || user.Password == "" {
		return nil, models.Invalid("", "Please enter a username and password.")
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Role != models.RoleUser && user.Role != models.RoleAdmin {
		return nil, models.Invalid("role", "Role must be USER or ADMIN.")
	}
	if _, err := api.CreateUser(ctx, sess, user); err != nil {
		return nil, err
	}
	log.Printf("user created by=%s username=%s role=%s", sess.Username, user.Username, user.Role)
	return api.Users(ctx, sess)
}
