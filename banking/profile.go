package banking

import (
	"context"
	"strings"

	"nobugs-bank/models"
)

type ProfileAPI interface {
	Profile(ctx context.Context, sess *models.Session) (models.Profile, error)
	UpdateProfile(ctx context.Context, sess *models.Session, name string) error
}

// UpdateProfile renames the user and returns the profile as the backend now
// reports it.
func UpdateProfile(ctx context.Context, api ProfileAPI, sess *models.Session, name string) (models.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Profile{}, models.Invalid("name", "Please enter a valid name.")
	}
	if err := api.UpdateProfile(ctx, sess, name); err != nil {
		return models.Profile{}, err
	}
	return api.Profile(ctx, sess)
}
