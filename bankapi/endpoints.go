package bankapi

import (
	"context"
	"net/http"

	"nobugs-bank/models"
)

// Login exchanges credentials for the user's role. It sends no Authorization header.
func (c *Client) Login(ctx context.Context, username, password string) (models.LoginResponse, error) {
	var resp models.LoginResponse
	err := c.do(ctx, nil, http.MethodPost, "/auth/login", models.LoginRequest{
		Username: username,
		Password: password,
	}, &resp)
	return resp, err
}

func (c *Client) Profile(ctx context.Context, sess *models.Session) (models.Profile, error) {
	var profile models.Profile
	err := c.authorized(ctx, sess, http.MethodGet, "/customer/profile", nil, &profile)
	return profile, err
}

func (c *Client) UpdateProfile(ctx context.Context, sess *models.Session, name string) error {
	return c.authorized(ctx, sess, http.MethodPut, "/customer/profile", models.ProfileUpdate{Name: name}, nil)
}

func (c *Client) Accounts(ctx context.Context, sess *models.Session) ([]models.Account, error) {
	var accounts []models.Account
	err := c.authorized(ctx, sess, http.MethodGet, "/customer/accounts", nil, &accounts)
	return accounts, err
}

func (c *Client) CreateAccount(ctx context.Context, sess *models.Session) (models.Account, error) {
	var account models.Account
	err := c.authorized(ctx, sess, http.MethodPost, "/accounts", nil, &account)
	return account, err
}

func (c *Client) Deposit(ctx context.Context, sess *models.Session, req models.DepositRequest) error {
	return c.authorized(ctx, sess, http.MethodPost, "/accounts/deposit", req, nil)
}

func (c *Client) Transfer(ctx context.Context, sess *models.Session, req models.TransferRequest) error {
	return c.authorized(ctx, sess, http.MethodPost, "/accounts/transfer", req, nil)
}

// Users lists every user with nested accounts and transactions. The backend
// only answers it for an elevated credential.
func (c *Client) Users(ctx context.Context, sess *models.Session) ([]models.User, error) {
	var users []models.User
	err := c.authorized(ctx, sess, http.MethodGet, "/admin/users", nil, &users)
	return users, err
}

func (c *Client) CreateUser(ctx context.Context, sess *models.Session, user models.NewUser) (models.User, error) {
	var created models.User
	err := c.authorized(ctx, sess, http.MethodPost, "/admin/users", user, &created)
	return created, err
}

// Directory lists users with a fixed elevated session. It refetches on every call.
type Directory struct {
	client   *Client
	elevated *models.Session
}

func NewDirectory(client *Client, elevated *models.Session) *Directory {
	return &Directory{client: client, elevated: elevated}
}

func (d *Directory) Users(ctx context.Context) ([]models.User, error) {
	return d.client.Users(ctx, d.elevated)
}
