package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// The backend parses amounts with parseFloat semantics; send plain numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Session is the authenticated identity of one client instance. Token is sent
// verbatim as the Authorization header value.
type Session struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Token    string `json:"-"`
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

type User struct {
	ID       int64     `json:"id"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	Accounts []Account `json:"accounts"`
}

// DisplayName is the name shown next to a matched search result.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

type Profile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

// HeaderName is the identity rendered in the page header.
func (p Profile) HeaderName() string {
	if strings.TrimSpace(p.Name) == "" {
		return "Noname"
	}
	return p.Name
}

func (p Profile) Handle() string {
	return "@" + p.Username
}

type NewUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type ProfileUpdate struct {
	Name string `json:"name"`
}
