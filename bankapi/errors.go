package bankapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNetworkOrServer  = errors.New("network or server failure")
	ErrRequestTimedOut  = errors.New("request timed out")
	errUnexpectedStatus = errors.New("unexpected response")
)

const defaultRejectMessage = "An error occurred."

// RejectedError is a 4xx answer from the backend. Message is the backend's
// own explanation and is shown to the user unchanged.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("backend rejected request (%d): %s", e.Status, e.Message)
}

// Is reports 401 and 403 answers as ErrUnauthorized.
func (e *RejectedError) Is(target error) bool {
	if target != ErrUnauthorized {
		return false
	}
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// ServerError is a 5xx answer. It unwraps to ErrNetworkOrServer.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("backend failure (%d)", e.Status)
}

func (e *ServerError) Unwrap() error {
	return ErrNetworkOrServer
}

// backendMessage picks the human message out of an error body: the JSON
// "message" field when present, otherwise the raw body.
func backendMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return defaultRejectMessage
	}
	return raw
}

func statusError(status int, body []byte) error {
	switch {
	case status >= 400 && status < 500:
		return &RejectedError{Status: status, Message: backendMessage(body)}
	case status >= 500:
		return &ServerError{Status: status, Body: string(body)}
	default:
		return fmt.Errorf("%w: status %d", errUnexpectedStatus, status)
	}
}
