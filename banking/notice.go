// Package banking holds the per-screen operations of the client: login,
// dashboard, deposit, profile and user administration, and the mapping of
// failures to the notice a user sees.
package banking

import (
	"errors"

	"nobugs-bank/bankapi"
	"nobugs-bank/models"
	"nobugs-bank/resolver"
	"nobugs-bank/session"
	"nobugs-bank/transfer"
)

// Notice turns the failure of action (e.g. "Transfer") into user-facing text.
// Backend rejections are shown verbatim.
func Notice(action string, err error) string {
	if err == nil {
		return ""
	}

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var rejected *bankapi.RejectedError
	if errors.As(err, &rejected) {
		return "Error: " + rejected.Message
	}
	var serverErr *bankapi.ServerError
	if errors.As(err, &serverErr) {
		return action + " failed. Please try again."
	}

	switch {
	case errors.Is(err, bankapi.ErrUnauthorized), errors.Is(err, session.ErrNotFound):
		return "Unauthorized! Please log in again."
	case errors.Is(err, bankapi.ErrRequestTimedOut):
		return "The bank did not answer in time. Please try again."
	case errors.Is(err, bankapi.ErrNetworkOrServer):
		return "Network error. Please check your connection."
	case errors.Is(err, resolver.ErrRecipientNotFound):
		return "No user found with this account number."
	case errors.Is(err, resolver.ErrRecipientNameMismatch):
		return "The recipient name does not match the registered name."
	case errors.Is(err, resolver.ErrTransactionNotTraceable):
		return "The original transfer can no longer be traced. Please start a new transfer."
	case errors.Is(err, transfer.ErrUnknownTransaction):
		return "That transaction is no longer available."
	case errors.Is(err, transfer.ErrSelfTransfer):
		return "You cannot transfer to the same account."
	case errors.Is(err, transfer.ErrNoMatchingUsers):
		return "No matching users found."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid credentials"
	}
	return action + " failed. Please try again."
}
