// Package resolver maps what a sender typed to internal account ids using a
// snapshot of the user directory.
package resolver

import (
	"context"
	"errors"
	"strings"

	"nobugs-bank/models"
)

var (
	ErrRecipientNotFound       = errors.New("no user found with this account number")
	ErrRecipientNameMismatch   = errors.New("the recipient name does not match the registered name")
	ErrTransactionNotTraceable = errors.New("original transaction can no longer be traced to an account")
	ErrEmptyAccountNumber      = errors.New("recipient account number is empty")
)

// Directory lists every user with accounts and transactions. Implementations
// must fetch fresh data on each call.
type Directory interface {
	Users(ctx context.Context) ([]models.User, error)
}

// Resolve finds the account numbered accountNumber. The first match wins;
// account numbers are assumed unique. A non-empty owner name must equal
// displayName exactly.
func Resolve(accountNumber, displayName string, users []models.User) (int64, error) {
	if accountNumber == "" {
		return 0, ErrEmptyAccountNumber
	}
	for _, user := range users {
		for _, acc := range user.Accounts {
			if acc.AccountNumber != accountNumber {
				continue
			}
			if user.Name != "" && user.Name != displayName {
				return 0, ErrRecipientNameMismatch
			}
			return acc.ID, nil
		}
	}
	return 0, ErrRecipientNotFound
}

// OwningAccount returns the account whose history recorded txID. Scans every
// transaction of every account.
func OwningAccount(txID int64, users []models.User) (int64, error) {
	for _, user := range users {
		for _, acc := range user.Accounts {
			for _, tx := range acc.Transactions {
				if tx.ID == txID {
					return acc.ID, nil
				}
			}
		}
	}
	return 0, ErrTransactionNotTraceable
}

// Search returns the transactions of every user whose username or name
// contains query, case-insensitively, tagged with that user's display name.
// A blank query matches nobody; otherwise the query is used as typed.
func Search(query string, users []models.User) []models.MatchedTransaction {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	needle := strings.ToLower(query)
	matches := []models.MatchedTransaction{}
	for _, user := range users {
		if !userMatches(user, needle) {
			continue
		}
		for _, acc := range user.Accounts {
			for _, tx := range acc.Transactions {
				matches = append(matches, models.MatchedTransaction{
					Transaction: tx,
					MatchedName: user.DisplayName(),
				})
			}
		}
	}
	return matches
}

// MatchingUsers counts users a query would select.
func MatchingUsers(query string, users []models.User) int {
	if strings.TrimSpace(query) == "" {
		return 0
	}
	needle := strings.ToLower(query)
	n := 0
	for _, user := range users {
		if userMatches(user, needle) {
			n++
		}
	}
	return n
}

func userMatches(user models.User, needle string) bool {
	if user.Username != "" && strings.Contains(strings.ToLower(user.Username), needle) {
		return true
	}
	return user.Name != "" && strings.Contains(strings.ToLower(user.Name), needle)
}
