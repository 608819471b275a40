package banking

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"nobugs-bank/models"

	"github.com/shopspring/decimal"
)

// RecentLimit is how many transactions the dashboard lists per account.
const RecentLimit = 5

// MaxDeposit caps a single deposit, checked before the backend is called.
var MaxDeposit = decimal.NewFromInt(5000)

type AccountsAPI interface {
	Accounts(ctx context.Context, sess *models.Session) ([]models.Account, error)
	CreateAccount(ctx context.Context, sess *models.Session) (models.Account, error)
	Deposit(ctx context.Context, sess *models.Session, req models.DepositRequest) error
}

type AccountSummary struct {
	ID            int64                `json:"id"`
	AccountNumber string               `json:"accountNumber"`
	Balance       string               `json:"balance"`
	Recent        []models.Transaction `json:"recent"`
}

// Dashboard fetches the user's accounts and keeps the first RecentLimit
// transactions of each.
func Dashboard(ctx context.Context, api AccountsAPI, sess *models.Session) ([]AccountSummary, error) {
	accounts, err := api.Accounts(ctx, sess)
	if err != nil {
		return nil, err
	}
	summaries := make([]AccountSummary, 0, len(accounts))
	for _, acc := range accounts {
		recent := acc.Transactions
		if len(recent) > RecentLimit {
			recent = recent[:RecentLimit]
		}
		if recent == nil {
			recent = []models.Transaction{}
		}
		summaries = append(summaries, AccountSummary{
			ID:            acc.ID,
			AccountNumber: acc.AccountNumber,
			Balance:       acc.Balance.StringFixed(2),
			Recent:        recent,
		})
	}
	return summaries, nil
}

// CreateAccount opens a new account and returns the refreshed list.
func CreateAccount(ctx context.Context, api AccountsAPI, sess *models.Session) ([]models.Account, error) {
	created, err := api.CreateAccount(ctx, sess)
	if err != nil {
		return nil, err
	}
	log.Printf("account created user=%s number=%s", sess.Username, created.AccountNumber)
	return api.Accounts(ctx, sess)
}

type DepositForm struct {
	AccountID string `json:"accountId"`
	Amount    string `json:"amount"`
}

// Deposit checks the form against the user's accounts, then deposits.
// Returns the account credited and the amount.
func Deposit(ctx context.Context, api AccountsAPI, sess *models.Session, accounts []models.Account, form DepositForm) (models.Account, decimal.Decimal, error) {
	if strings.TrimSpace(form.AccountID) == "" {
		return models.Account{}, decimal.Zero, models.Invalid("accountId", "Please select an account.")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(form.Amount))
	if err != nil || !amount.IsPositive() {
		return models.Account{}, decimal.Zero, models.Invalid("amount", "Please enter a valid amount.")
	}
	if amount.GreaterThan(MaxDeposit) {
		return models.Account{}, decimal.Zero, models.Invalid("amount", fmt.Sprintf("Please deposit less or equal to %s$.", MaxDeposit))
	}

	account, ok := findAccount(accounts, form.AccountID)
	if !ok {
		return models.Account{}, decimal.Zero, models.Invalid("accountId", "Invalid account selected.")
	}

	err = api.Deposit(ctx, sess, models.DepositRequest{
		ID:            account.ID,
		AccountNumber: account.AccountNumber,
		Balance:       amount,
	})
	if err != nil {
		return models.Account{}, decimal.Zero, err
	}
	log.Printf("deposit sent user=%s account=%s amount=%s", sess.Username, account.AccountNumber, amount)
	return account, amount, nil
}

// DepositNotice is shown after a successful deposit.
func DepositNotice(account models.Account, amount decimal.Decimal) string {
	return fmt.Sprintf("Successfully deposited $%s to account %s!", amount, account.AccountNumber)
}

func findAccount(accounts []models.Account, rawID string) (models.Account, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		return models.Account{}, false
	}
	for _, acc := range accounts {
		if acc.ID == id {
			return acc, true
		}
	}
	return models.Account{}, false
}
