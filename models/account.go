package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit     TransactionType = "DEPOSIT"
	TransactionTransferIn  TransactionType = "TRANSFER_IN"
	TransactionTransferOut TransactionType = "TRANSFER_OUT"
)

type Account struct {
	ID            int64           `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	Transactions  []Transaction   `json:"transactions"`
}

// Transaction is a read-only ledger entry as reported by the backend.
// RelatedAccountID is the counterparty account for transfers.
type Transaction struct {
	ID               int64           `json:"id"`
	Type             TransactionType `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	Date             string          `json:"date"`
	RelatedAccountID int64           `json:"relatedAccountId"`
}

// MatchedTransaction is a repeat-search hit tagged with the user it was found under.
type MatchedTransaction struct {
	Transaction
	MatchedName string `json:"matchedName"`
}

type DepositRequest struct {
	ID            int64           `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
}

type TransferRequest struct {
	SenderAccountID   int64           `json:"senderAccountId"`
	ReceiverAccountID int64           `json:"receiverAccountId"`
	Amount            decimal.Decimal `json:"amount"`
}

// TransferDraft is the in-progress new-transfer form. Fields hold raw input.
type TransferDraft struct {
	SenderAccountID        string `json:"senderAccountId"`
	RecipientName          string `json:"recipientName"`
	RecipientAccountNumber string `json:"recipientAccountNumber"`
	Amount                 string `json:"amount"`
	Confirmed              bool   `json:"confirmed"`
}

// RepeatDraft is the repeat-transfer dialog. Transaction and CounterpartyRef come
// from the picked transaction; sender and confirmation are always chosen anew.
type RepeatDraft struct {
	Transaction     MatchedTransaction `json:"transaction"`
	CounterpartyRef int64              `json:"counterpartyRef"`
	SenderAccountID string             `json:"senderAccountId"`
	Amount          string             `json:"amount"`
	Confirmed       bool               `json:"confirmed"`
	Open            bool               `json:"open"`
}

// StatementRow is one exported line of an account statement.
type StatementRow struct {
	AccountNumber    string
	TransactionID    int64
	Type             TransactionType
	Amount           decimal.Decimal
	Date             string
	RelatedAccountID int64
}

// Statement flattens the transactions of accounts in account order.
func Statement(accounts []Account) []StatementRow {
	var rows []StatementRow
	for _, acc := range accounts {
		for _, tx := range acc.Transactions {
			rows = append(rows, StatementRow{
				AccountNumber:    acc.AccountNumber,
				TransactionID:    tx.ID,
				Type:             tx.Type,
				Amount:           tx.Amount,
				Date:             tx.Date,
				RelatedAccountID: tx.RelatedAccountID,
			})
		}
	}
	return rows
}

// ValidationError reports a form problem caught before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
