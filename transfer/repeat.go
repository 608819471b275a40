package transfer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"nobugs-bank/models"
	"nobugs-bank/resolver"
)

var ErrUnknownTransaction = errors.New("transaction not found in directory")

// Repeat is repeat mode: the directory snapshot fetched on entry and the
// current search results.
type Repeat struct {
	users   []models.User
	results []models.MatchedTransaction
}

// LoadRepeat enters repeat mode by fetching the directory.
func (w *Workflow) LoadRepeat(ctx context.Context) (*Repeat, error) {
	users, err := w.dir.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}
	return &Repeat{users: users, results: []models.MatchedTransaction{}}, nil
}

func (r *Repeat) Results() []models.MatchedTransaction {
	return r.results
}

// Search replaces the results with the transactions of users matching query.
// A blank query changes nothing. No matching user yields an empty list and
// ErrNoMatchingUsers; the directory snapshot is kept either way.
func (r *Repeat) Search(query string) ([]models.MatchedTransaction, error) {
	if strings.TrimSpace(query) == "" {
		return r.results, nil
	}
	if resolver.MatchingUsers(query, r.users) == 0 {
		r.results = []models.MatchedTransaction{}
		return r.results, ErrNoMatchingUsers
	}
	r.results = resolver.Search(query, r.users)
	return r.results, nil
}

// Select opens the repeat dialog for txID. Amount and counterparty come from
// the original; sender and confirmation are left for the user.
func (r *Repeat) Select(txID int64) (models.RepeatDraft, error) {
	for _, m := range r.results {
		if m.ID == txID {
			return newRepeatDraft(m), nil
		}
	}
	for _, user := range r.users {
		for _, acc := range user.Accounts {
			for _, tx := range acc.Transactions {
				if tx.ID == txID {
					return newRepeatDraft(models.MatchedTransaction{Transaction: tx, MatchedName: user.DisplayName()}), nil
				}
			}
		}
	}
	return models.RepeatDraft{}, ErrUnknownTransaction
}

func newRepeatDraft(m models.MatchedTransaction) models.RepeatDraft {
	return models.RepeatDraft{
		Transaction:     m,
		CounterpartyRef: m.RelatedAccountID,
		Amount:          m.Amount.String(),
		Open:            true,
	}
}

type RepeatResult struct {
	State             State
	Draft             models.RepeatDraft
	ReceiverAccountID int64
}

// ConfirmRepeat sends the repeat transfer. The receiving account is the one
// that recorded the original transaction, looked up in a freshly fetched
// directory; if it is gone the transfer is refused. On failure the dialog
// stays open with the draft untouched.
func (w *Workflow) ConfirmRepeat(ctx context.Context, sess *models.Session, draft models.RepeatDraft) (RepeatResult, error) {
	w.enter(Editing)
	fail := func(err error) (RepeatResult, error) {
		w.enter(Failed)
		w.enter(Editing)
		return RepeatResult{State: Failed, Draft: draft}, err
	}

	if !draft.Confirmed || draft.Transaction.ID == 0 {
		return fail(models.Invalid("confirmed", "Please confirm before proceeding."))
	}
	if strings.TrimSpace(draft.SenderAccountID) == "" {
		return fail(models.Invalid("senderAccountId", "Please select an account."))
	}
	senderID, err := parseAccountID(draft.SenderAccountID)
	if err != nil {
		return fail(err)
	}
	amount, err := ParseAmount(draft.Amount)
	if err != nil {
		return fail(err)
	}

	w.enter(Resolving)
	users, err := w.dir.Users(ctx)
	if err != nil {
		return fail(fmt.Errorf("load directory: %w", err))
	}
	receiverID, err := resolver.OwningAccount(draft.Transaction.ID, users)
	if err != nil {
		return fail(err)
	}
	if receiverID == senderID {
		return fail(ErrSelfTransfer)
	}

	w.enter(Submitting)
	err = w.api.Transfer(ctx, sess, models.TransferRequest{
		SenderAccountID:   senderID,
		ReceiverAccountID: receiverID,
		Amount:            amount,
	})
	if err != nil {
		log.Printf("repeat transfer failed user=%s tx=%d receiver=%d err=%v", username(sess), draft.Transaction.ID, receiverID, err)
		return fail(err)
	}
	log.Printf("repeat transfer sent user=%s tx=%d sender=%d receiver=%d amount=%s", username(sess), draft.Transaction.ID, senderID, receiverID, amount)

	w.enter(Succeeded)
	next := draft
	next.Open = false
	next.Amount = ""
	next.Confirmed = false
	return RepeatResult{State: Succeeded, Draft: next, ReceiverAccountID: receiverID}, nil
}
