// Package transfer runs the new-transfer and repeat-transfer flows: form
// checks, recipient resolution against the directory, and submission.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"nobugs-bank/models"
	"nobugs-bank/resolver"

	"github.com/shopspring/decimal"
)

var (
	ErrSelfTransfer    = errors.New("cannot transfer to the sending account")
	ErrNoMatchingUsers = errors.New("no matching users found")
)

type State int

const (
	Editing State = iota
	Resolving
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Resolving:
		return "resolving"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Transferer submits a transfer on behalf of a session.
type Transferer interface {
	Transfer(ctx context.Context, sess *models.Session, req models.TransferRequest) error
}

type Workflow struct {
	api      Transferer
	dir      resolver.Directory
	observer func(State)
}

type Option func(*Workflow)

// WithObserver reports every state the workflow enters.
func WithObserver(fn func(State)) Option {
	return func(w *Workflow) {
		w.observer = fn
	}
}

func NewWorkflow(api Transferer, dir resolver.Directory, opts ...Option) *Workflow {
	w := &Workflow{api: api, dir: dir}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Result is the outcome of one submission. Draft is the form to show next.
type Result struct {
	State             State
	Draft             models.TransferDraft
	ReceiverAccountID int64
}

// Submit validates the draft, resolves the recipient and sends the transfer.
// On any failure the returned draft equals the input, ready for editing.
func (w *Workflow) Submit(ctx context.Context, sess *models.Session, draft models.TransferDraft) (Result, error) {
	w.enter(Editing)
	fail := func(err error) (Result, error) {
		w.enter(Failed)
		w.enter(Editing)
		return Result{State: Failed, Draft: draft}, err
	}

	senderID, amount, err := validateDraft(draft)
	if err != nil {
		return fail(err)
	}
	w.enter(Resolving)
	users, err := w.dir.Users(ctx)
	if err != nil {
		return fail(fmt.Errorf("load directory: %w", err))
	}
	receiverID, err := resolver.Resolve(draft.RecipientAccountNumber, draft.RecipientName, users)
	if err != nil {
		return fail(err)
	}
	// Compared on resolved ids: the typed number and the sender id live in
	// different namespaces.
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
		log.Printf("transfer failed user=%s sender=%d receiver=%d err=%v", username(sess), senderID, receiverID, err)
		return fail(err)
	}
	log.Printf("transfer sent user=%s sender=%d receiver=%d amount=%s", username(sess), senderID, receiverID, amount)

	w.enter(Succeeded)
	return Result{
		State: Succeeded,
		Draft: models.TransferDraft{
			SenderAccountID: draft.SenderAccountID,
		},
		ReceiverAccountID: receiverID,
	}, nil
}

// SuccessNotice is the message shown after a transfer went through.
func SuccessNotice(amount, destination string) string {
	return fmt.Sprintf("Successfully transferred $%s to account %s!", amount, destination)
}

func username(sess *models.Session) string {
	if sess == nil {
		return ""
	}
	return sess.Username
}

func (w *Workflow) enter(s State) {
	if w.observer != nil {
		w.observer(s)
	}
}

func validateDraft(d models.TransferDraft) (int64, decimal.Decimal, error) {
	if strings.TrimSpace(d.SenderAccountID) == "" ||
		strings.TrimSpace(d.RecipientAccountNumber) == "" ||
		strings.TrimSpace(d.Amount) == "" ||
		!d.Confirmed {
		return 0, decimal.Zero, models.Invalid("", "Please fill all fields and confirm.")
	}
	senderID, err := parseAccountID(d.SenderAccountID)
	if err != nil {
		return 0, decimal.Zero, err
	}
	amount, err := ParseAmount(d.Amount)
	if err != nil {
		return 0, decimal.Zero, err
	}
	return senderID, amount, nil
}

func parseAccountID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, models.Invalid("senderAccountId", "Please select a valid account.")
	}
	return id, nil
}

// ParseAmount accepts a positive decimal amount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, models.Invalid("amount", "Please enter a valid amount.")
	}
	return amount, nil
}
