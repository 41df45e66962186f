package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies ledger failures. Callers branch on the kind, never on the
// message text.
type Kind string

const (
	KindInvalidAmount           Kind = "invalid_amount"
	KindInvalidInput            Kind = "invalid_input"
	KindSelfTransfer            Kind = "self_transfer"
	KindInsufficientFunds       Kind = "insufficient_funds"
	KindInconsistentWallet      Kind = "inconsistent_wallet"
	KindAlreadyReversed         Kind = "already_reversed"
	KindNotReversible           Kind = "not_reversible"
	KindUnsupportedReversalType Kind = "unsupported_reversal_type"
	KindNotFound                Kind = "not_found"
	KindConflict                Kind = "conflict"
	KindPersistenceFailure      Kind = "persistence_failure"
)

// Error is the structured error returned by every ledger operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict)
// holds regardless of message or wrapped cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	// ErrInvalidAmount is returned for non-positive, sub-cent or out of range amounts.
	ErrInvalidAmount = &Error{Kind: KindInvalidAmount, Message: "amount must be a positive value of at least 0.01 with at most two decimal places"}

	// ErrInvalidInput covers malformed requests handed to the ledger, such as a
	// transaction kind that does not match the presence of an origin wallet.
	ErrInvalidInput = &Error{Kind: KindInvalidInput, Message: "invalid input"}

	// ErrSelfTransfer rejects transfers whose origin and destination are the same wallet.
	ErrSelfTransfer = &Error{Kind: KindSelfTransfer, Message: "cannot transfer to the same wallet"}

	// ErrInsufficientFunds occurs when a debit would take a balance below zero.
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds, Message: "insufficient funds"}

	// ErrInconsistentWallet rejects credits into a wallet flagged by reconciliation.
	ErrInconsistentWallet = &Error{Kind: KindInconsistentWallet, Message: "wallet is flagged as inconsistent and cannot receive funds"}

	// ErrAlreadyReversed is returned when reversing a transaction a second time.
	ErrAlreadyReversed = &Error{Kind: KindAlreadyReversed, Message: "transaction has already been reversed"}

	// ErrNotReversible is returned when reversing a failed transaction.
	ErrNotReversible = &Error{Kind: KindNotReversible, Message: "failed transactions cannot be reversed"}

	// ErrUnsupportedReversalType is returned for kinds that have no inverse, including reversals themselves.
	ErrUnsupportedReversalType = &Error{Kind: KindUnsupportedReversalType, Message: "transaction kind cannot be reversed"}

	// ErrNotFound is returned when a wallet or transaction does not exist.
	ErrNotFound = &Error{Kind: KindNotFound, Message: "not found"}

	// ErrConflict signals a concurrent mutation detected by a lock or version check.
	ErrConflict = &Error{Kind: KindConflict, Message: "concurrent modification detected"}

	// ErrPersistenceFailure wraps store failures that aborted the atomic unit.
	ErrPersistenceFailure = &Error{Kind: KindPersistenceFailure, Message: "ledger store unavailable"}
)

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func notFound(what, id string) *Error {
	return newError(KindNotFound, fmt.Sprintf("%s %s not found", what, id), nil)
}

// KindOf extracts the kind of a ledger error; unknown errors report
// KindPersistenceFailure since they can only originate in the store.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistenceFailure
}

// asLedgerError leaves ledger errors untouched and wraps everything else as a
// persistence failure.
func asLedgerError(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(KindPersistenceFailure, ErrPersistenceFailure.Message, err)
}
