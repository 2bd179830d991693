// Package syncerr classifies failures of a sync pass so callers can tell
// tolerated ledger conflicts apart from fatal errors.
package syncerr

import (
	"errors"
	"fmt"
)

// Kind is the category of a sync failure.
type Kind int

const (
	// Unknown is reported for errors that carry no kind.
	Unknown Kind = iota
	// DataFormat marks a malformed provider statement.
	DataFormat
	// LedgerConflictBenign marks a duplicate the ledger already holds with the same intent.
	LedgerConflictBenign
	// LedgerConflictDivergent marks a transaction the ledger holds with different data.
	LedgerConflictDivergent
	// Transport marks network failures and unexpected HTTP statuses.
	Transport
	// CheckpointIO marks checkpoint store failures other than "not found".
	CheckpointIO
	// ProviderConflict marks the provider refusing a fetch because the cursor was set too recently.
	ProviderConflict
)

var kindNames = map[Kind]string{
	Unknown:                 "unknown",
	DataFormat:              "data_format",
	LedgerConflictBenign:    "ledger_conflict_benign",
	LedgerConflictDivergent: "ledger_conflict_divergent",
	Transport:               "transport",
	CheckpointIO:            "checkpoint_io",
	ProviderConflict:        "provider_conflict",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fatal reports whether an error of this kind aborts the pass.
func (k Kind) Fatal() bool {
	return k != LedgerConflictBenign && k != LedgerConflictDivergent
}

// Error is a classified failure of operation Op.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err as a failure of kind during op.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified failure from a format string.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Unknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
