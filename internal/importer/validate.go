package importer

import (
	"errors"
	"fmt"

	"github.com/cleared-dev/ledgersync/internal/model"
	"github.com/cleared-dev/ledgersync/internal/syncerr"
)

// ValidationError describes a single violation in a normalized statement.
type ValidationError struct {
	TransactionID string
	TransferID    string
	Description   string
}

func (e ValidationError) Error() string {
	if e.TransferID == "" {
		return fmt.Sprintf("transaction %s: %s", e.TransactionID, e.Description)
	}
	return fmt.Sprintf("transaction %s, transfer %s: %s", e.TransactionID, e.TransferID, e.Description)
}

// Validate checks the structural rules of a normalized statement: every
// transaction has transfers, every transfer id is defined once, and
// amounts are non-negative.
func Validate(stmt *model.Statement) []ValidationError {
	var errs []ValidationError

	seenTxn := make(map[string]bool)
	seenTransfer := make(map[string]string)
	for _, txn := range stmt.Transactions {
		if seenTxn[txn.ID] {
			errs = append(errs, ValidationError{
				TransactionID: txn.ID,
				Description:   "transaction id defined more than once",
			})
		}
		seenTxn[txn.ID] = true

		if len(txn.Transfers) == 0 {
			errs = append(errs, ValidationError{
				TransactionID: txn.ID,
				Description:   "transaction has no transfers",
			})
		}

		for _, tr := range txn.Transfers {
			if prev, ok := seenTransfer[tr.ID]; ok {
				errs = append(errs, ValidationError{
					TransactionID: txn.ID,
					TransferID:    tr.ID,
					Description:   fmt.Sprintf("transfer id already defined in transaction %s", prev),
				})
			} else {
				seenTransfer[tr.ID] = txn.ID
			}

			if tr.Amount.IsNegative() {
				errs = append(errs, ValidationError{
					TransactionID: txn.ID,
					TransferID:    tr.ID,
					Description:   fmt.Sprintf("negative amount %s", tr.Amount),
				})
			}
		}
	}
	return errs
}

// ValidateStatement runs Validate and joins any violations into one
// DataFormat error.
func ValidateStatement(stmt *model.Statement) error {
	verrs := Validate(stmt)
	if len(verrs) == 0 {
		return nil
	}
	errs := make([]error, len(verrs))
	for i, v := range verrs {
		errs[i] = v
	}
	return syncerr.New(syncerr.DataFormat, "validating statement", errors.Join(errs...))
}
