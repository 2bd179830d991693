package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/cleared-dev/ledgersync/internal/model"
)

const (
	numAccountFields = 3
	colAcctNumber    = 0
	colAcctCurrency  = 1
	colAcctBalance   = 2
)

// WriteAccounts writes accounts.csv.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"account_number", "currency", "is_balance_check"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// ReadAccounts reads accounts.csv.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numAccountFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numAccountFields)
	row[colAcctNumber] = acct.AccountNumber
	row[colAcctCurrency] = acct.Currency
	row[colAcctBalance] = strconv.FormatBool(acct.IsBalanceCheck)
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numAccountFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numAccountFields, len(record))
	}

	balanceCheck, err := strconv.ParseBool(record[colAcctBalance])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing is_balance_check %q: %w", record[colAcctBalance], err)
	}

	return model.Account{
		AccountNumber:  record[colAcctNumber],
		Currency:       record[colAcctCurrency],
		IsBalanceCheck: balanceCheck,
	}, nil
}
