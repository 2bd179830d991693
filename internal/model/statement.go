package model

import (
	"github.com/shopspring/decimal"
)

// StatementInfo describes the account a provider statement belongs to.
type StatementInfo struct {
	AccountID string
	BankID    string
	Currency  string
	IBAN      string
	BIC       string
}

// RawRow is one movement as reported by the statement provider.
// Optional text fields are empty when the provider left them out.
type RawRow struct {
	ValueDate       string
	Amount          decimal.Decimal // negative = outgoing, positive = incoming
	HasAmount       bool
	CounterAccount  string
	CounterBankCode string
	Narrative       string // provider movement type, e.g. "Platba kartou"
	Comment         string
	Currency        string
	TransactionID   string // groups rows issued under one order
	TransferID      string // unique within the provider
}

// RawStatement is an account statement in provider terms.
type RawStatement struct {
	Info StatementInfo
	Rows []RawRow
}
