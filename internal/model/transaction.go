package model

import (
	"github.com/shopspring/decimal"
)

// Transfer is a single debit/credit posting in ledger format.
// Amount is always non-negative and marshals as a JSON string.
type Transfer struct {
	ID        string          `json:"id"`
	ValueDate string          `json:"valueDate"` // ISO-8601, UTC
	Debit     string          `json:"debit"`
	Credit    string          `json:"credit"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

// Transaction groups the transfers the provider issued under one order.
type Transaction struct {
	ID        string     `json:"id"`
	Transfers []Transfer `json:"transfers"`
}

// TransferIDs returns the IDs of all transfers in order.
func (t Transaction) TransferIDs() []string {
	ids := make([]string, len(t.Transfers))
	for i, tr := range t.Transfers {
		ids[i] = tr.ID
	}
	return ids
}

// Statement is a normalized account statement ready for the ledger.
type Statement struct {
	AccountNumber string        `json:"accountNumber"`
	Transactions  []Transaction `json:"transactions"`
}

// TransferCount returns the number of transfers across all transactions.
func (s Statement) TransferCount() int {
	n := 0
	for _, t := range s.Transactions {
		n += len(t.Transfers)
	}
	return n
}
