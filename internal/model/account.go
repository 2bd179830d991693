package model

// Account is a ledger account as created through the ledger API.
type Account struct {
	AccountNumber  string `json:"accountNumber"`
	Currency       string `json:"currency"`
	IsBalanceCheck bool   `json:"isBalanceCheck"`
}

// Key returns the uniqueness key of the account: (number, currency).
func (a Account) Key() AccountKey {
	return AccountKey{AccountNumber: a.AccountNumber, Currency: a.Currency}
}

// AccountKey identifies an account within a tenant.
type AccountKey struct {
	AccountNumber string
	Currency      string
}
