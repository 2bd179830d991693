package accounts

// Symbolic counter-party labels used when a movement has no counter account.
const (
	Interest    = "Interest"
	InterestTax = "InterestTax"
	Withdrawal  = "Withdrawal"
	CardPayment = "CardPayment"
	Deposit     = "Deposit"
	Fee         = "Fee"
	Unknown     = "Unknown"
)

// Labels returns every symbolic label in a stable order.
func Labels() []string {
	return []string{Interest, InterestTax, Withdrawal, CardPayment, Deposit, Fee, Unknown}
}

// IsLabel reports whether s is one of the symbolic labels.
func IsLabel(s string) bool {
	for _, l := range Labels() {
		if l == s {
			return true
		}
	}
	return false
}
