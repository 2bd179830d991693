package accounts

import (
	"github.com/cleared-dev/ledgersync/internal/model"
)

// Set collects accounts keyed by (number, currency), keeping the order in
// which they were first added.
type Set struct {
	accounts []model.Account
	byKey    map[model.AccountKey]int
}

// NewSet creates a Set seeded with accounts (duplicates dropped).
func NewSet(accounts ...model.Account) *Set {
	s := &Set{byKey: make(map[model.AccountKey]int, len(accounts))}
	for _, a := range accounts {
		s.Add(a)
	}
	return s
}

// Add inserts a if its key is not present yet. It reports whether a was added.
func (s *Set) Add(a model.Account) bool {
	if _, ok := s.byKey[a.Key()]; ok {
		return false
	}
	s.byKey[a.Key()] = len(s.accounts)
	s.accounts = append(s.accounts, a)
	return true
}

// Append inserts a unconditionally, even if its key is already present.
func (s *Set) Append(a model.Account) {
	if _, ok := s.byKey[a.Key()]; !ok {
		s.byKey[a.Key()] = len(s.accounts)
	}
	s.accounts = append(s.accounts, a)
}

// Get returns the first account stored under (number, currency).
func (s *Set) Get(number, currency string) (model.Account, bool) {
	i, ok := s.byKey[model.AccountKey{AccountNumber: number, Currency: currency}]
	if !ok {
		return model.Account{}, false
	}
	return s.accounts[i], true
}

// Exists reports whether (number, currency) is present.
func (s *Set) Exists(number, currency string) bool {
	_, ok := s.Get(number, currency)
	return ok
}

// Len returns the number of stored accounts.
func (s *Set) Len() int {
	return len(s.accounts)
}

// All returns the accounts in insertion order.
func (s *Set) All() []model.Account {
	out := make([]model.Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// BalanceChecks returns the accounts flagged for balance checks.
func (s *Set) BalanceChecks() []model.Account {
	var result []model.Account
	for _, a := range s.accounts {
		if a.IsBalanceCheck {
			result = append(result, a)
		}
	}
	return result
}
