package importer

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/cleared-dev/ledgersync/internal/accounts"
	"github.com/cleared-dev/ledgersync/internal/iban"
	"github.com/cleared-dev/ledgersync/internal/model"
	"github.com/cleared-dev/ledgersync/internal/syncerr"
)

const (
	valueDateZoned  = "2006-01-02-0700"
	valueDatePlain  = "2006-01-02"
	valueDateOutput = "2006-01-02T15:04:05.000Z07:00"
)

// counterPartRule maps a raw row to a counter-party identifier when match
// reports true.
type counterPartRule struct {
	name    string
	match   func(row model.RawRow) bool
	resolve func(row model.RawRow) string
}

// narrativePhrase is an entry of the internal-transfer vocabulary. Phrases
// are stored already folded.
type narrativePhrase struct {
	phrase string
	prefix bool
	label  string
}

var narrativeVocabulary = foldVocabulary([]narrativePhrase{
	{phrase: "interest credited", label: accounts.Interest},
	{phrase: "připsaný úrok", label: accounts.Interest},
	{phrase: "interest tax", label: accounts.InterestTax},
	{phrase: "odvod daně z úroků", label: accounts.InterestTax},
	{phrase: "withdrawal", prefix: true, label: accounts.Withdrawal},
	{phrase: "výběr", prefix: true, label: accounts.Withdrawal},
	{phrase: "card payment", label: accounts.CardPayment},
	{phrase: "platba kartou", label: accounts.CardPayment},
	{phrase: "deposit via teller", label: accounts.Deposit},
	{phrase: "vklad pokladnou", label: accounts.Deposit},
	{phrase: "fee", prefix: true, label: accounts.Fee},
	{phrase: "poplatek", prefix: true, label: accounts.Fee},
})

// counterPartRules is evaluated top to bottom; the first match wins.
var counterPartRules = []counterPartRule{
	{
		name:  "counter-account",
		match: func(row model.RawRow) bool { return row.CounterAccount != "" },
		resolve: func(row model.RawRow) string {
			return iban.Calculate(row.CounterBankCode, row.CounterAccount)
		},
	},
	{
		name: "narrative",
		match: func(row model.RawRow) bool {
			_, ok := matchNarrative(row.Narrative)
			return ok
		},
		resolve: func(row model.RawRow) string {
			label, _ := matchNarrative(row.Narrative)
			return label
		},
	},
	{
		name:    "unknown",
		match:   func(model.RawRow) bool { return true },
		resolve: func(model.RawRow) string { return accounts.Unknown },
	},
}

func foldVocabulary(in []narrativePhrase) []narrativePhrase {
	out := make([]narrativePhrase, len(in))
	for i, p := range in {
		p.phrase = foldNarrative(p.phrase)
		out[i] = p
	}
	return out
}

// foldNarrative case-folds s and collapses runs of whitespace. Diacritics
// are kept.
func foldNarrative(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

func matchNarrative(narrative string) (string, bool) {
	if narrative == "" {
		return "", false
	}
	folded := foldNarrative(narrative)
	for _, p := range narrativeVocabulary {
		if folded == p.phrase || (p.prefix && strings.HasPrefix(folded, p.phrase)) {
			return p.label, true
		}
	}
	return "", false
}

// ExtractCounterPartAccountNumber resolves the account on the other side of
// row.
func ExtractCounterPartAccountNumber(row model.RawRow) string {
	for _, rule := range counterPartRules {
		if rule.match(row) {
			return rule.resolve(row)
		}
	}
	return accounts.Unknown
}

// ParseValueDate converts a provider date ("2016-03-27+0100" or
// "2016-03-27") to an ISO-8601 UTC timestamp with milliseconds.
func ParseValueDate(s string) (string, error) {
	layout := valueDatePlain
	if len(s) > len(valueDatePlain) {
		layout = valueDateZoned
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return "", fmt.Errorf("parsing value date %q: %w", s, err)
	}
	return t.UTC().Format(valueDateOutput), nil
}

func checkInfo(raw *model.RawStatement) error {
	if raw == nil {
		return syncerr.Errorf(syncerr.DataFormat, "normalizing statement", "nil statement")
	}
	if raw.Info.IBAN == "" {
		return syncerr.Errorf(syncerr.DataFormat, "normalizing statement", "missing attribute %q", "iban")
	}
	if raw.Info.Currency == "" {
		return syncerr.Errorf(syncerr.DataFormat, "normalizing statement", "missing attribute %q", "currency")
	}
	return nil
}

func toTransfer(row model.RawRow, owner, currency string) (model.Transfer, error) {
	switch {
	case row.TransferID == "":
		return model.Transfer{}, fmt.Errorf("missing transfer id")
	case row.TransactionID == "":
		return model.Transfer{}, fmt.Errorf("transfer %s: missing transaction id", row.TransferID)
	case !row.HasAmount:
		return model.Transfer{}, fmt.Errorf("transfer %s: missing amount", row.TransferID)
	}

	valueDate, err := ParseValueDate(row.ValueDate)
	if err != nil {
		return model.Transfer{}, fmt.Errorf("transfer %s: %w", row.TransferID, err)
	}

	counterPart := ExtractCounterPartAccountNumber(row)
	debit, credit := counterPart, owner
	if row.Amount.IsNegative() {
		debit, credit = owner, counterPart
	}

	return model.Transfer{
		ID:        row.TransferID,
		ValueDate: valueDate,
		Debit:     debit,
		Credit:    credit,
		Amount:    row.Amount.Abs(),
		Currency:  currency,
	}, nil
}

// ToLedgerStatement groups the rows of raw into ledger transactions. Groups
// and the transfers within them keep first-seen order.
func ToLedgerStatement(raw *model.RawStatement) (*model.Statement, error) {
	if err := checkInfo(raw); err != nil {
		return nil, err
	}

	owner := raw.Info.IBAN
	stmt := &model.Statement{AccountNumber: owner}
	index := make(map[string]int)

	for i, row := range raw.Rows {
		tr, err := toTransfer(row, owner, raw.Info.Currency)
		if err != nil {
			return nil, syncerr.New(syncerr.DataFormat, fmt.Sprintf("normalizing row %d", i+1), err)
		}

		pos, ok := index[row.TransactionID]
		if !ok {
			pos = len(stmt.Transactions)
			index[row.TransactionID] = pos
			stmt.Transactions = append(stmt.Transactions, model.Transaction{ID: row.TransactionID})
		}
		stmt.Transactions[pos].Transfers = append(stmt.Transactions[pos].Transfers, tr)
	}

	if err := ValidateStatement(stmt); err != nil {
		return nil, err
	}
	return stmt, nil
}

// ExtractUniqueAccounts returns the counter-party accounts of raw, unique by
// (number, currency) in first-occurrence order, followed by the statement's
// own account. The own account is appended even when a counter-party entry
// already equals it.
func ExtractUniqueAccounts(raw *model.RawStatement) ([]model.Account, error) {
	if err := checkInfo(raw); err != nil {
		return nil, err
	}

	currency := raw.Info.Currency
	set := accounts.NewSet()
	for _, row := range raw.Rows {
		set.Add(model.Account{
			AccountNumber: ExtractCounterPartAccountNumber(row),
			Currency:      currency,
		})
	}
	set.Append(model.Account{AccountNumber: raw.Info.IBAN, Currency: currency})
	return set.All(), nil
}
