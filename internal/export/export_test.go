package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledgersync/internal/model"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func testTransactions() []model.Transaction {
	return []model.Transaction{
		{
			ID: "2121115983",
			Transfers: []model.Transfer{
				{ID: "1152125621", ValueDate: "2016-03-26T23:00:00.000Z", Debit: "CZ9620100000002400222233", Credit: "Fee", Amount: dec("0.02"), Currency: "CZK"},
				{ID: "1158218819", ValueDate: "2016-03-26T23:00:00.000Z", Debit: "CZ7120100000002700968855", Credit: "CZ9620100000002400222233", Amount: dec("100"), Currency: "CZK"},
			},
		},
		{
			ID: "2151261787",
			Transfers: []model.Transfer{
				{ID: "1158218999", ValueDate: "2016-03-27T23:00:00.000Z", Debit: "Unknown", Credit: "CZ9620100000002400222233", Amount: dec("20"), Currency: "CZK"},
			},
		},
	}
}

func TestTransfersRoundTrip(t *testing.T) {
	txns := testTransactions()

	var buf bytes.Buffer
	require.NoError(t, WriteTransfers(&buf, txns))
	assert.True(t, strings.HasPrefix(buf.String(), "transaction_id,"))

	got, err := ReadTransfers(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for i := range txns {
		assert.Equal(t, txns[i].ID, got[i].ID)
		require.Len(t, got[i].Transfers, len(txns[i].Transfers))
		for j, want := range txns[i].Transfers {
			tr := got[i].Transfers[j]
			assert.Equal(t, want.ID, tr.ID)
			assert.Equal(t, want.ValueDate, tr.ValueDate)
			assert.Equal(t, want.Debit, tr.Debit)
			assert.Equal(t, want.Credit, tr.Credit)
			assert.True(t, want.Amount.Equal(tr.Amount), "amount mismatch %s", tr.ID)
			assert.Equal(t, want.Currency, tr.Currency)
		}
	}
}

func TestMarshalTransfer_Amount(t *testing.T) {
	row := MarshalTransfer("1", model.Transfer{ID: "2", Amount: dec("127.50")})
	assert.Equal(t, "127.5", row[colAmount])
	assert.Equal(t, "1", row[colTxnID])
}

func TestUnmarshalTransfer_BadAmount(t *testing.T) {
	_, _, err := UnmarshalTransfer([]string{"1", "2", "2016-03-26T23:00:00.000Z", "a", "b", "NaN?", "CZK"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing amount")
}

func TestUnmarshalTransfer_FieldCount(t *testing.T) {
	_, _, err := UnmarshalTransfer([]string{"1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 7 fields")
}

func TestReadTransfers_HeaderOnly(t *testing.T) {
	got, err := ReadTransfers(strings.NewReader(TransfersHeader + "\n"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAccountsRoundTrip(t *testing.T) {
	accounts := []model.Account{
		{AccountNumber: "CZ7120100000002700968855", Currency: "CZK"},
		{AccountNumber: "Fee", Currency: "CZK"},
		{AccountNumber: "CZ9620100000002400222233", Currency: "CZK", IsBalanceCheck: true},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, accounts))

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	assert.Equal(t, accounts, got)
}

func TestUnmarshalAccount_BadBool(t *testing.T) {
	_, err := UnmarshalAccount([]string{"CZ01", "CZK", "maybe"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing is_balance_check")
}
