package importer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/cleared-dev/ledgersync/internal/model"
	"github.com/cleared-dev/ledgersync/internal/syncerr"
)

func TestValidate_Clean(t *testing.T) {
	stmt := &model.Statement{Transactions: []model.Transaction{
		{ID: "T1", Transfers: []model.Transfer{{ID: "1", Amount: decimal.NewFromInt(1)}}},
		{ID: "T2", Transfers: []model.Transfer{{ID: "2"}}},
	}}
	assert.Empty(t, Validate(stmt))
	assert.NoError(t, ValidateStatement(stmt))
}

func TestValidate_Violations(t *testing.T) {
	stmt := &model.Statement{Transactions: []model.Transaction{
		{ID: "T1", Transfers: []model.Transfer{{ID: "1"}, {ID: "2", Amount: decimal.NewFromInt(-5)}}},
		{ID: "T2"},
		{ID: "T1", Transfers: []model.Transfer{{ID: "1"}}},
	}}

	errs := Validate(stmt)
	assert.Len(t, errs, 4)

	descs := make([]string, len(errs))
	for i, e := range errs {
		descs[i] = e.Error()
	}
	assert.Contains(t, descs, "transaction T1, transfer 2: negative amount -5")
	assert.Contains(t, descs, "transaction T2: transaction has no transfers")
	assert.Contains(t, descs, "transaction T1: transaction id defined more than once")
	assert.Contains(t, descs, "transaction T1, transfer 1: transfer id already defined in transaction T1")

	err := ValidateStatement(stmt)
	assert.True(t, syncerr.Is(err, syncerr.DataFormat))
}
