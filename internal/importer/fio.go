package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledgersync/internal/model"
	"github.com/cleared-dev/ledgersync/internal/syncerr"
)

// FioParser parses Fio banka account statements in their JSON export format.
type FioParser struct{}

// Format returns the parser name.
func (p *FioParser) Format() string { return "fio" }

type fioEnvelope struct {
	Statement *struct {
		Info struct {
			AccountID string `json:"accountId"`
			BankID    string `json:"bankId"`
			Currency  string `json:"currency"`
			IBAN      string `json:"iban"`
			BIC       string `json:"bic"`
		} `json:"info"`
		TransactionList struct {
			Transaction []fioRow `json:"transaction"`
		} `json:"transactionList"`
	} `json:"accountStatement"`
}

type fioRow struct {
	ValueDate       *fioColumn `json:"column0"`
	Amount          *fioColumn `json:"column1"`
	CounterAccount  *fioColumn `json:"column2"`
	CounterBankCode *fioColumn `json:"column3"`
	Narrative       *fioColumn `json:"column8"`
	Currency        *fioColumn `json:"column14"`
	TransactionID   *fioColumn `json:"column17"`
	TransferID      *fioColumn `json:"column22"`
	Comment         *fioColumn `json:"column25"`
}

// fioColumn holds a column value verbatim. Fio mixes strings and numbers
// across columns, so the value is kept raw and read as text.
type fioColumn struct {
	Value json.RawMessage `json:"value"`
	Name  string          `json:"name"`
	ID    int             `json:"id"`
}

// text returns the column value as a string, "" when absent or null.
func (c *fioColumn) text() (string, error) {
	if c == nil || len(c.Value) == 0 {
		return "", nil
	}
	raw := bytes.TrimSpace(c.Value)
	if bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("column %d: %w", c.ID, err)
		}
		return s, nil
	}
	return string(raw), nil
}

// Parse decodes a Fio statement into a RawStatement.
func (p *FioParser) Parse(r io.Reader) (*model.RawStatement, error) {
	var env fioEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, syncerr.New(syncerr.DataFormat, "decoding fio statement", err)
	}
	if env.Statement == nil {
		return nil, syncerr.Errorf(syncerr.DataFormat, "decoding fio statement", "missing attribute %q", "accountStatement")
	}

	info := env.Statement.Info
	stmt := &model.RawStatement{
		Info: model.StatementInfo{
			AccountID: info.AccountID,
			BankID:    info.BankID,
			Currency:  info.Currency,
			IBAN:      info.IBAN,
			BIC:       info.BIC,
		},
	}

	for i, row := range env.Statement.TransactionList.Transaction {
		raw, err := parseFioRow(row)
		if err != nil {
			return nil, syncerr.New(syncerr.DataFormat, fmt.Sprintf("fio row %d", i+1), err)
		}
		stmt.Rows = append(stmt.Rows, raw)
	}
	return stmt, nil
}

func parseFioRow(row fioRow) (model.RawRow, error) {
	var (
		out    model.RawRow
		amount string
	)

	fields := []struct {
		col *fioColumn
		dst *string
	}{
		{row.ValueDate, &out.ValueDate},
		{row.Amount, &amount},
		{row.CounterAccount, &out.CounterAccount},
		{row.CounterBankCode, &out.CounterBankCode},
		{row.Narrative, &out.Narrative},
		{row.Currency, &out.Currency},
		{row.TransactionID, &out.TransactionID},
		{row.TransferID, &out.TransferID},
		{row.Comment, &out.Comment},
	}
	for _, f := range fields {
		v, err := f.col.text()
		if err != nil {
			return model.RawRow{}, err
		}
		*f.dst = v
	}

	if amount != "" {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return model.RawRow{}, fmt.Errorf("parsing amount %q: %w", amount, err)
		}
		out.Amount = d
		out.HasAmount = true
	}
	return out, nil
}
