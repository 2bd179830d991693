package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledgersync/internal/model"
)

// TransfersHeader is the CSV header for transfers.csv.
const TransfersHeader = "transaction_id,transfer_id,value_date,debit,credit,amount,currency"

const (
	numTransferFields = 7
	colTxnID          = 0
	colTransferID     = 1
	colValueDate      = 2
	colDebit          = 3
	colCredit         = 4
	colAmount         = 5
	colCurrency       = 6
)

// WriteTransfers writes one row per transfer (including header), keeping
// transaction and transfer order.
func WriteTransfers(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(TransfersHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := 2
	for _, txn := range txns {
		for _, tr := range txn.Transfers {
			if err := cw.Write(MarshalTransfer(txn.ID, tr)); err != nil {
				return fmt.Errorf("writing row %d: %w", row, err)
			}
			row++
		}
	}
	return cw.Error()
}

// ReadTransfers reads transfers.csv and regroups rows into transactions in
// first-seen order.
func ReadTransfers(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numTransferFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transfers CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var txns []model.Transaction
	index := make(map[string]int)
	for i, rec := range records[1:] {
		txnID, tr, err := UnmarshalTransfer(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		pos, ok := index[txnID]
		if !ok {
			pos = len(txns)
			index[txnID] = pos
			txns = append(txns, model.Transaction{ID: txnID})
		}
		txns[pos].Transfers = append(txns[pos].Transfers, tr)
	}
	return txns, nil
}

// MarshalTransfer converts a transfer of transaction txnID to a CSV row.
func MarshalTransfer(txnID string, tr model.Transfer) []string {
	row := make([]string, numTransferFields)
	row[colTxnID] = txnID
	row[colTransferID] = tr.ID
	row[colValueDate] = tr.ValueDate
	row[colDebit] = tr.Debit
	row[colCredit] = tr.Credit
	row[colAmount] = tr.Amount.String()
	row[colCurrency] = tr.Currency
	return row
}

// UnmarshalTransfer converts a CSV row to a transfer and its transaction ID.
func UnmarshalTransfer(record []string) (string, model.Transfer, error) {
	if len(record) != numTransferFields {
		return "", model.Transfer{}, fmt.Errorf("expected %d fields, got %d", numTransferFields, len(record))
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return "", model.Transfer{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	return record[colTxnID], model.Transfer{
		ID:        record[colTransferID],
		ValueDate: record[colValueDate],
		Debit:     record[colDebit],
		Credit:    record[colCredit],
		Amount:    amount,
		Currency:  record[colCurrency],
	}, nil
}
