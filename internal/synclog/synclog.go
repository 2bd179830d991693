// Package synclog keeps a CSV audit trail of sync passes.
package synclog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Entry is one row of the sync log.
type Entry struct {
	Timestamp    time.Time
	RunID        string
	Tenant       string
	Account      string
	Status       string
	Transactions int
	Divergent    int
	Checkpoint   string
	Error        string
}

// Header is the CSV header of the sync log.
const Header = "timestamp,run_id,tenant,account,status,transactions,divergent,checkpoint,error"

const (
	numFields       = 9
	colTimestamp    = 0
	colRunID        = 1
	colTenant       = 2
	colAccount      = 3
	colStatus       = 4
	colTransactions = 5
	colDivergent    = 6
	colCheckpoint   = 7
	colError        = 8
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colTenant] = e.Tenant
	row[colAccount] = e.Account
	row[colStatus] = e.Status
	row[colTransactions] = strconv.Itoa(e.Transactions)
	row[colDivergent] = strconv.Itoa(e.Divergent)
	row[colCheckpoint] = e.Checkpoint
	row[colError] = e.Error
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	txns, err := strconv.Atoi(record[colTransactions])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing transactions %q: %w", record[colTransactions], err)
	}
	divergent, err := strconv.Atoi(record[colDivergent])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing divergent %q: %w", record[colDivergent], err)
	}

	return Entry{
		Timestamp:    ts,
		RunID:        record[colRunID],
		Tenant:       record[colTenant],
		Account:      record[colAccount],
		Status:       record[colStatus],
		Transactions: txns,
		Divergent:    divergent,
		Checkpoint:   record[colCheckpoint],
		Error:        record[colError],
	}, nil
}

// Append writes entries to the log at path, creating the file, its
// directory and the header if needed.
func Append(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating sync log dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening sync log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries of the log at path, nil if it does not exist.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening sync log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

// Last returns the most recent entry for tenant and account.
func Last(path, tenant, account string) (Entry, bool, error) {
	entries, err := Read(path)
	if err != nil {
		return Entry{}, false, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Tenant == tenant && entries[i].Account == account {
			return entries[i], true, nil
		}
	}
	return Entry{}, false, nil
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading sync log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
