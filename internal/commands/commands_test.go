package commands_test

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledgersync/internal/config"
	"github.com/cleared-dev/ledgersync/internal/export"
)

var statementPath = filepath.Join("..", "..", "testdata", "fio_statement.json")

func TestNormalize_WritesCSV(t *testing.T) {
	out := t.TempDir()
	stdout, err := runLedgersync(t, "normalize", statementPath, "--out", out)
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "Wrote 5 transactions and 8 accounts")

	f, err := os.Open(filepath.Join(out, "transfers.csv"))
	require.NoError(t, err)
	defer f.Close()
	txns, err := export.ReadTransfers(f)
	require.NoError(t, err)
	require.Len(t, txns, 5)
	assert.Equal(t, "2121115983", txns[0].ID)
	assert.Len(t, txns[0].Transfers, 2)

	af, err := os.Open(filepath.Join(out, "accounts.csv"))
	require.NoError(t, err)
	defer af.Close()
	accts, err := export.ReadAccounts(af)
	require.NoError(t, err)
	require.Len(t, accts, 8)
	assert.Equal(t, "CZ9620100000002400222233", accts[7].AccountNumber)
}

func TestNormalize_JSON(t *testing.T) {
	cmdOut, err := runLedgersync(t, "normalize", statementPath, "--json")
	require.NoError(t, err, cmdOut)

	var doc struct {
		Statement struct {
			AccountNumber string            `json:"accountNumber"`
			Transactions  []json.RawMessage `json:"transactions"`
		} `json:"statement"`
		Accounts []json.RawMessage `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal([]byte(cmdOut), &doc))
	assert.Equal(t, "CZ9620100000002400222233", doc.Statement.AccountNumber)
	assert.Len(t, doc.Statement.Transactions, 5)
	assert.Len(t, doc.Accounts, 8)
}

func TestNormalize_UnknownFormat(t *testing.T) {
	out, err := runLedgersync(t, "normalize", statementPath, "--format", "mt940")
	require.Error(t, err)
	assert.Contains(t, out, "unknown statement format")
}

func TestCheckpoint_SetGet(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, config.FileName)
	require.NoError(t, config.Save(cfgPath, config.Default()))

	out, err := runLedgersync(t, "--config", cfgPath, "checkpoint", "get", "acme", "CZ1")
	require.Error(t, err)
	assert.Contains(t, out, "no checkpoint")

	out, err = runLedgersync(t, "--config", cfgPath, "checkpoint", "set", "acme", "CZ1", "1158219003", "--token", "tok")
	require.NoError(t, err, out)

	out, err = runLedgersync(t, "--config", cfgPath, "checkpoint", "get", "acme", "CZ1")
	require.NoError(t, err, out)
	assert.Equal(t, "1158219003", strings.TrimSpace(out))

	out, err = runLedgersync(t, "--config", cfgPath, "checkpoint", "get", "acme", "--token", "tok")
	require.NoError(t, err, out)
	assert.Equal(t, "1158219003", strings.TrimSpace(out))

	_, err = runLedgersync(t, "--config", cfgPath, "checkpoint", "set", "acme", "CZ1", "abc")
	require.Error(t, err)
}

func TestImport_ProcessesDirectory(t *testing.T) {
	ledger := newFakeLedger()
	ledgerSrv := httptest.NewServer(ledger.handler())
	defer ledgerSrv.Close()

	cfgPath := writeSyncConfig(t, "http://127.0.0.1:1", ledgerSrv.URL)
	importDir := filepath.Join(filepath.Dir(cfgPath), "imports")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	data, err := os.ReadFile(statementPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "2016-04.json"), data, 0o644))

	out, err := runLedgersync(t, "--config", cfgPath, "import", "--tenant", "acme", "--account", ownerAccount)
	require.NoError(t, err, out)
	assert.Contains(t, out, "2016-04.json: acme "+ownerAccount+": success")
	assert.Len(t, ledger.transactions, 5)

	_, err = os.Stat(filepath.Join(importDir, "processed", "2016-04.json"))
	require.NoError(t, err)

	// Re-importing the same statement is a no-op past the checkpoint.
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "again.json"), data, 0o644))
	out, err = runLedgersync(t, "--config", cfgPath, "import", "--tenant", "acme", "--account", ownerAccount)
	require.NoError(t, err, out)
	assert.Contains(t, out, "again.json: acme "+ownerAccount+": skipped")
}

func TestImport_KeysCheckpointByStatementOwner(t *testing.T) {
	const otherOwner = "CZ6508000000192000145399"

	ledger := newFakeLedger()
	ledgerSrv := httptest.NewServer(ledger.handler())
	defer ledgerSrv.Close()

	cfgPath := writeSyncConfig(t, "http://127.0.0.1:1", ledgerSrv.URL)
	importDir := filepath.Join(filepath.Dir(cfgPath), "imports")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	data, err := os.ReadFile(statementPath)
	require.NoError(t, err)
	other := strings.Replace(string(data), `"iban": "`+ownerAccount+`"`, `"iban": "`+otherOwner+`"`, 1)
	require.NotEqual(t, string(data), other)
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "a.json"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "b.json"), []byte(other), 0o644))

	out, err := runLedgersync(t, "--config", cfgPath, "import", "--tenant", "acme")
	require.NoError(t, err, out)
	assert.Contains(t, out, "a.json: acme "+ownerAccount+": success")
	assert.Contains(t, out, "b.json: acme "+otherOwner+": success")

	for _, owner := range []string{ownerAccount, otherOwner} {
		out, err = runLedgersync(t, "--config", cfgPath, "checkpoint", "get", "acme", owner)
		require.NoError(t, err, out)
		assert.Equal(t, lastTransfer, strings.TrimSpace(out), owner)
	}
}

func TestImport_StopsAtUnreadableStatement(t *testing.T) {
	cfgPath := writeSyncConfig(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	importDir := filepath.Join(filepath.Dir(cfgPath), "imports")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bad.json"), []byte(`{"statement":{}}`), 0o644))

	out, err := runLedgersync(t, "--config", cfgPath, "import", "--tenant", "acme")
	require.Error(t, err)
	assert.Contains(t, out, "bad.json: failed [data_format]")
	_, err = os.Stat(filepath.Join(importDir, "bad.json"))
	assert.NoError(t, err)
}

func TestVersion(t *testing.T) {
	out, err := runLedgersync(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "ledgersync version dev")
}
