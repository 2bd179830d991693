package importer

import (
	"context"

	"github.com/cleared-dev/ledgersync/internal/id"
	"github.com/cleared-dev/ledgersync/internal/model"
)

// FileProvider serves a statement stored on disk in place of the remote
// provider. Rows at or before the cursor are dropped.
type FileProvider struct {
	Path   string
	Parser Parser
}

// NewFileProvider returns a FileProvider for path. The parser defaults to
// FioParser.
func NewFileProvider(path string, p Parser) *FileProvider {
	if p == nil {
		p = &FioParser{}
	}
	return &FileProvider{Path: path, Parser: p}
}

// Statement reads the file and keeps rows strictly after fromTransferID.
// token and wait are ignored.
func (f *FileProvider) Statement(ctx context.Context, token, fromTransferID string, wait bool) (*model.RawStatement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stmt, err := ParseFile(f.Parser, f.Path)
	if err != nil {
		return nil, err
	}
	if fromTransferID == "" {
		return stmt, nil
	}

	rows := stmt.Rows[:0]
	for _, row := range stmt.Rows {
		if id.After(row.TransferID, fromTransferID) {
			rows = append(rows, row)
		}
	}
	stmt.Rows = rows
	return stmt, nil
}
