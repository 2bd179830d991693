package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cleared-dev/ledgersync/internal/model"
	"github.com/cleared-dev/ledgersync/internal/syncerr"
)

// Parser decodes one provider's statement export. Format names the export
// and is matched case-insensitively.
type Parser interface {
	Parse(r io.Reader) (*model.RawStatement, error)
	Format() string
}

// FileInfo describes a statement file in the import directory. Account and
// Rows come from the parsed statement; Err is set instead when the file is
// not a statement the parser understands.
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	Account string
	Rows    int
	Err     error
}

// Registry maps format names to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a registry holding parsers. It panics when two
// parsers share a format.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: make(map[string]Parser, len(parsers))}
	for _, p := range parsers {
		key := strings.ToLower(p.Format())
		if _, ok := r.parsers[key]; ok {
			panic("duplicate statement format: " + key)
		}
		r.parsers[key] = p
	}
	return r
}

// DefaultRegistry knows every built-in statement format.
func DefaultRegistry() *Registry {
	return NewRegistry(&FioParser{})
}

// Formats lists the known format names, sorted.
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the parser for format.
func (r *Registry) Lookup(format string) (Parser, error) {
	p, ok := r.parsers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("unknown statement format %q (known: %s)", format, strings.Join(r.Formats(), ", "))
	}
	return p, nil
}

// ProcessedDir is the subdirectory of an import directory that receives
// statements after a successful import.
const ProcessedDir = "processed"

// Scan returns statement files (*.json) in dir, sorted by name, each parsed
// with p to learn the statement owner. An unreadable statement does not fail
// the scan; it is reported through FileInfo.Err. A nil p lists the files
// without reading them. A missing directory yields no files.
func Scan(dir string, p Parser) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		f := FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		}
		if p != nil {
			inspect(p, &f)
		}
		files = append(files, f)
	}
	return files, nil
}

func inspect(p Parser, f *FileInfo) {
	stmt, err := ParseFile(p, f.Path)
	if err != nil {
		f.Err = err
		return
	}
	if stmt.Info.IBAN == "" {
		f.Err = syncerr.Errorf(syncerr.DataFormat, "reading "+f.Name, "statement has no owner IBAN")
		return
	}
	f.Account = stmt.Info.IBAN
	f.Rows = len(stmt.Rows)
}

// MarkProcessed moves a file from dir to dir/processed/.
func MarkProcessed(dir, fileName string) error {
	src := filepath.Join(dir, fileName)
	dstDir := filepath.Join(dir, ProcessedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// ParseFile opens path and parses it with p.
func ParseFile(p Parser, path string) (*model.RawStatement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening statement: %w", err)
	}
	defer f.Close()

	stmt, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return stmt, nil
}
