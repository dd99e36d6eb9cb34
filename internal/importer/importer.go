package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/finoob/finoob/internal/model"
)

// Adapter reads one institution's export and normalizes it into statement rows.
type Adapter interface {
	// Bank is the institution code the account registry refers to.
	Bank() string
	// HasBalance reports whether the export carries a running balance column.
	HasBalance() bool
	// Read parses the raw file into a header and string cells.
	Read(r io.Reader) (*RawTable, error)
	// Normalize maps raw cells onto the canonical row shape. Malformed cells
	// become a zero date, zero amount or null balance; only missing columns
	// are an error.
	Normalize(t *RawTable) ([]model.StatementRow, error)
}

// Registry holds adapters keyed by lower-cased bank code.
type Registry struct {
	adapters map[string]Adapter
}

// FileInfo describes a statement file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter. Panics on duplicate bank code.
func (r *Registry) Register(a Adapter) {
	key := strings.ToLower(a.Bank())
	if _, ok := r.adapters[key]; ok {
		panic("duplicate adapter for bank: " + key)
	}
	r.adapters[key] = a
}

// Get returns the adapter for bank, or nil.
func (r *Registry) Get(bank string) Adapter {
	return r.adapters[strings.ToLower(bank)]
}

// Banks returns the registered bank codes, sorted.
func (r *Registry) Banks() []string {
	banks := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		banks = append(banks, k)
	}
	sort.Strings(banks)
	return banks
}

// Parse reads and normalizes an export with the adapter registered for bank.
func (r *Registry) Parse(bank string, src io.Reader) ([]model.StatementRow, error) {
	a := r.Get(bank)
	if a == nil {
		return nil, &UnknownBankError{Bank: bank}
	}

	table, err := a.Read(src)
	if err != nil {
		return nil, fmt.Errorf("reading %s export: %w", a.Bank(), err)
	}

	rows, err := a.Normalize(table)
	if err != nil {
		return nil, fmt.Errorf("normalizing %s export: %w", a.Bank(), err)
	}
	return rows, nil
}

// DefaultRegistry returns a registry with all built-in adapters.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&PTSBAdapter{})
	r.Register(&RevolutAdapter{})
	r.Register(&USBankAdapter{})
	r.Register(&CMBAdapter{})
	return r
}

// importDir is the subdirectory for statement exports waiting to be imported.
const importDir = "import"

// processedDir is the subdirectory for exports already imported.
const processedDir = "import/processed"

var statementExts = map[string]bool{".csv": true, ".xlsx": true}

// Scan returns statement files in <root>/import/.
func Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, importDir)
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
		if !statementExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, importDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
