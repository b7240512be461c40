package validate

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Errors returned by checkers and the factory.
var (
	// ErrParse indicates a blob that could not be decoded into records.
	ErrParse = errors.New("parse error")
	// ErrUnsupportedFormat indicates a file extension with no checker.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Checker converts a raw blob into one or more records for validation.
type Checker interface {
	Convert(data []byte) ([]Record, error)
}

// Factory resolves a Checker by file extension and caches one instance per
// extension for its lifetime.
type Factory struct {
	mu    sync.Mutex
	cache map[string]Checker
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{cache: make(map[string]Checker)}
}

// ForFilename resolves a checker from the lowercase extension of filename.
// csv, xml and avro are reserved: they fail with ErrUnsupportedFormat until
// a checker exists for them.
func (f *Factory) ForFilename(filename string) (Checker, error) {
	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = strings.ToLower(filename[i+1:])
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.cache[ext]; ok {
		return c, nil
	}

	var checker Checker
	switch ext {
	case "json":
		checker = NewJSONChecker()
	case "csv", "xml", "avro":
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f.cache[ext] = checker
	return checker, nil
}

// Clear empties the cache.
func (f *Factory) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[string]Checker)
}

// Size returns the number of cached checkers.
func (f *Factory) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cache)
}
