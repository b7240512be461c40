package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// JSONChecker decodes JSON blobs into records. Numbers are kept as
// json.Number so integer and floating literals stay distinguishable.
type JSONChecker struct{}

// NewJSONChecker creates a JSON checker.
func NewJSONChecker() *JSONChecker {
	return &JSONChecker{}
}

// Convert parses a UTF-8 JSON blob. A top-level object yields one record; a
// top-level array yields one record per element. Anything else, including an
// array element that is not an object or content trailing the value, fails
// with ErrParse.
func (c *JSONChecker) Convert(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	// The blob must be exactly one JSON value; anything after it is a
	// malformed blob, not extra records.
	if err := dec.Decode(new(any)); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrParse)
	}

	switch top := v.(type) {
	case map[string]any:
		return []Record{top}, nil
	case []any:
		records := make([]Record, 0, len(top))
		for i, elem := range top {
			rec, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is not a JSON object", ErrParse, i)
			}
			records = append(records, rec)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("%w: top-level value is not an object or array", ErrParse)
	}
}
