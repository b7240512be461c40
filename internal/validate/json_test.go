package validate

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestJSONCheckerConvertObject(t *testing.T) {
	records, err := NewJSONChecker().Convert([]byte(`{"a": 1, "b": "x"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if got := records[0]["a"]; got != json.Number("1") {
		t.Errorf("expected json.Number 1, got %v (%T)", got, got)
	}
}

func TestJSONCheckerConvertArray(t *testing.T) {
	records, err := NewJSONChecker().Convert([]byte(`[{"a": 1}, {"a": 2}, {"a": 3}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
}

func TestJSONCheckerConvertErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{"a":`},
		{"scalar top level", `42`},
		{"string top level", `"hello"`},
		{"array with scalar element", `[{"a": 1}, 2]`},
		{"trailing garbage", `{"a": 1} %%%garbage%%%`},
		{"second value", `{"a": 1} {"a": 2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJSONChecker().Convert([]byte(tt.data))
			if !errors.Is(err, ErrParse) {
				t.Errorf("expected ErrParse, got %v", err)
			}
		})
	}
}

func TestJSONCheckerConvertTrailingWhitespace(t *testing.T) {
	records, err := NewJSONChecker().Convert([]byte("{\"a\": 1}\n\t "))
	if err != nil {
		t.Fatalf("whitespace after the value must be fine: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

// Integer and floating literals must stay distinguishable after decoding.
func TestJSONCheckerPreservesNumberLiterals(t *testing.T) {
	records, err := NewJSONChecker().Convert([]byte(`{"i": 30, "f": 30.0}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0]["i"] != json.Number("30") {
		t.Errorf("expected literal 30, got %v", records[0]["i"])
	}
	if records[0]["f"] != json.Number("30.0") {
		t.Errorf("expected literal 30.0, got %v", records[0]["f"])
	}
}
