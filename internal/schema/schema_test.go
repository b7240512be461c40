package schema

import (
	"errors"
	"testing"
)

const recordSchema = `{
	"type": "record",
	"namespace": "rfb.json",
	"name": "R",
	"fields": [
		{"name": "name", "type": "string"},
		{"name": "tags", "type": {"type": "array", "items": "string"}},
		{"name": "codigo", "type": ["null", "int"], "default": null}
	]
}`

func TestParseDocumentJSON(t *testing.T) {
	doc, err := ParseDocumentJSON([]byte(recordSchema))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Type != "record" || doc.Namespace != "rfb.json" || doc.Name != "R" {
		t.Errorf("unexpected header: %+v", doc)
	}
	if len(doc.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(doc.Fields))
	}

	name := doc.Fields[0]
	if name.Type.Primitive != "string" || name.Optional() {
		t.Errorf("unexpected name field: %+v", name)
	}

	tags := doc.Fields[1]
	if tags.Type.Array == nil || tags.Type.Array.Primitive != "string" {
		t.Errorf("unexpected tags field type: %+v", tags.Type)
	}

	codigo := doc.Fields[2]
	if len(codigo.Type.Union) != 2 {
		t.Fatalf("expected 2 union members, got %d", len(codigo.Type.Union))
	}
	if !codigo.Optional() {
		t.Error("union with null must be optional")
	}
	if !codigo.HasDefault {
		t.Error("expected default to be recorded")
	}
}

func TestParseDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{`},
		{"not an object", `"x"`},
		{"missing fields", `{"type": "record"}`},
		{"fields not a list", `{"fields": {}}`},
		{"field not an object", `{"fields": ["x"]}`},
		{"field without name", `{"fields": [{"type": "string"}]}`},
		{"field without type", `{"fields": [{"name": "a"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDocumentJSON([]byte(tt.data)); !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestFieldOptional(t *testing.T) {
	tests := []struct {
		name     string
		field    Field
		optional bool
	}{
		{"plain required", Field{Type: ParseFieldType("string")}, false},
		{"has default", Field{Type: ParseFieldType("string"), HasDefault: true}, true},
		{"union with null", Field{Type: ParseFieldType([]any{"null", "int"})}, true},
		{"union without null", Field{Type: ParseFieldType([]any{"string", "int"})}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.field.Optional(); got != tt.optional {
				t.Errorf("expected optional=%v, got %v", tt.optional, got)
			}
		})
	}
}

func TestFieldTypeString(t *testing.T) {
	tests := []struct {
		raw  any
		want string
	}{
		{"string", `"string"`},
		{[]any{"null", "int"}, `["null","int"]`},
		{map[string]any{"type": "array", "items": "string"}, `{"items":"string","type":"array"}`},
	}

	for _, tt := range tests {
		if got := ParseFieldType(tt.raw).String(); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}

// Unknown type shapes are retained but match nothing; parsing never fails.
func TestParseFieldTypeUnknownShape(t *testing.T) {
	ft := ParseFieldType(map[string]any{"type": "map", "values": "string"})
	if ft.Primitive != "" || ft.Union != nil || ft.Array != nil {
		t.Errorf("unknown shape must not classify: %+v", ft)
	}
	if len(ft.Candidates()) != 1 {
		t.Errorf("expected self as only candidate")
	}
}
