package validate

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

const testSchema = `{
	"type": "record",
	"namespace": "rfb.json",
	"name": "R",
	"fields": [
		{"name": "name", "type": "string"},
		{"name": "age", "type": "int"},
		{"name": "salary", "type": "double"},
		{"name": "data_criacao", "type": "string"},
		{"name": "data_nascimento", "type": "string"},
		{"name": "hora_registro", "type": "string"},
		{"name": "tags", "type": {"type": "array", "items": "string"}},
		{"name": "codigo", "type": ["null", "int"], "default": null}
	]
}`

func schemaDoc(t *testing.T) any {
	t.Helper()
	var doc any
	if err := json.Unmarshal([]byte(testSchema), &doc); err != nil {
		t.Fatalf("failed to decode schema: %v", err)
	}
	return doc
}

func decodeRecord(t *testing.T, raw string) Record {
	t.Helper()
	records, err := NewJSONChecker().Convert([]byte(raw))
	if err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	return records[0]
}

const validRecord = `{
	"name": "João",
	"age": 30,
	"salary": 5000.50,
	"data_criacao": "2025-11-14",
	"data_nascimento": "1995-01-10",
	"hora_registro": "12:22:00",
	"tags": ["a", "b"],
	"codigo": 123
}`

func TestValidateValidRecord(t *testing.T) {
	findings := Validate(decodeRecord(t, validRecord), schemaDoc(t))
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %+v", findings)
	}
}

func TestValidateExtraField(t *testing.T) {
	record := decodeRecord(t, validRecord)
	record["extra_field"] = json.Number("123")

	findings := Validate(record, schemaDoc(t))
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %+v", len(findings), findings)
	}
	f := findings[0]
	if f.Field != "extra_field" {
		t.Errorf("expected field extra_field, got %s", f.Field)
	}
	if f.Message != "extra field not defined in schema" {
		t.Errorf("unexpected message: %s", f.Message)
	}
	if f.Expected != "absent" {
		t.Errorf("unexpected expected: %s", f.Expected)
	}
	if f.Received != "123" {
		t.Errorf("unexpected received: %s", f.Received)
	}
}

func TestValidateMissingRequired(t *testing.T) {
	record := decodeRecord(t, validRecord)
	delete(record, "data_criacao")
	delete(record, "data_nascimento")
	delete(record, "hora_registro")

	findings := Validate(record, schemaDoc(t))
	if len(findings) != 3 {
		t.Fatalf("expected 3 findings, got %d: %+v", len(findings), findings)
	}

	// Findings follow schema declaration order.
	want := []string{"data_criacao", "data_nascimento", "hora_registro"}
	for i, f := range findings {
		if f.Field != want[i] {
			t.Errorf("finding %d: expected field %s, got %s", i, want[i], f.Field)
		}
		if f.Message != "required field missing" {
			t.Errorf("finding %d: unexpected message: %s", i, f.Message)
		}
		if f.Received != "None" {
			t.Errorf("finding %d: expected received None, got %s", i, f.Received)
		}
	}
}

func TestValidateWrongType(t *testing.T) {
	record := decodeRecord(t, validRecord)
	record["age"] = "30"

	findings := Validate(record, schemaDoc(t))
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %+v", len(findings), findings)
	}
	f := findings[0]
	if f.Field != "age" {
		t.Errorf("expected field age, got %s", f.Field)
	}
	if f.Message != "incorrect data type" {
		t.Errorf("unexpected message: %s", f.Message)
	}
	if f.Expected != `"int"` {
		t.Errorf("unexpected expected: %s", f.Expected)
	}
	if f.Received != "30 (type: string)" {
		t.Errorf("unexpected received: %s", f.Received)
	}
}

func TestValidateOptionalNull(t *testing.T) {
	record := decodeRecord(t, validRecord)
	record["codigo"] = nil

	if findings := Validate(record, schemaDoc(t)); len(findings) != 0 {
		t.Errorf("expected no findings for null optional, got %+v", findings)
	}

	delete(record, "codigo")
	if findings := Validate(record, schemaDoc(t)); len(findings) != 0 {
		t.Errorf("expected no findings for absent optional, got %+v", findings)
	}
}

func TestValidateTypeRules(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    any
		findings int
	}{
		{"float literal is not int", "age", json.Number("30.5"), 1},
		{"exponent literal is not int", "age", json.Number("3e2"), 1},
		{"bool is not int", "age", true, 1},
		{"integer literal is a double", "salary", json.Number("5000"), 0},
		{"bool is not a double", "salary", false, 1},
		{"number is not a string", "name", json.Number("1"), 1},
		{"array of strings accepted", "tags", []any{"x", "y"}, 0},
		{"array with wrong element type", "tags", []any{"x", json.Number("2")}, 1},
		{"scalar where array expected", "tags", "x", 1},
		{"string does not satisfy null int union", "codigo", "abc", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := decodeRecord(t, validRecord)
			record[tt.field] = tt.value
			findings := Validate(record, schemaDoc(t))
			if len(findings) != tt.findings {
				t.Errorf("expected %d findings, got %d: %+v", tt.findings, len(findings), findings)
			}
		})
	}
}

func TestValidateExtraFieldsSorted(t *testing.T) {
	record := decodeRecord(t, validRecord)
	record["zzz"] = "v"
	record["aaa"] = "v"
	record["mmm"] = "v"

	findings := Validate(record, schemaDoc(t))
	if len(findings) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(findings))
	}
	want := []string{"aaa", "mmm", "zzz"}
	for i, f := range findings {
		if f.Field != want[i] {
			t.Errorf("finding %d: expected %s, got %s", i, want[i], f.Field)
		}
	}
}

func TestValidateMalformedSchema(t *testing.T) {
	tests := []struct {
		name string
		doc  any
	}{
		{"not an object", "just a string"},
		{"missing fields", map[string]any{"type": "record"}},
		{"fields not a list", map[string]any{"fields": "nope"}},
		{"field without name", map[string]any{"fields": []any{map[string]any{"type": "string"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := Validate(decodeRecord(t, validRecord), tt.doc)
			if len(findings) != 1 {
				t.Fatalf("expected 1 finding, got %d: %+v", len(findings), findings)
			}
			f := findings[0]
			if f.Field != "schema" {
				t.Errorf("expected field schema, got %s", f.Field)
			}
			if f.Expected != "a valid schema" {
				t.Errorf("unexpected expected: %s", f.Expected)
			}
		})
	}
}

// Validation must be deterministic and must not mutate its inputs.
func TestValidatePurity(t *testing.T) {
	record := decodeRecord(t, validRecord)
	record["extra_field"] = json.Number("123")
	delete(record, "data_criacao")

	before := make(Record, len(record))
	for k, v := range record {
		before[k] = v
	}
	doc := schemaDoc(t)
	docCopy := schemaDoc(t)

	first := Validate(record, doc)
	second := Validate(record, doc)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("validation is not deterministic:\n%+v\n%+v", first, second)
	}
	if !reflect.DeepEqual(record, before) {
		t.Errorf("record was mutated: %+v", record)
	}
	if !reflect.DeepEqual(doc, docCopy) {
		t.Errorf("schema document was mutated")
	}
}

func TestValidateReceivedTruncated(t *testing.T) {
	record := decodeRecord(t, validRecord)
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	record["age"] = string(long)

	findings := Validate(record, schemaDoc(t))
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if got := len(findings[0].Received); got > maxValueRepr+len(" (type: string)") {
		t.Errorf("received not truncated, length %d: %s", got, findings[0].Received)
	}
}

// Truncation counts characters, so a multibyte value must never be cut
// mid-rune.
func TestValidateReceivedTruncatedMultibyte(t *testing.T) {
	record := decodeRecord(t, validRecord)
	record["age"] = strings.Repeat("日", maxValueRepr+10)

	findings := Validate(record, schemaDoc(t))
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	received := findings[0].Received
	if !utf8.ValidString(received) {
		t.Fatalf("received is not valid UTF-8: %q", received)
	}
	value := strings.TrimSuffix(received, " (type: string)")
	if got := utf8.RuneCountInString(value); got != maxValueRepr {
		t.Errorf("expected %d characters, got %d: %q", maxValueRepr, got, value)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"exact", 5, "exact"},
		{"overflow", 4, "over"},
		{"日本語日本語", 3, "日本語"},
		{"", 5, ""},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.limit); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}
