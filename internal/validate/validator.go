// Package validate provides the structural validator that checks decoded
// records against a registered schema document, and the checker factory that
// resolves a decoder by file extension.
package validate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/datasieve/datasieve/internal/schema"
)

const (
	maxValueRepr  = 50
	maxSchemaRepr = 200
)

// Record is a decoded data record keyed by field name.
type Record = map[string]any

// Finding describes one way in which a record departs from its schema. An
// empty findings list means the record conforms.
type Finding struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Expected string `json:"expected"`
	Received string `json:"received"`
}

// Validate checks a record against a schema document and returns the list of
// findings in emission order: extra fields first (sorted by name, so the
// result is deterministic), then schema fields in declaration order. It is
// pure: no I/O, and neither input is mutated.
//
// doc is the decoded JSON form of the schema document. A document that does
// not parse as a record schema yields a single "schema" finding rather than
// an error, so one bad registration cannot halt the pipeline.
func Validate(record Record, doc any) []Finding {
	findings := []Finding{}

	parsed, err := schema.ParseDocument(doc)
	if err != nil {
		return append(findings, Finding{
			Field:    "schema",
			Message:  fmt.Sprintf("invalid or malformed schema: %v", err),
			Expected: "a valid schema",
			Received: truncate(displayValue(doc), maxSchemaRepr),
		})
	}

	declared := make(map[string]bool, len(parsed.Fields))
	for _, f := range parsed.Fields {
		declared[f.Name] = true
	}

	extras := make([]string, 0)
	for name := range record {
		if !declared[name] {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	for _, name := range extras {
		findings = append(findings, Finding{
			Field:    name,
			Message:  "extra field not defined in schema",
			Expected: "absent",
			Received: truncate(displayValue(record[name]), maxValueRepr),
		})
	}

	for _, field := range parsed.Fields {
		value, present := record[field.Name]
		if !present || value == nil {
			if field.Optional() {
				continue
			}
			findings = append(findings, Finding{
				Field:    field.Name,
				Message:  "required field missing",
				Expected: field.Type.String(),
				Received: "None",
			})
			continue
		}

		if !matchesAny(value, field.Type.Candidates()) {
			findings = append(findings, Finding{
				Field:    field.Name,
				Message:  "incorrect data type",
				Expected: field.Type.String(),
				Received: fmt.Sprintf("%s (type: %s)", truncate(displayValue(value), maxValueRepr), typeName(value)),
			})
		}
	}

	return findings
}

// matchesAny reports whether the value matches any candidate type; union
// semantics are positional, first match wins.
func matchesAny(value any, candidates []schema.FieldType) bool {
	for _, c := range candidates {
		if matches(value, c) {
			return true
		}
	}
	return false
}

func matches(value any, t schema.FieldType) bool {
	switch t.Primitive {
	case "null":
		return value == nil
	case "string":
		_, ok := value.(string)
		return ok
	case "int":
		// Booleans are deliberately not integers, and a float literal must
		// not pass as int.
		n, ok := value.(json.Number)
		return ok && isIntegerLiteral(n)
	case "double":
		_, ok := value.(json.Number)
		return ok
	}

	if t.Array != nil {
		seq, ok := value.([]any)
		if !ok {
			return false
		}
		for _, item := range seq {
			if !matchesAny(item, t.Array.Candidates()) {
				return false
			}
		}
		return true
	}

	return false
}

// isIntegerLiteral reports whether the JSON number literal denotes an
// integer: no fraction and no exponent.
func isIntegerLiteral(n json.Number) bool {
	return !strings.ContainsAny(n.String(), ".eE")
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// displayValue renders a value for a finding's received column.
func displayValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "None"
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// truncate caps s at limit characters, never splitting a multibyte rune.
func truncate(s string, limit int) string {
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
