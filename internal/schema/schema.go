// Package schema provides the in-memory model of a registered Avro record
// schema document.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when a document does not have the shape of an
// Avro record schema.
var ErrMalformed = errors.New("malformed schema document")

// Document is the logical form of an Avro record schema. Only the parts the
// validator consumes are modelled; the full document is stored verbatim in
// the registry.
type Document struct {
	Type      string
	Namespace string
	Name      string
	Fields    []Field
}

// Field is a single field declaration inside a record schema.
type Field struct {
	Name       string
	Type       FieldType
	HasDefault bool
	Default    any
}

// Optional reports whether a null value is acceptable for the field: it has
// a default, or its type is a union containing "null".
func (f Field) Optional() bool {
	if f.HasDefault {
		return true
	}
	for _, t := range f.Type.Union {
		if t.Primitive == "null" {
			return true
		}
	}
	return false
}

// FieldType is a tagged variant for an Avro field type: a primitive name, an
// ordered union of types, or an array with an item type. A type that fits
// none of these shapes is retained for display but matches no value.
type FieldType struct {
	Primitive string
	Union     []FieldType
	Array     *FieldType

	raw any
}

// Candidates returns the ordered list of types a value may match: the union
// members for a union, otherwise the type itself. Union semantics are
// positional, first match wins.
func (t FieldType) Candidates() []FieldType {
	if t.Union != nil {
		return t.Union
	}
	return []FieldType{t}
}

// String returns the compact JSON representation of the type as it appeared
// in the document, e.g. `"string"`, `["null","int"]` or
// `{"type":"array","items":"string"}`.
func (t FieldType) String() string {
	b, err := json.Marshal(t.raw)
	if err != nil {
		return fmt.Sprintf("%v", t.raw)
	}
	return string(b)
}

// ParseDocumentJSON decodes raw JSON and parses it as a record schema
// document.
func ParseDocumentJSON(data []byte) (*Document, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return ParseDocument(v)
}

// ParseDocument parses a decoded JSON value as a record schema document. The
// document must carry a "fields" list whose entries each have a string
// "name" and a "type".
func ParseDocument(v any) (*Document, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document is not an object", ErrMalformed)
	}

	doc := &Document{}
	doc.Type, _ = obj["type"].(string)
	doc.Namespace, _ = obj["namespace"].(string)
	doc.Name, _ = obj["name"].(string)

	rawFields, ok := obj["fields"]
	if !ok {
		return nil, fmt.Errorf("%w: missing fields", ErrMalformed)
	}
	list, ok := rawFields.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: fields is not a list", ErrMalformed)
	}

	doc.Fields = make([]Field, 0, len(list))
	for i, rf := range list {
		fobj, ok := rf.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: field %d is not an object", ErrMalformed, i)
		}
		name, ok := fobj["name"].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: field %d has no name", ErrMalformed, i)
		}
		rawType, ok := fobj["type"]
		if !ok {
			return nil, fmt.Errorf("%w: field %q has no type", ErrMalformed, name)
		}

		field := Field{
			Name: name,
			Type: ParseFieldType(rawType),
		}
		if def, ok := fobj["default"]; ok {
			field.HasDefault = true
			field.Default = def
		}
		doc.Fields = append(doc.Fields, field)
	}

	return doc, nil
}

// ParseFieldType classifies a raw field type value. Unknown shapes are kept
// verbatim so findings can display them, but they never match a value.
func ParseFieldType(v any) FieldType {
	ft := FieldType{raw: v}

	switch t := v.(type) {
	case string:
		ft.Primitive = t
	case []any:
		ft.Union = make([]FieldType, 0, len(t))
		for _, member := range t {
			ft.Union = append(ft.Union, ParseFieldType(member))
		}
	case map[string]any:
		if kind, _ := t["type"].(string); kind == "array" {
			if items, ok := t["items"]; ok {
				inner := ParseFieldType(items)
				ft.Array = &inner
			}
		}
	}

	return ft
}
