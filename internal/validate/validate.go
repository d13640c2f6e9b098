// Package validate checks document field values against a collection's
// schema: required fields, enum membership, type conformance, defaults, and
// the additional_properties/strict policy for unknown or malformed keys.
package validate

import (
	"fmt"
	"time"

	"github.com/groundlabs/grounddb/internal/ground"
	"github.com/groundlabs/grounddb/internal/schema"
)

// RefCheck is called for every ref-typed field value encountered, so the
// store can verify (and later track, for on_delete processing) that the
// target document exists. validate itself does not know how to look up
// documents.
type RefCheck func(targetCollections []string, id string) error

// Options configures Document.
type Options struct {
	// CheckRef is called for each ref field value; nil disables ref
	// existence checking (e.g. the caller checks referential integrity
	// separately, as internal/store does during delete/cascade planning).
	CheckRef RefCheck
}

// Result is the outcome of validating one document: the normalized field
// map (defaults applied, values coerced to canonical form) plus any
// warnings produced when col.Strict is false and a would-be rejection was
// downgraded instead of failing the write.
type Result struct {
	Fields   map[string]any
	Warnings []string
}

// Document validates and normalizes fields against col: applies defaults
// for missing optional fields, checks each declared field's type (including
// list element types and nested object shapes), enforces enum and
// required, and applies the additional_properties/strict policy. The input
// map is not mutated.
//
// When col.Strict is true (the default), the first violation is returned
// as an error and the field causing it is left out of Result. When false,
// violations are downgraded to warnings and the offending value is dropped
// (unknown fields and failed type/required checks alike), so the write
// still succeeds.
func Document(col *schema.Collection, fields map[string]any, opts Options) (Result, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}

	var warnings []string

	for _, f := range col.Fields {
		val, present := out[f.Name]

		if !present {
			if f.Default != nil {
				out[f.Name] = f.Default
				continue
			}

			if f.Required {
				msg := fieldMsg(f.Name, "required field missing")

				if !col.Strict {
					warnings = append(warnings, msg)
					continue
				}

				return Result{}, fieldErr(col.Name, msg)
			}

			continue
		}

		normalized, err := validateField(f, val, opts)
		if err != nil {
			msg := err.Error()

			if !col.Strict {
				warnings = append(warnings, msg)
				delete(out, f.Name)

				continue
			}

			return Result{}, fieldErr(col.Name, msg)
		}

		out[f.Name] = normalized
	}

	if w, err := checkUnknownFields(col, out); err != nil {
		return Result{}, err
	} else {
		warnings = append(warnings, w...)
	}

	return Result{Fields: out, Warnings: warnings}, nil
}

// checkUnknownFields enforces additional_properties. Violations are always
// reported; whether they are fatal depends on col.Strict, mirrored here
// rather than in Document so the unknown key is actually removed from out
// in the warning case.
func checkUnknownFields(col *schema.Collection, fields map[string]any) ([]string, error) {
	if col.AdditionalProperties {
		return nil, nil
	}

	var unknown []string

	for name := range fields {
		if col.FieldByName(name) == nil {
			unknown = append(unknown, name)
		}
	}

	if len(unknown) == 0 {
		return nil, nil
	}

	if !col.Strict {
		warnings := make([]string, 0, len(unknown))

		for _, name := range unknown {
			warnings = append(warnings, fieldMsg(name, "unknown field (additional_properties is false)"))
			delete(fields, name)
		}

		return warnings, nil
	}

	return nil, fieldErr(col.Name, fieldMsg(unknown[0], "unknown field (additional_properties is false)"))
}

func validateField(f *schema.Field, val any, opts Options) (any, error) {
	switch f.Type {
	case schema.TypeString:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("%s", fieldMsg(f.Name, "expected string"))
		}

		if err := checkEnum(f, s); err != nil {
			return nil, err
		}

		return s, nil

	case schema.TypeNumber:
		return validateNumber(f, val)

	case schema.TypeBoolean:
		b, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("%s", fieldMsg(f.Name, "expected boolean"))
		}

		return b, nil

	case schema.TypeDate:
		return validateTemporal(f, val, "2006-01-02")

	case schema.TypeDatetime:
		return validateTemporal(f, val, time.RFC3339)

	case schema.TypeList:
		return validateList(f, val, opts)

	case schema.TypeObject:
		return validateObject(f, val)

	case schema.TypeRef:
		return validateRef(f, val, opts)

	default:
		return nil, fmt.Errorf("%s", fieldMsg(f.Name, fmt.Sprintf("unknown field type %q", f.Type)))
	}
}

func validateNumber(f *schema.Field, val any) (any, error) {
	switch n := val.(type) {
	case float64, int, int64:
		return n, nil
	default:
		return nil, fmt.Errorf("%s", fieldMsg(f.Name, "expected number"))
	}
}

func checkEnum(f *schema.Field, s string) error {
	if len(f.Enum) == 0 {
		return nil
	}

	for _, allowed := range f.Enum {
		if s == allowed {
			return nil
		}
	}

	return fmt.Errorf("%s", fieldMsg(f.Name, fmt.Sprintf("value %q is not one of %v", s, f.Enum)))
}

func validateTemporal(f *schema.Field, val any, layout string) (any, error) {
	s, ok := val.(string)
	if !ok {
		return nil, fmt.Errorf("%s", fieldMsg(f.Name, "expected date/datetime string"))
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return nil, fmt.Errorf("%s", fieldMsg(f.Name, fmt.Sprintf("invalid temporal value %q: %v", s, err)))
	}

	return t.Format(layout), nil
}

func validateList(f *schema.Field, val any, opts Options) (any, error) {
	items, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("%s", fieldMsg(f.Name, "expected list"))
	}

	if f.Elem == nil {
		return items, nil
	}

	out := make([]any, len(items))

	for i, item := range items {
		v, err := validateField(f.Elem, item, opts)
		if err != nil {
			return nil, err
		}

		out[i] = v
	}

	return out, nil
}

func validateObject(f *schema.Field, val any) (any, error) {
	m, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s", fieldMsg(f.Name, "expected object"))
	}

	return m, nil
}

// validateRef accepts either allowed shape: a plain string id for a
// single-target ref, or {type: <collection>, id: <id>} for a polymorphic
// ref (len(f.Target) > 1). The polymorphic form's "type" narrows CheckRef's
// candidate collections to the one the document actually names.
func validateRef(f *schema.Field, val any, opts Options) (any, error) {
	if len(f.Target) > 1 {
		m, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s", fieldMsg(f.Name, "expected polymorphic ref object {type, id}"))
		}

		typ, _ := m["type"].(string)
		id, _ := m["id"].(string)

		if typ == "" || id == "" {
			return nil, fmt.Errorf("%s", fieldMsg(f.Name, "polymorphic ref requires non-empty type and id"))
		}

		if !containsString(f.Target, typ) {
			return nil, fmt.Errorf("%s", fieldMsg(f.Name, fmt.Sprintf("type %q is not one of %v", typ, f.Target)))
		}

		if opts.CheckRef != nil {
			if err := opts.CheckRef([]string{typ}, id); err != nil {
				return nil, fmt.Errorf("%s", fieldMsg(f.Name, err.Error()))
			}
		}

		return map[string]any{"type": typ, "id": id}, nil
	}

	s, ok := val.(string)
	if !ok {
		return nil, fmt.Errorf("%s", fieldMsg(f.Name, "expected ref id (string)"))
	}

	if opts.CheckRef != nil {
		if err := opts.CheckRef(f.Target, s); err != nil {
			return nil, fmt.Errorf("%s", fieldMsg(f.Name, err.Error()))
		}
	}

	return s, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}

func fieldMsg(field, msg string) string {
	return fmt.Sprintf("field %q: %s", field, msg)
}

func fieldErr(collection, msg string) error {
	return &ground.Error{Kind: ground.KindValidation, Collection: collection, Err: fmt.Errorf("%s", msg)}
}
