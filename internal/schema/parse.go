package schema

import (
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/groundlabs/grounddb/internal/ground"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// rawSchema mirrors schema.yaml's top-level shape for yaml.v3 decoding.
type rawSchema struct {
	Types       map[string]yaml.Node `yaml:"types"`
	Collections map[string]rawCollection `yaml:"collections"`
	Views       map[string]rawView `yaml:"views"`
}

type rawField struct {
	Type     string       `yaml:"type"`
	Required bool         `yaml:"required"`
	Enum     []string     `yaml:"enum"`
	Default  any          `yaml:"default"`
	Items    *rawField    `yaml:"items"`
	Shape    string       `yaml:"shape"`
	Target   yaml.Node    `yaml:"target"`
	OnDelete string       `yaml:"on_delete"`
}

type rawRecords struct {
	Base          map[string]rawField            `yaml:"base"`
	Discriminator string                          `yaml:"discriminator"`
	Variants      map[string]map[string]rawField  `yaml:"variants"`
}

type rawCollection struct {
	Path                 string              `yaml:"path"`
	Shape                string              `yaml:"shape"`
	Fields               map[string]rawField `yaml:"fields"`
	FieldOrder           []string            `yaml:"field_order"`
	Content              bool                `yaml:"content"`
	AdditionalProperties *bool               `yaml:"additional_properties"`
	Strict               *bool               `yaml:"strict"`
	Readonly             bool                `yaml:"readonly"`
	ID                   struct {
		Auto       string `yaml:"auto"`
		OnConflict string `yaml:"on_conflict"`
	} `yaml:"id"`
	OnDelete string      `yaml:"on_delete"`
	Records  *rawRecords `yaml:"records"`
}

type rawView struct {
	Query       string              `yaml:"query"`
	Type        string              `yaml:"type"`
	Materialize bool                `yaml:"materialize"`
	Format      string              `yaml:"format"`
	Buffer      int                 `yaml:"buffer"`
	Params      map[string]rawField `yaml:"params"`
}

// Parse decodes schema.yaml bytes into a Schema, validating structure and
// cross-references. Unknown ref targets, path placeholders naming an
// undeclared field (other than the implicit id), and malformed identifiers
// fail with ground.KindSchema. Path format specs are not checked here;
// internal/pathtmpl rejects an unknown one when rendering or extracting.
func Parse(data []byte) (*Schema, error) {
	var raw rawSchema

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("parsing schema.yaml: %w", err)}
	}

	s := &Schema{
		Types:       map[string]map[string]*Field{},
		Collections: map[string]*Collection{},
		Views:       map[string]*View{},
		raw:         append([]byte(nil), data...),
	}

	for name, node := range raw.Types {
		var fields map[string]rawField
		if err := node.Decode(&fields); err != nil {
			return nil, &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("type %q: %w", name, err)}
		}

		shape, err := buildFieldMap(s, fields, nil)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", name, err)
		}

		s.Types[name] = shape
	}

	for name, rc := range raw.Collections {
		if !identifierRe.MatchString(name) {
			return nil, &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("collection name %q is not a valid identifier", name)}
		}

		col, err := buildCollection(s, name, rc)
		if err != nil {
			return nil, err
		}

		s.Collections[name] = col
	}

	for name, rv := range raw.Views {
		view, err := buildView(name, rv)
		if err != nil {
			return nil, err
		}

		s.Views[name] = view
	}

	if err := crossValidate(s); err != nil {
		return nil, err
	}

	return s, nil
}

func buildFieldMap(s *Schema, fields map[string]rawField, order []string) (map[string]*Field, error) {
	out := map[string]*Field{}

	for name, rf := range fields {
		f, err := buildField(s, name, rf)
		if err != nil {
			return nil, err
		}

		out[name] = f
	}

	return out, nil
}

func buildField(s *Schema, name string, rf rawField) (*Field, error) {
	if !identifierRe.MatchString(name) {
		return nil, &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("field name %q is not a valid identifier", name)}
	}

	f := &Field{
		Name:     name,
		Type:     FieldType(rf.Type),
		Required: rf.Required,
		Enum:     rf.Enum,
		Default:  rf.Default,
		Shape:    rf.Shape,
	}

	switch f.Type {
	case TypeString, TypeNumber, TypeBoolean, TypeDate, TypeDatetime, TypeObject:
		// fine as-is
	case TypeList:
		if rf.Items == nil {
			return nil, &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("field %q: list requires items", name)}
		}

		elem, err := buildField(s, name+"[]", *rf.Items)
		if err != nil {
			return nil, err
		}

		f.Elem = elem
	case TypeRef:
		targets, err := decodeTargets(rf.Target)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}

		f.Target = targets

		f.RefOnDelete = OnDelete(rf.OnDelete)
		if f.RefOnDelete == "" {
			f.RefOnDelete = OnDeleteError
		}
	default:
		return nil, &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("field %q: unknown type %q", name, rf.Type)}
	}

	return f, nil
}

func decodeTargets(node yaml.Node) ([]string, error) {
	if node.Kind == 0 {
		return nil, fmt.Errorf("ref field requires target")
	}

	var single string
	if err := node.Decode(&single); err == nil && single != "" {
		return []string{single}, nil
	}

	var many []string
	if err := node.Decode(&many); err != nil {
		return nil, fmt.Errorf("invalid target: %w", err)
	}

	return many, nil
}

func buildCollection(s *Schema, name string, rc rawCollection) (*Collection, error) {
	col := &Collection{
		Name:                 name,
		Path:                 rc.Path,
		Shape:                rc.Shape,
		Content:              rc.Content,
		AdditionalProperties: true,
		Strict:               true,
		Readonly:             rc.Readonly,
		IDAuto:               IDAuto(rc.ID.Auto),
		IDOnConflict:         OnConflict(rc.ID.OnConflict),
		OnDelete:             OnDelete(rc.OnDelete),
	}

	if col.Shape == "" {
		col.Shape = "md"
	}

	if rc.AdditionalProperties != nil {
		col.AdditionalProperties = *rc.AdditionalProperties
	}

	if rc.Strict != nil {
		col.Strict = *rc.Strict
	}

	if col.IDOnConflict == "" {
		col.IDOnConflict = OnConflictError
	}

	if col.OnDelete == "" {
		col.OnDelete = OnDeleteError
	}

	if col.Path == "" && col.Shape == "md" {
		return nil, &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("collection %q requires path", name)}
	}

	names := rc.FieldOrder
	if len(names) == 0 {
		for fname := range rc.Fields {
			names = append(names, fname)
		}

		sort.Strings(names)
	}

	for _, fname := range names {
		rf, ok := rc.Fields[fname]
		if !ok {
			return nil, fmt.Errorf("collection %q: field_order references undeclared field %q", name, fname)
		}

		f, err := buildField(s, fname, rf)
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", name, err)
		}

		col.Fields = append(col.Fields, f)
	}

	if rc.Records != nil {
		recs := &Records{
			Discriminator: rc.Records.Discriminator,
			Variants:      map[string]map[string]*Field{},
		}

		base, err := buildFieldMap(s, rc.Records.Base, nil)
		if err != nil {
			return nil, fmt.Errorf("collection %q records.base: %w", name, err)
		}

		recs.Base = base

		for variant, fields := range rc.Records.Variants {
			fm, err := buildFieldMap(s, fields, nil)
			if err != nil {
				return nil, fmt.Errorf("collection %q records.variants[%s]: %w", name, variant, err)
			}

			recs.Variants[variant] = fm
		}

		col.Records = recs
	}

	return col, nil
}

func buildView(name string, rv rawView) (*View, error) {
	if rv.Query == "" {
		return nil, &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("view %q requires query", name)}
	}

	v := &View{
		Name:        name,
		Query:       rv.Query,
		Type:        rv.Type,
		Materialize: rv.Materialize,
		Format:      rv.Format,
		Buffer:      rv.Buffer,
	}

	if v.Type == "" {
		v.Type = "static"
	}

	if v.Format == "" {
		v.Format = "yaml"
	}

	if len(rv.Params) > 0 {
		v.Params = map[string]FieldType{}

		for pname, pf := range rv.Params {
			v.Params[pname] = FieldType(pf.Type)
		}
	}

	if v.Type == "query" && v.Params == nil {
		return nil, &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("view %q: type=query requires params", name)}
	}

	return v, nil
}

// crossValidate checks references between collections, types, and views
// that can only be resolved once the whole schema is loaded.
func crossValidate(s *Schema) error {
	for cname, col := range s.Collections {
		for _, f := range col.Fields {
			if err := validateFieldRefs(s, f); err != nil {
				return fmt.Errorf("collection %q: %w", cname, err)
			}
		}

		for _, pf := range col.PathFields() {
			if pf == "id" {
				continue // implicit on every collection, never declared
			}

			if col.FieldByName(pf) == nil {
				return &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("collection %q: path template references undeclared field %q", cname, pf)}
			}
		}
	}

	// View SQL table-ref and param validation happens in internal/viewsql,
	// which needs the fully-built Schema to resolve collection field lists.

	return nil
}

func validateFieldRefs(s *Schema, f *Field) error {
	switch f.Type {
	case TypeObject:
		if f.Shape != "" {
			if _, ok := s.Types[f.Shape]; !ok {
				return &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("field %q: unknown type shape %q", f.Name, f.Shape)}
			}
		}
	case TypeList:
		if f.Elem != nil {
			return validateFieldRefs(s, f.Elem)
		}
	case TypeRef:
		for _, target := range f.Target {
			if _, ok := s.Collections[target]; !ok {
				return &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("field %q: ref target %q is not a declared collection", f.Name, target)}
			}
		}
	}

	return nil
}
