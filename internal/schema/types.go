// Package schema parses and validates schema.yaml: the declarative
// description of collections, reusable types, and views that every other
// GroundDB component is driven by.
package schema

// FieldType is one of the scalar or composite field types a collection's
// field map may declare.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeNumber   FieldType = "number"
	TypeBoolean  FieldType = "boolean"
	TypeDate     FieldType = "date"
	TypeDatetime FieldType = "datetime"
	TypeList     FieldType = "list"
	TypeObject   FieldType = "object"
	TypeRef      FieldType = "ref"
)

// OnDelete is the policy applied to a reference when its target is deleted.
type OnDelete string

const (
	OnDeleteError    OnDelete = "error"
	OnDeleteCascade  OnDelete = "cascade"
	OnDeleteNullify  OnDelete = "nullify"
	OnDeleteArchive  OnDelete = "archive"
)

// OnConflict is the policy applied when a rendered path already exists.
type OnConflict string

const (
	OnConflictError  OnConflict = "error"
	OnConflictSuffix OnConflict = "suffix"
)

// IDAuto is the kind of ID generator a collection may declare.
type IDAuto string

const (
	IDAutoNone   IDAuto = ""
	IDAutoULID   IDAuto = "ulid"
	IDAutoUUID   IDAuto = "uuid"
	IDAutoNanoID IDAuto = "nanoid"
)

// Field describes one entry in a collection's (or reusable type's) field map.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	Enum     []string
	Default  any

	// Elem is the element type for list<T> fields.
	Elem *Field

	// Shape names a reusable type (schema.Types) for object fields.
	Shape string

	// Target names the collection(s) a ref field may point at. More than
	// one entry means the reference is polymorphic.
	Target []string

	// RefOnDelete is the cascade policy applied when Target is deleted.
	RefOnDelete OnDelete
}

// Records describes a JSONL collection's discriminated-union surface.
type Records struct {
	Base          map[string]*Field
	Discriminator string
	Variants      map[string]map[string]*Field
}

// Collection is one entry in schema.yaml's `collections` map.
type Collection struct {
	Name  string
	Path  string // path template string, e.g. "posts/{status}/{date:YYYY-MM-DD}-{title}.md"
	Shape string // on-disk shape: "md" (default), "json", "jsonl"

	// Fields is ordered for deterministic front-matter / codegen output.
	Fields []*Field

	Content              bool
	AdditionalProperties bool
	Strict               bool
	Readonly             bool

	IDAuto      IDAuto
	IDOnConflict OnConflict

	OnDelete OnDelete // default on_delete for ref fields that don't override it

	Records *Records // non-nil for JSONL discriminated-union collections
}

// FieldByName looks up a declared field by name.
func (c *Collection) FieldByName(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}

	return nil
}

// PathFields returns the set of field names referenced by the path template.
func (c *Collection) PathFields() []string {
	return extractPlaceholders(c.Path)
}

// View is one entry in schema.yaml's `views` map.
type View struct {
	Name       string
	Query      string
	Type       string // "static" (default) or "query"
	Materialize bool
	Format     string // "yaml" (default) or "json" for materialized output
	Buffer     int    // buffer multiplier override, 0 = use default
	Params     map[string]FieldType
}

// Schema is the immutable, fully-parsed contents of schema.yaml.
type Schema struct {
	Types       map[string]map[string]*Field
	Collections map[string]*Collection
	Views       map[string]*View

	raw []byte // original bytes, returned by Raw for schema_history persistence
}
