// Package migrate computes and applies the structural diff between two
// schema versions (spec §4.10): what changed since the schema currently
// recorded in the index, how that change is classified, and — for the
// classes that are safe to apply automatically — what to do about it.
package migrate

import (
	"fmt"
	"sort"

	"github.com/groundlabs/grounddb/internal/schema"
)

// Class is a change's safety classification.
type Class string

const (
	ClassSafe        Class = "safe"
	ClassSafeWarn    Class = "safe-warn"
	ClassUnsafe      Class = "unsafe"
	ClassUnsafeWarn  Class = "unsafe-warn"
)

// Kind names the specific change detected.
type Kind string

const (
	CollectionAdded          Kind = "collection_added"
	CollectionRemoved        Kind = "collection_removed"
	FieldAddedOptional       Kind = "field_added_optional"
	FieldAddedRequiredDefault Kind = "field_added_required_default"
	FieldAddedRequiredNoDefault Kind = "field_added_required_no_default"
	FieldRemoved             Kind = "field_removed"
	FieldTypeChanged         Kind = "field_type_changed"
	EnumValueAdded           Kind = "enum_value_added"
	EnumValueRemoved         Kind = "enum_value_removed"
	DefaultChanged           Kind = "default_changed"
	PathTemplateChanged      Kind = "path_template_changed"
)

// Change is one detected structural difference between the previous and
// current schema.
type Change struct {
	Collection string
	Field      string // empty for collection-level changes
	Kind       Kind
	Class      Class
	Detail     string

	// Default is the new field's default value, set only for
	// FieldAddedRequiredDefault — the value Engine.Run (via
	// backfillDefault) writes into every existing document of Collection.
	Default any
}

// Diff compares old against cur and returns every structural change,
// classified per spec §4.10's table. old may be nil (first-ever schema
// load: every collection appears as CollectionAdded, nothing else).
func Diff(old, cur *schema.Schema) []Change {
	var changes []Change

	oldCols := map[string]*schema.Collection{}
	if old != nil {
		oldCols = old.Collections
	}

	for name, col := range cur.Collections {
		oldCol, existed := oldCols[name]
		if !existed {
			changes = append(changes, Change{Collection: name, Kind: CollectionAdded, Class: ClassSafe,
				Detail: fmt.Sprintf("collection %q added", name)})

			continue
		}

		changes = append(changes, diffCollection(oldCol, col)...)
	}

	for name := range oldCols {
		if _, stillExists := cur.Collections[name]; !stillExists {
			changes = append(changes, Change{Collection: name, Kind: CollectionRemoved, Class: ClassSafeWarn,
				Detail: fmt.Sprintf("collection %q removed from schema.yaml; its data is left untouched on disk", name)})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Collection != changes[j].Collection {
			return changes[i].Collection < changes[j].Collection
		}

		return changes[i].Field < changes[j].Field
	})

	return changes
}

func diffCollection(old, cur *schema.Collection) []Change {
	var changes []Change

	if old.Path != cur.Path {
		changes = append(changes, Change{Collection: cur.Name, Kind: PathTemplateChanged, Class: ClassUnsafeWarn,
			Detail: fmt.Sprintf("path template changed from %q to %q; run `migrate` explicitly to re-place existing documents", old.Path, cur.Path)})
	}

	oldFields := map[string]*schema.Field{}
	for _, f := range old.Fields {
		oldFields[f.Name] = f
	}

	for _, f := range cur.Fields {
		oldField, existed := oldFields[f.Name]
		if !existed {
			changes = append(changes, fieldAddedChange(cur.Name, f))
			continue
		}

		changes = append(changes, diffField(cur.Name, oldField, f)...)

		delete(oldFields, f.Name)
	}

	// Whatever remains in oldFields was declared before and is gone now.
	var removedNames []string
	for name := range oldFields {
		removedNames = append(removedNames, name)
	}

	sort.Strings(removedNames)

	for _, name := range removedNames {
		changes = append(changes, Change{Collection: cur.Name, Field: name, Kind: FieldRemoved, Class: ClassSafeWarn,
			Detail: fmt.Sprintf("field %q removed; existing documents keep the value, validation stops requiring it", name)})
	}

	return changes
}

func fieldAddedChange(collection string, f *schema.Field) Change {
	if !f.Required {
		return Change{Collection: collection, Field: f.Name, Kind: FieldAddedOptional, Class: ClassSafe,
			Detail: fmt.Sprintf("optional field %q added", f.Name)}
	}

	if f.Default != nil {
		return Change{Collection: collection, Field: f.Name, Kind: FieldAddedRequiredDefault, Class: ClassSafe,
			Detail:  fmt.Sprintf("required field %q added with default %v; existing documents will be backfilled", f.Name, f.Default),
			Default: f.Default}
	}

	return Change{Collection: collection, Field: f.Name, Kind: FieldAddedRequiredNoDefault, Class: ClassUnsafe,
		Detail: fmt.Sprintf("required field %q added with no default; existing documents cannot satisfy it", f.Name)}
}

func diffField(collection string, old, cur *schema.Field) []Change {
	var changes []Change

	if old.Type != cur.Type {
		changes = append(changes, Change{Collection: collection, Field: cur.Name, Kind: FieldTypeChanged, Class: ClassUnsafe,
			Detail: fmt.Sprintf("field %q type changed from %s to %s", cur.Name, old.Type, cur.Type)})
	}

	added, removed := diffEnum(old.Enum, cur.Enum)
	for _, v := range added {
		changes = append(changes, Change{Collection: collection, Field: cur.Name, Kind: EnumValueAdded, Class: ClassSafe,
			Detail: fmt.Sprintf("field %q enum gained value %q", cur.Name, v)})
	}

	for _, v := range removed {
		changes = append(changes, Change{Collection: collection, Field: cur.Name, Kind: EnumValueRemoved, Class: ClassSafeWarn,
			Detail: fmt.Sprintf("field %q enum lost value %q; existing documents holding it are no longer valid", cur.Name, v)})
	}

	if !defaultsEqual(old.Default, cur.Default) {
		changes = append(changes, Change{Collection: collection, Field: cur.Name, Kind: DefaultChanged, Class: ClassSafe,
			Detail: fmt.Sprintf("field %q default changed from %v to %v; existing documents keep their stored value", cur.Name, old.Default, cur.Default)})
	}

	return changes
}

func diffEnum(old, cur []string) (added, removed []string) {
	oldSet := map[string]bool{}
	for _, v := range old {
		oldSet[v] = true
	}

	curSet := map[string]bool{}
	for _, v := range cur {
		curSet[v] = true
	}

	for _, v := range cur {
		if !oldSet[v] {
			added = append(added, v)
		}
	}

	for _, v := range old {
		if !curSet[v] {
			removed = append(removed, v)
		}
	}

	return added, removed
}

func defaultsEqual(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Unsafe reports whether changes contains any ClassUnsafe entry — the
// condition that aborts startup with MigrationRequired per spec §4.10.
func Unsafe(changes []Change) bool {
	for _, c := range changes {
		if c.Class == ClassUnsafe {
			return true
		}
	}

	return false
}
