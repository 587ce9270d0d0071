// Package migrate turns the ent schemas of package schema into Postgres tables
// and applies them with ent's schema migrator.
package migrate

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	entschema "github.com/autodealer/dealer_backend/internal/schema"
)

// Schemas are migrated in this order.
var Schemas = []ent.Interface{
	entschema.User{},
	entschema.Agency{},
	entschema.ClientProfile{},
	entschema.Vehicle{},
	entschema.Conversation{},
	entschema.Participant{},
	entschema.Message{},
}

// Cascade is a foreign key whose rows go away with the referenced row.
type Cascade struct {
	Table  string
	Column string
	Ref    string
}

var Cascades = []Cascade{
	{Table: "conversation_participants", Column: "conversation_id", Ref: "conversations"},
	{Table: "messages", Column: "conversation_id", Ref: "conversations"},
}

// Tables is the migrated form of Schemas.
var Tables = mustTables(Schemas, Cascades)

func mustTables(schemas []ent.Interface, cascades []Cascade) []*schema.Table {
	tables, err := BuildTables(schemas, cascades)
	if err != nil {
		panic(err)
	}
	return tables
}

// BuildTables converts ent schemas into migration tables. Mixin fields come
// first, as in generated code.
func BuildTables(schemas []ent.Interface, cascades []Cascade) ([]*schema.Table, error) {
	byName := make(map[string]*schema.Table, len(schemas))
	tables := make([]*schema.Table, 0, len(schemas))
	for _, s := range schemas {
		t, err := buildTable(s)
		if err != nil {
			return nil, err
		}
		byName[t.Name] = t
		tables = append(tables, t)
	}

	for _, c := range cascades {
		t, ok := byName[c.Table]
		if !ok {
			return nil, fmt.Errorf("cascade: unknown table %q", c.Table)
		}
		ref, ok := byName[c.Ref]
		if !ok {
			return nil, fmt.Errorf("cascade: unknown table %q", c.Ref)
		}
		col, ok := t.Column(c.Column)
		if !ok {
			return nil, fmt.Errorf("cascade: %s has no column %q", c.Table, c.Column)
		}
		if len(ref.PrimaryKey) != 1 {
			return nil, fmt.Errorf("cascade: %s needs a single-column key", c.Ref)
		}
		t.AddForeignKey(&schema.ForeignKey{
			Symbol:     c.Table + "_" + c.Column + "_fkey",
			Columns:    []*schema.Column{col},
			RefTable:   ref,
			RefColumns: ref.PrimaryKey,
			OnDelete:   schema.Cascade,
		})
	}
	return tables, nil
}

func buildTable(s ent.Interface) (*schema.Table, error) {
	typeName := reflect.TypeOf(s).Name()

	var (
		name string
		key  = []string{"id"}
	)
	for _, a := range s.Annotations() {
		switch a := a.(type) {
		case entsql.Annotation:
			name = a.Table
		case *entsql.Annotation:
			name = a.Table
		case *field.Annotation:
			if len(a.ID) > 0 {
				key = a.ID
			}
		}
	}
	if name == "" {
		return nil, fmt.Errorf("schema %s: missing table annotation", typeName)
	}

	var fields []ent.Field
	var indexes []ent.Index
	for _, m := range s.Mixin() {
		fields = append(fields, m.Fields()...)
		indexes = append(indexes, m.Indexes()...)
	}
	fields = append(fields, s.Fields()...)
	indexes = append(indexes, s.Indexes()...)

	t := schema.NewTable(name)
	for _, f := range fields {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("schema %s: field %s: %w", typeName, d.Name, d.Err)
		}
		c := column(d)
		if slices.Contains(key, c.Name) {
			t.AddPrimary(c)
		} else {
			t.AddColumn(c)
		}
	}
	if len(t.PrimaryKey) != len(key) {
		return nil, fmt.Errorf("schema %s: key %v not among fields", typeName, key)
	}

	prefix := strings.ToLower(typeName)
	for _, idx := range indexes {
		d := idx.Descriptor()
		for _, col := range d.Fields {
			if !t.HasColumn(col) {
				return nil, fmt.Errorf("schema %s: index on unknown field %q", typeName, col)
			}
		}
		idxName := d.StorageKey
		if idxName == "" {
			idxName = prefix + "_" + strings.Join(d.Fields, "_")
		}
		t.AddIndex(idxName, d.Unique, d.Fields)
	}
	return t, nil
}

func column(d *field.Descriptor) *schema.Column {
	c := &schema.Column{
		Name:     d.Name,
		Type:     d.Info.Type,
		Size:     int64(d.Size),
		Unique:   d.Unique,
		Nullable: d.Optional,
	}
	if d.StorageKey != "" {
		c.Name = d.StorageKey
	}
	// Function defaults are applied by the writer, not the database.
	if d.Default != nil && reflect.TypeOf(d.Default).Kind() != reflect.Func {
		c.Default = d.Default
	}
	for _, e := range d.Enums {
		c.Enums = append(c.Enums, e.V)
	}
	return c
}

// Create applies Tables. With drop set, columns and indexes absent from the
// declarations are removed.
func Create(ctx context.Context, drv dialect.Driver, drop bool) error {
	m, err := schema.NewMigrate(drv,
		schema.WithDropColumn(drop),
		schema.WithDropIndex(drop),
		schema.WithForeignKeys(true),
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
