package migrate

import (
	"slices"
	"strings"
	"testing"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/dialect/sql/schema"
	entgoschema "entgo.io/ent/schema"
	"entgo.io/ent/schema/field"

	entschema "github.com/autodealer/dealer_backend/internal/schema"
)

func tableByName(t *testing.T, name string) *schema.Table {
	t.Helper()
	for _, tbl := range Tables {
		if tbl.Name == name {
			return tbl
		}
	}
	t.Fatalf("table %q not declared", name)
	return nil
}

func columnNames(cols []*schema.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func TestTablesFollowSchemas(t *testing.T) {
	tests := []struct {
		table   string
		columns []string
		key     []string
	}{
		{"users", []string{"id", "name", "email", "role", "agency_id"}, []string{"id"}},
		{"agencies", []string{"id", "name", "manager_id"}, []string{"id"}},
		{"client_profiles", []string{"id", "created_at", "user_id", "agency_id", "name", "email", "status"}, []string{"id"}},
		{"vehicles", []string{"id", "agency_id", "make", "model", "year", "price", "mileage", "condition", "features"}, []string{"id"}},
		{"conversations", []string{
			"id", "created_at", "updated_at", "client_id", "agent_id", "vehicle_id", "subject", "is_ai_negotiation",
			"last_message", "last_message_at", "unread_agent", "unread_client", "status", "negotiation_status",
		}, []string{"id"}},
		{"conversation_participants", []string{"conversation_id", "user_id", "position"}, []string{"conversation_id", "user_id"}},
		{"messages", []string{"id", "created_at", "conversation_id", "sender_id", "content", "type", "read", "read_at", "metadata"}, []string{"id"}},
	}
	if len(Tables) != len(tests) {
		t.Fatalf("tables = %d, want %d", len(Tables), len(tests))
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			tbl := tableByName(t, tt.table)
			if got := columnNames(tbl.Columns); !slices.Equal(got, tt.columns) {
				t.Errorf("columns = %v, want %v", got, tt.columns)
			}
			if got := columnNames(tbl.PrimaryKey); !slices.Equal(got, tt.key) {
				t.Errorf("primary key = %v, want %v", got, tt.key)
			}
		})
	}
}

func TestColumnAttributes(t *testing.T) {
	conv := tableByName(t, "conversations")
	msgs := tableByName(t, "messages")
	users := tableByName(t, "users")

	col := func(tbl *schema.Table, name string) *schema.Column {
		c, ok := tbl.Column(name)
		if !ok {
			t.Fatalf("%s.%s missing", tbl.Name, name)
		}
		return c
	}

	tests := []struct {
		name     string
		col      *schema.Column
		typ      field.Type
		nullable bool
		def      any
	}{
		{"optional vehicle", col(conv, "vehicle_id"), field.TypeUUID, true, nil},
		{"subject defaults empty", col(conv, "subject"), field.TypeString, false, ""},
		{"status enum default", col(conv, "status"), field.TypeEnum, false, "active"},
		{"unread counter", col(conv, "unread_agent"), field.TypeInt, false, 0},
		{"timestamp default stays in code", col(conv, "created_at"), field.TypeTime, false, nil},
		{"id default stays in code", col(conv, "id"), field.TypeUUID, false, nil},
		{"metadata json", col(msgs, "metadata"), field.TypeJSON, true, nil},
		{"read flag", col(msgs, "read"), field.TypeBool, false, false},
		{"role default", col(users, "role"), field.TypeEnum, false, "client"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.col.Type != tt.typ {
				t.Errorf("type = %v, want %v", tt.col.Type, tt.typ)
			}
			if tt.col.Nullable != tt.nullable {
				t.Errorf("nullable = %v, want %v", tt.col.Nullable, tt.nullable)
			}
			if tt.col.Default != tt.def {
				t.Errorf("default = %#v, want %#v", tt.col.Default, tt.def)
			}
		})
	}

	if c := col(conv, "last_message"); c.Size < 1<<20 {
		t.Errorf("last_message size = %d, want text", c.Size)
	}
	if c := col(users, "email"); !c.Unique {
		t.Error("users.email should be unique")
	}
	if got := col(msgs, "type").Enums; !slices.Equal(got, []string{"text", "system", "offer", "document"}) {
		t.Errorf("message type enums = %v", got)
	}
}

func TestIndexNames(t *testing.T) {
	want := map[string][]string{
		"users":                     {"user_agency_id_role"},
		"client_profiles":           {"clientprofile_user_id_agency_id"},
		"conversations":             {"conversation_client_id_agent_id_vehicle_id", "conversation_agent_id", "conversation_last_message_at"},
		"conversation_participants": {"participant_user_id"},
		"messages":                  {"message_conversation_id_created_at", "message_sender_id"},
	}
	for table, names := range want {
		tbl := tableByName(t, table)
		var got []string
		for _, idx := range tbl.Indexes {
			got = append(got, idx.Name)
			if len(idx.Columns) == 0 {
				t.Errorf("%s: index %s has no columns", table, idx.Name)
			}
		}
		if !slices.Equal(got, names) {
			t.Errorf("%s indexes = %v, want %v", table, got, names)
		}
	}
}

func TestCascadingForeignKeys(t *testing.T) {
	conv := tableByName(t, "conversations")
	for _, name := range []string{"conversation_participants", "messages"} {
		tbl := tableByName(t, name)
		if len(tbl.ForeignKeys) != 1 {
			t.Fatalf("%s foreign keys = %d, want 1", name, len(tbl.ForeignKeys))
		}
		fk := tbl.ForeignKeys[0]
		if fk.RefTable != conv || fk.OnDelete != schema.Cascade {
			t.Errorf("%s: fk = %s on delete %s", name, fk.RefTable.Name, fk.OnDelete)
		}
		if got := columnNames(fk.Columns); !slices.Equal(got, []string{"conversation_id"}) {
			t.Errorf("%s: fk columns = %v", name, got)
		}
	}
}

type unnamed struct{ ent.Schema }

type badKey struct{ ent.Schema }

func (badKey) Fields() []ent.Field { return []ent.Field{field.String("name")} }

func (badKey) Annotations() []entgoschema.Annotation {
	return []entgoschema.Annotation{entsql.Annotation{Table: "bad"}}
}

func TestBuildTablesErrors(t *testing.T) {
	tests := []struct {
		name     string
		schemas  []ent.Interface
		cascades []Cascade
		want     string
	}{
		{"missing table annotation", []ent.Interface{unnamed{}}, nil, "missing table annotation"},
		{"unknown cascade table", []ent.Interface{entschema.Message{}}, []Cascade{{Table: "messages", Column: "conversation_id", Ref: "conversations"}}, "unknown table"},
		{"unknown cascade column", []ent.Interface{entschema.Conversation{}, entschema.Message{}}, []Cascade{{Table: "messages", Column: "thread_id", Ref: "conversations"}}, "no column"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTables(tt.schemas, tt.cascades)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}

	if _, err := buildTable(badKey{}); err == nil || !strings.Contains(err.Error(), "key") {
		t.Errorf("schema without an id field: error = %v", err)
	}
}
