package repo

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/internal/repo/migrate"
)

func messageRow(id, conv, sender uuid.UUID, content string, at time.Time, meta []byte) []any {
	return []any{id, conv, sender, content, MessageText, false, nil, meta, at}
}

func TestRecentExcludesAndReturnsChronological(t *testing.T) {
	ctx := context.Background()
	conv, sender, exclude := uuid.New(), uuid.New(), uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	older, newer := uuid.New(), uuid.New()

	drv := &captureDriver{results: [][][]any{{
		messageRow(newer, conv, sender, "second", base.Add(time.Minute), nil),
		messageRow(older, conv, sender, "first", base, nil),
	}}}
	msgs, err := NewClient(drv).Message.Recent(ctx, conv, 5, exclude)
	if err != nil {
		t.Fatal(err)
	}

	q := drv.of("query")[0]
	wantSQL(t, q.query,
		`FROM "messages"`,
		`"conversation_id" = $1 AND "id" <> $2`,
		`ORDER BY "created_at" DESC, "id" DESC`,
		`LIMIT 5`,
	)
	wantArgs(t, q.args, conv, exclude)

	if len(msgs) != 2 || msgs[0].ID != older || msgs[1].ID != newer {
		t.Fatalf("messages should be oldest first, got %v", msgs)
	}

	t.Run("non-positive limit skips the query", func(t *testing.T) {
		drv := &captureDriver{}
		msgs, err := NewClient(drv).Message.Recent(ctx, conv, 0, exclude)
		if err != nil || msgs != nil {
			t.Fatalf("Recent(0) = %v, %v", msgs, err)
		}
		if len(drv.log) != 0 {
			t.Errorf("statements = %v, want none", drv.kinds())
		}
	})
}

func TestLatestWithOffer(t *testing.T) {
	ctx := context.Background()
	conv, ai := uuid.New(), uuid.New()
	id := uuid.New()
	meta := []byte(`{"offer":{"price":18500,"vehicle_price":20000,"monthly":410,"duration":48},"intent_detected":"counter"}`)

	drv := &captureDriver{results: [][][]any{{
		messageRow(id, conv, ai, "How about 18,500?", time.Now().UTC(), meta),
	}}}
	m, err := NewClient(drv).Message.LatestWithOffer(ctx, conv)
	if err != nil {
		t.Fatal(err)
	}
	wantSQL(t, drv.of("query")[0].query,
		`"conversation_id" = $1`,
		`"metadata"->'offer' IS NOT NULL`,
		`LIMIT 1`,
	)
	if m.ID != id || m.Metadata == nil || m.Metadata.Offer == nil || m.Metadata.Offer.Price != 18500 {
		t.Errorf("message = %+v", m)
	}
	if m.Metadata.IntentDetected != "counter" {
		t.Errorf("intent = %q", m.Metadata.IntentDetected)
	}

	t.Run("no offer yet", func(t *testing.T) {
		drv := &captureDriver{}
		if _, err := NewClient(drv).Message.LatestWithOffer(ctx, conv); !IsNotFound(err) {
			t.Fatalf("error = %v, want not found", err)
		}
	})
}

func TestMarkReadSkipsOwnMessages(t *testing.T) {
	conv, reader := uuid.New(), uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	drv := &captureDriver{affected: []int64{4}}
	n, err := NewClient(drv).Message.MarkRead(context.Background(), conv, reader, at)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("marked = %d, want 4", n)
	}
	e := drv.of("exec")[0]
	wantSQL(t, e.query,
		`UPDATE "messages" SET "read" = $1, "read_at" = $2`,
		`"conversation_id" = $3 AND "sender_id" <> $4 AND "read" = $5`,
	)
	wantArgs(t, e.args, true, at, conv, reader, false)
}

func TestListByConversationWindow(t *testing.T) {
	drv := &captureDriver{}
	conv := uuid.New()
	if _, err := NewClient(drv).Message.ListByConversation(context.Background(), conv, Window{Offset: 50, Limit: 50}); err != nil {
		t.Fatal(err)
	}
	wantSQL(t, drv.of("query")[0].query,
		`ORDER BY "created_at", "id"`,
		`LIMIT 50 OFFSET 50`,
	)
}

func TestColumnListsMatchMigration(t *testing.T) {
	tests := []struct {
		table   string
		columns []string
	}{
		{usersTable, userColumns},
		{clientProfilesTable, clientProfileColumns},
		{vehiclesTable, vehicleColumns},
		{conversationsTable, conversationColumns},
		{messagesTable, messageColumns},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			var declared []string
			for _, tbl := range migrate.Tables {
				if tbl.Name != tt.table {
					continue
				}
				for _, c := range tbl.Columns {
					declared = append(declared, c.Name)
				}
			}
			if len(declared) == 0 {
				t.Fatalf("table %s is not migrated", tt.table)
			}
			got := append([]string(nil), tt.columns...)
			sort.Strings(got)
			sort.Strings(declared)
			if len(got) != len(declared) {
				t.Fatalf("columns = %v, migrated = %v", got, declared)
			}
			for i := range got {
				if got[i] != declared[i] {
					t.Errorf("columns = %v, migrated = %v", got, declared)
					break
				}
			}
		})
	}
}
