package repo

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func conversationRow(id, client, agent uuid.UUID, last string, at time.Time, unreadAgent int) []any {
	return []any{
		id, client, agent, nil, "Camry", false,
		last, at, unreadAgent, 0,
		StatusActive, nil, at.Add(-time.Hour), at,
	}
}

func TestRecordMessage(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("guards the cache and bumps the counterpart", func(t *testing.T) {
		drv := &captureDriver{}
		c := NewClient(drv)
		if err := c.Conversation.RecordMessage(ctx, id, "hello", at, SlotClient); err != nil {
			t.Fatal(err)
		}

		execs := drv.of("exec")
		if len(execs) != 2 {
			t.Fatalf("exec statements = %d, want 2", len(execs))
		}
		cache, bump := execs[0], execs[1]

		wantSQL(t, cache.query,
			`UPDATE "conversations" SET "last_message" = $1, "last_message_at" = $2, "updated_at" = $3`,
			`"id" = $4`,
			`"last_message_at" IS NULL OR "last_message_at" <= $5`,
		)
		wantArgs(t, cache.args, "hello", at, at, id, at)

		wantSQL(t, bump.query,
			`"unread_client" = COALESCE("conversations"."unread_client", 0) + $1`,
			`WHERE "id" = $2`,
		)
		wantArgs(t, bump.args, 1, id)
	})

	t.Run("missing conversation", func(t *testing.T) {
		drv := &captureDriver{affected: []int64{0, 0}}
		err := NewClient(drv).Conversation.RecordMessage(ctx, id, "hello", at, SlotAgent)
		if !IsNotFound(err) {
			t.Fatalf("error = %v, want not found", err)
		}
	})
}

func TestListForUser(t *testing.T) {
	ctx := context.Background()
	user, agent, convID := uuid.New(), uuid.New(), uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	drv := &captureDriver{results: [][][]any{
		{conversationRow(convID, user, agent, "see you", at, 2)},
		{{convID, user}, {convID, agent}},
	}}
	convs, err := NewClient(drv).Conversation.ListForUser(ctx, user, Window{Offset: 20, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}

	queries := drv.of("query")
	if len(queries) != 2 {
		t.Fatalf("queries = %d, want 2", len(queries))
	}
	wantSQL(t, queries[0].query,
		`FROM "conversations"`,
		`"client_id" = $1 OR "agent_id" = $2`,
		`"id" IN (SELECT "conversation_id" FROM "conversation_participants" WHERE "user_id" = $3)`,
		`"status" <> $4`,
		`ORDER BY last_message_at DESC NULLS LAST, created_at DESC`,
		`LIMIT 10 OFFSET 20`,
	)
	wantArgs(t, queries[0].args, user, user, user, StatusClosed)
	wantSQL(t, queries[1].query, `FROM "conversation_participants"`, `"conversation_id" IN ($1)`)

	if len(convs) != 1 {
		t.Fatalf("conversations = %d, want 1", len(convs))
	}
	got := convs[0]
	if got.LastMessage != "see you" || got.LastMessageAt == nil || !got.LastMessageAt.Equal(at) {
		t.Errorf("cache = (%q, %v)", got.LastMessage, got.LastMessageAt)
	}
	if got.UnreadCount.Agent != 2 || got.VehicleID != nil || got.NegotiationStatus != nil {
		t.Errorf("conversation = %+v", got)
	}
	if !slices.Equal(got.ParticipantIDs, []uuid.UUID{user, agent}) {
		t.Errorf("participants = %v", got.ParticipantIDs)
	}
}

func TestListForUserWithoutWindow(t *testing.T) {
	drv := &captureDriver{}
	convs, err := NewClient(drv).Conversation.ListForUser(context.Background(), uuid.New(), Window{})
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 0 {
		t.Errorf("conversations = %d, want 0", len(convs))
	}
	queries := drv.of("query")
	if len(queries) != 1 {
		t.Fatalf("queries = %d, want 1 when nothing matched", len(queries))
	}
	for _, s := range []string{"LIMIT", "OFFSET"} {
		if strings.Contains(queries[0].query, s) {
			t.Errorf("unbounded list should not carry %s: %q", s, queries[0].query)
		}
	}
}

func TestCreateConversationIsTransactional(t *testing.T) {
	drv := &captureDriver{}
	client, agent := uuid.New(), uuid.New()
	now := time.Now().UTC()
	conv := &Conversation{
		ID: uuid.New(), ParticipantIDs: []uuid.UUID{client, agent},
		ClientID: client, AgentID: agent, Status: StatusActive, CreatedAt: now, UpdatedAt: now,
	}
	if err := NewClient(drv).Conversation.Create(context.Background(), conv); err != nil {
		t.Fatal(err)
	}

	if got := drv.kinds(); !slices.Equal(got, []string{"begin", "exec", "exec", "commit"}) {
		t.Fatalf("statements = %v", got)
	}
	execs := drv.of("exec")
	wantSQL(t, execs[0].query, `INSERT INTO "conversations"`)
	wantSQL(t, execs[1].query,
		`INSERT INTO "conversation_participants" ("conversation_id", "user_id", "position") VALUES ($1, $2, $3), ($4, $5, $6)`)
	wantArgs(t, execs[1].args, conv.ID, client, 0, conv.ID, agent, 1)
}

func TestDeleteConversation(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("cascades in one transaction", func(t *testing.T) {
		drv := &captureDriver{affected: []int64{3, 2, 1}}
		removed, err := NewClient(drv).Conversation.Delete(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if removed != 3 {
			t.Errorf("removed = %d, want 3", removed)
		}
		if got := drv.kinds(); !slices.Equal(got, []string{"begin", "exec", "exec", "exec", "commit"}) {
			t.Fatalf("statements = %v", got)
		}
		execs := drv.of("exec")
		wantSQL(t, execs[0].query, `DELETE FROM "messages" WHERE "conversation_id" = $1`)
		wantSQL(t, execs[1].query, `DELETE FROM "conversation_participants" WHERE "conversation_id" = $1`)
		wantSQL(t, execs[2].query, `DELETE FROM "conversations" WHERE "id" = $1`)
	})

	t.Run("missing conversation rolls back", func(t *testing.T) {
		drv := &captureDriver{affected: []int64{0, 0, 0}}
		if _, err := NewClient(drv).Conversation.Delete(ctx, id); !IsNotFound(err) {
			t.Fatalf("error = %v, want not found", err)
		}
		if got := drv.kinds(); got[len(got)-1] != "rollback" || slices.Contains(got, "commit") {
			t.Errorf("statements = %v, want a rollback and no commit", got)
		}
	})
}
