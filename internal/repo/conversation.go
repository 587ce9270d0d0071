package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

const (
	conversationsTable = "conversations"
	participantsTable  = "conversation_participants"
)

var conversationColumns = []string{
	"id", "client_id", "agent_id", "vehicle_id", "subject", "is_ai_negotiation",
	"last_message", "last_message_at", "unread_agent", "unread_client",
	"status", "negotiation_status", "created_at", "updated_at",
}

// ConversationClient persists conversations and their participant lists.
type ConversationClient struct {
	drv dialect.Driver
}

func (c *ConversationClient) selectAll() *entsql.Selector {
	return psql().Select(conversationColumns...).From(entsql.Table(conversationsTable))
}

// Get returns the conversation with its participant ids.
func (c *ConversationClient) Get(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	convs, err := c.list(ctx, c.selectAll().Where(entsql.EQ("id", id)).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if len(convs) == 0 {
		return nil, &NotFoundError{label: "conversation"}
	}
	return convs[0], nil
}

// FindOpen returns the non-closed conversation for (client, agent, vehicle).
// A nil vehicle matches only conversations without a vehicle.
func (c *ConversationClient) FindOpen(ctx context.Context, clientID, agentID uuid.UUID, vehicleID *uuid.UUID) (*Conversation, error) {
	preds := []*entsql.Predicate{
		entsql.EQ("client_id", clientID),
		entsql.EQ("agent_id", agentID),
		entsql.NEQ("status", StatusClosed),
	}
	if vehicleID != nil {
		preds = append(preds, entsql.EQ("vehicle_id", *vehicleID))
	} else {
		preds = append(preds, entsql.IsNull("vehicle_id"))
	}

	convs, err := c.list(ctx, c.selectAll().Where(entsql.And(preds...)).OrderBy("created_at").Limit(1))
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if len(convs) == 0 {
		return nil, &NotFoundError{label: "conversation"}
	}
	return convs[0], nil
}

// ListForUser returns the non-closed conversations userID belongs to,
// most recently active first, bounded by w.
func (c *ConversationClient) ListForUser(ctx context.Context, userID uuid.UUID, w Window) ([]*Conversation, error) {
	member := psql().Select("conversation_id").
		From(entsql.Table(participantsTable)).
		Where(entsql.EQ("user_id", userID))

	sel := c.selectAll().
		Where(entsql.And(
			entsql.Or(
				entsql.EQ("client_id", userID),
				entsql.EQ("agent_id", userID),
				entsql.In("id", member),
			),
			entsql.NEQ("status", StatusClosed),
		)).
		OrderExpr(entsql.Expr("last_message_at DESC NULLS LAST, created_at DESC"))

	convs, err := c.list(ctx, w.apply(sel))
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// Create inserts the conversation and its participants in one transaction.
func (c *ConversationClient) Create(ctx context.Context, conv *Conversation) error {
	return withTx(ctx, c.drv, func(tx dialect.Tx) error {
		ins := psql().Insert(conversationsTable).
			Columns(conversationColumns...).
			Values(
				conv.ID, conv.ClientID, conv.AgentID, nullUUID(conv.VehicleID), conv.Subject, conv.IsAINegotiation,
				conv.LastMessage, conv.LastMessageAt, conv.UnreadCount.Agent, conv.UnreadCount.Client,
				conv.Status, conv.NegotiationStatus, conv.CreatedAt, conv.UpdatedAt,
			)
		if _, err := exec(ctx, tx, ins); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}

		if len(conv.ParticipantIDs) == 0 {
			return nil
		}
		pins := psql().Insert(participantsTable).Columns("conversation_id", "user_id", "position")
		for i, uid := range conv.ParticipantIDs {
			pins.Values(conv.ID, uid, i)
		}
		if _, err := exec(ctx, tx, pins); err != nil {
			return fmt.Errorf("insert participants: %w", err)
		}
		return nil
	})
}

// RecordMessage moves the last-message cache forward to (content, at) unless a
// newer message is already cached, and atomically increments the unread
// counter of slot.
func (c *ConversationClient) RecordMessage(ctx context.Context, id uuid.UUID, content string, at time.Time, slot Slot) error {
	cache := psql().Update(conversationsTable).
		Set("last_message", content).
		Set("last_message_at", at).
		Set("updated_at", at).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.Or(entsql.IsNull("last_message_at"), entsql.LTE("last_message_at", at)),
		))
	if _, err := exec(ctx, c.drv, cache); err != nil {
		return fmt.Errorf("update last message: %w", err)
	}

	bump := psql().Update(conversationsTable).
		Add(slot.column(), 1).
		Where(entsql.EQ("id", id))
	n, err := exec(ctx, c.drv, bump)
	if err != nil {
		return fmt.Errorf("increment unread: %w", err)
	}
	if n == 0 {
		return &NotFoundError{label: "conversation"}
	}
	return nil
}

// ResetUnread zeroes the unread counter of slot.
func (c *ConversationClient) ResetUnread(ctx context.Context, id uuid.UUID, slot Slot) error {
	upd := psql().Update(conversationsTable).
		Set(slot.column(), 0).
		Where(entsql.EQ("id", id))
	n, err := exec(ctx, c.drv, upd)
	if err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	if n == 0 {
		return &NotFoundError{label: "conversation"}
	}
	return nil
}

// SetStatus updates status and negotiation_status; a nil negotiation clears it.
func (c *ConversationClient) SetStatus(ctx context.Context, id uuid.UUID, status string, negotiation *string) error {
	upd := psql().Update(conversationsTable).
		Set("status", status).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id))
	if negotiation != nil {
		upd.Set("negotiation_status", *negotiation)
	} else {
		upd.SetNull("negotiation_status")
	}

	n, err := exec(ctx, c.drv, upd)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n == 0 {
		return &NotFoundError{label: "conversation"}
	}
	return nil
}

// Delete removes the conversation, its participants and its messages, and
// returns the number of messages removed.
func (c *ConversationClient) Delete(ctx context.Context, id uuid.UUID) (int, error) {
	var removed int
	err := withTx(ctx, c.drv, func(tx dialect.Tx) error {
		n, err := exec(ctx, tx, psql().Delete(messagesTable).Where(entsql.EQ("conversation_id", id)))
		if err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		removed = n

		if _, err := exec(ctx, tx, psql().Delete(participantsTable).Where(entsql.EQ("conversation_id", id))); err != nil {
			return fmt.Errorf("delete participants: %w", err)
		}

		n, err = exec(ctx, tx, psql().Delete(conversationsTable).Where(entsql.EQ("id", id)))
		if err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		if n == 0 {
			return &NotFoundError{label: "conversation"}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (c *ConversationClient) list(ctx context.Context, sel *entsql.Selector) ([]*Conversation, error) {
	var convs []*Conversation
	err := query(ctx, c.drv, sel, func(rows *entsql.Rows) error {
		conv, err := scanConversation(rows)
		if err != nil {
			return err
		}
		convs = append(convs, conv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := c.loadParticipants(ctx, convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (c *ConversationClient) loadParticipants(ctx context.Context, convs []*Conversation) error {
	if len(convs) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Conversation, len(convs))
	ids := make([]any, 0, len(convs))
	for _, conv := range convs {
		byID[conv.ID] = conv
		ids = append(ids, conv.ID)
	}

	sel := psql().Select("conversation_id", "user_id").
		From(entsql.Table(participantsTable)).
		Where(entsql.In("conversation_id", ids...)).
		OrderBy("conversation_id", "position")

	return query(ctx, c.drv, sel, func(rows *entsql.Rows) error {
		var convID, userID uuid.UUID
		if err := rows.Scan(&convID, &userID); err != nil {
			return err
		}
		if conv, ok := byID[convID]; ok {
			conv.ParticipantIDs = append(conv.ParticipantIDs, userID)
		}
		return nil
	})
}

func scanConversation(rows *entsql.Rows) (*Conversation, error) {
	var (
		conv        Conversation
		vehicle     uuid.NullUUID
		last        sql.NullString
		lastAt      sql.NullTime
		negotiation sql.NullString
	)
	err := rows.Scan(
		&conv.ID, &conv.ClientID, &conv.AgentID, &vehicle, &conv.Subject, &conv.IsAINegotiation,
		&last, &lastAt, &conv.UnreadCount.Agent, &conv.UnreadCount.Client,
		&conv.Status, &negotiation, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	if vehicle.Valid {
		v := vehicle.UUID
		conv.VehicleID = &v
	}
	conv.LastMessage = last.String
	if lastAt.Valid {
		t := lastAt.Time
		conv.LastMessageAt = &t
	}
	if negotiation.Valid {
		s := negotiation.String
		conv.NegotiationStatus = &s
	}
	return &conv, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
