package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqljson"
	"github.com/google/uuid"
)

const messagesTable = "messages"

var messageColumns = []string{
	"id", "conversation_id", "sender_id", "content", "type",
	"read", "read_at", "metadata", "created_at",
}

// MessageClient persists conversation messages.
type MessageClient struct {
	drv dialect.Driver
}

func (c *MessageClient) selectAll() *entsql.Selector {
	return psql().Select(messageColumns...).From(entsql.Table(messagesTable))
}

// Create inserts m. Metadata is stored as jsonb.
func (c *MessageClient) Create(ctx context.Context, m *Message) error {
	var meta sql.NullString
	if m.Metadata != nil {
		b, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	ins := psql().Insert(messagesTable).
		Columns(messageColumns...).
		Values(m.ID, m.ConversationID, m.SenderID, m.Content, m.Type, m.Read, m.ReadAt, meta, m.CreatedAt)
	if _, err := exec(ctx, c.drv, ins); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (c *MessageClient) Get(ctx context.Context, id uuid.UUID) (*Message, error) {
	msgs, err := c.list(ctx, c.selectAll().Where(entsql.EQ("id", id)).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if len(msgs) == 0 {
		return nil, &NotFoundError{label: "message"}
	}
	return msgs[0], nil
}

// ListByConversation returns the messages of the conversation within w,
// oldest first.
func (c *MessageClient) ListByConversation(ctx context.Context, conversationID uuid.UUID, w Window) ([]*Message, error) {
	sel := c.selectAll().
		Where(entsql.EQ("conversation_id", conversationID)).
		OrderBy("created_at", "id")
	msgs, err := c.list(ctx, w.apply(sel))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Recent returns up to limit of the newest messages other than exclude, in
// chronological order.
func (c *MessageClient) Recent(ctx context.Context, conversationID uuid.UUID, limit int, exclude uuid.UUID) ([]*Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	sel := c.selectAll().
		Where(entsql.And(
			entsql.EQ("conversation_id", conversationID),
			entsql.NEQ("id", exclude),
		)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(limit)

	msgs, err := c.list(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// LatestWithOffer returns the newest message whose metadata carries an offer.
func (c *MessageClient) LatestWithOffer(ctx context.Context, conversationID uuid.UUID) (*Message, error) {
	sel := c.selectAll().
		Where(entsql.And(
			entsql.EQ("conversation_id", conversationID),
			sqljson.HasKey("metadata", sqljson.Path("offer")),
		)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(1)

	msgs, err := c.list(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("latest offer: %w", err)
	}
	for _, m := range msgs {
		if m.Metadata != nil && m.Metadata.Offer != nil {
			return m, nil
		}
	}
	return nil, &NotFoundError{label: "offer"}
}

// MarkRead flags every unread message not sent by readerID as read and
// returns how many changed.
func (c *MessageClient) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int, error) {
	upd := psql().Update(messagesTable).
		Set("read", true).
		Set("read_at", at).
		Where(entsql.And(
			entsql.EQ("conversation_id", conversationID),
			entsql.NEQ("sender_id", readerID),
			entsql.EQ("read", false),
		))
	n, err := exec(ctx, c.drv, upd)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return n, nil
}

func (c *MessageClient) list(ctx context.Context, sel *entsql.Selector) ([]*Message, error) {
	var msgs []*Message
	err := query(ctx, c.drv, sel, func(rows *entsql.Rows) error {
		m, err := scanMessage(rows)
		if err != nil {
			return err
		}
		msgs = append(msgs, m)
		return nil
	})
	return msgs, err
}

func scanMessage(rows *entsql.Rows) (*Message, error) {
	var (
		m      Message
		readAt sql.NullTime
		meta   []byte
	)
	if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Type, &m.Read, &readAt, &meta, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	if readAt.Valid {
		t := readAt.Time
		m.ReadAt = &t
	}
	if len(meta) > 0 {
		var md MessageMetadata
		if err := json.Unmarshal(meta, &md); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		m.Metadata = &md
	}
	return &m, nil
}
