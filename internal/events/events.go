// Package events publishes conversation domain events on NATS for the
// background workers.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/autodealer/dealer_backend/internal/repo"
)

const (
	// SubjectMessageNew carries the message id; the last token is the conversation id.
	SubjectMessageNew = "dealer.message.new"
	// SubjectNegotiationClosed carries the negotiation outcome.
	SubjectNegotiationClosed = "dealer.negotiation.closed"
)

// Publisher implements conversation.Events. A nil connection turns every call into a no-op.
type Publisher struct {
	nc *nats.Conn
}

func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

func (p *Publisher) MessageCreated(ctx context.Context, conv *repo.Conversation, msg *repo.Message) {
	p.publish(ctx, Subject(SubjectMessageNew, conv.ID), []byte(msg.ID.String()))
}

func (p *Publisher) NegotiationClosed(ctx context.Context, conv *repo.Conversation) {
	outcome := ""
	if conv.NegotiationStatus != nil {
		outcome = *conv.NegotiationStatus
	}
	p.publish(ctx, Subject(SubjectNegotiationClosed, conv.ID), []byte(outcome))
}

func (p *Publisher) publish(ctx context.Context, subject string, data []byte) {
	if p == nil || p.nc == nil {
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		slog.WarnContext(ctx, "failed to publish domain event", "subject", subject, "error", err)
	}
}

// Subject builds "<prefix>.<conversation id>".
func Subject(prefix string, convID uuid.UUID) string {
	return prefix + "." + convID.String()
}

// Wildcard is the subscription pattern for a prefix.
func Wildcard(prefix string) string {
	return prefix + ".*"
}

// ParseConversationID extracts the conversation id from a subject built by Subject.
func ParseConversationID(prefix, subject string) (uuid.UUID, error) {
	rest, ok := strings.CutPrefix(subject, prefix+".")
	if !ok || rest == "" || strings.Contains(rest, ".") {
		return uuid.Nil, fmt.Errorf("unexpected subject %q", subject)
	}
	return uuid.Parse(rest)
}
