package events

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/internal/repo"
)

func TestSubjectRoundTrip(t *testing.T) {
	id := uuid.New()
	subject := Subject(SubjectMessageNew, id)
	if subject != "dealer.message.new."+id.String() {
		t.Fatalf("subject = %q", subject)
	}
	got, err := ParseConversationID(SubjectMessageNew, subject)
	if err != nil || got != id {
		t.Fatalf("ParseConversationID = %v, %v", got, err)
	}
}

func TestParseConversationIDRejects(t *testing.T) {
	tests := []string{
		"dealer.message.new.",
		"dealer.message.new.not-a-uuid",
		"dealer.negotiation.closed." + uuid.NewString(),
		"dealer.message.new.a.b",
	}
	for _, subject := range tests {
		t.Run(subject, func(t *testing.T) {
			if _, err := ParseConversationID(SubjectMessageNew, subject); err == nil {
				t.Errorf("expected error for %q", subject)
			}
		})
	}
}

func TestWildcard(t *testing.T) {
	if got := Wildcard(SubjectNegotiationClosed); got != "dealer.negotiation.closed.*" {
		t.Errorf("Wildcard = %q", got)
	}
}

func TestNilPublisherIsNoop(t *testing.T) {
	conv := &repo.Conversation{ID: uuid.New()}
	msg := &repo.Message{ID: uuid.New()}

	var p *Publisher
	p.MessageCreated(context.Background(), conv, msg)
	NewPublisher(nil).NegotiationClosed(context.Background(), conv)
}
