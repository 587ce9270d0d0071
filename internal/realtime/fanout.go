package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/internal/repo"
)

// Fanout turns conversation changes into room events and publishes them on
// the bus.
type Fanout struct {
	bus      Bus
	registry Registry
}

func NewFanout(bus Bus, registry Registry) *Fanout {
	return &Fanout{bus: bus, registry: registry}
}

func (f *Fanout) Registry() Registry { return f.registry }

// Emit publishes event to room. Failures are logged; delivery is best effort.
func (f *Fanout) Emit(ctx context.Context, room, event string, data any, except *uuid.UUID) {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		slog.ErrorContext(ctx, "realtime: encode frame", "event", event, "error", err)
		return
	}
	if err := f.bus.Publish(ctx, Envelope{Room: room, ExceptUser: except, Frame: frame}); err != nil {
		slog.WarnContext(ctx, "realtime: publish failed", "room", room, "event", event, "error", err)
	}
}

type messagePayload struct {
	ConversationID uuid.UUID     `json:"conversation_id"`
	Message        *repo.Message `json:"message"`
}

type notificationPayload struct {
	ConversationID uuid.UUID     `json:"conversation_id"`
	Subject        string        `json:"subject"`
	Message        *repo.Message `json:"message"`
	UnreadCount    int           `json:"unread_count"`
}

// MessageCreated sends new_message to the conversation room and a
// notification to the private room of every other member.
func (f *Fanout) MessageCreated(ctx context.Context, conv *repo.Conversation, msg *repo.Message) {
	f.Emit(ctx, ConversationRoom(conv.ID), EventNewMessage,
		messagePayload{ConversationID: conv.ID, Message: msg}, nil)

	for _, id := range conv.Members() {
		if id == msg.SenderID {
			continue
		}
		f.Emit(ctx, UserRoom(id), EventNewMessageNotification, notificationPayload{
			ConversationID: conv.ID,
			Subject:        conv.Subject,
			Message:        msg,
			UnreadCount:    conv.UnreadCount.Get(conv.SlotOf(id)),
		}, nil)
	}
}

type readPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Count          int       `json:"count"`
	ReadAt         time.Time `json:"read_at"`
}

func (f *Fanout) MessagesRead(ctx context.Context, conv *repo.Conversation, readerID uuid.UUID, count int) {
	f.Emit(ctx, ConversationRoom(conv.ID), EventMessagesRead, readPayload{
		ConversationID: conv.ID,
		UserID:         readerID,
		Count:          count,
		ReadAt:         time.Now().UTC(),
	}, &readerID)
}

type metricsPayload struct {
	ConversationID    uuid.UUID               `json:"conversation_id"`
	MessageID         uuid.UUID               `json:"message_id"`
	EmotionalAnalysis *repo.EmotionalAnalysis `json:"emotional_analysis"`
	IntentDetected    string                  `json:"intent_detected,omitempty"`
	WinWinScore       *float64                `json:"win_win_score,omitempty"`
	Offer             *repo.Offer             `json:"offer,omitempty"`
	NegotiationStatus *string                 `json:"negotiation_status,omitempty"`
}

func (f *Fanout) AIMetrics(ctx context.Context, conv *repo.Conversation, msg *repo.Message) {
	md := msg.Metadata
	if md == nil || md.EmotionalAnalysis == nil {
		return
	}
	f.Emit(ctx, ConversationRoom(conv.ID), EventAIMetricsUpdate, metricsPayload{
		ConversationID:    conv.ID,
		MessageID:         msg.ID,
		EmotionalAnalysis: md.EmotionalAnalysis,
		IntentDetected:    md.IntentDetected,
		WinWinScore:       md.WinWinScore,
		Offer:             md.Offer,
		NegotiationStatus: conv.NegotiationStatus,
	}, nil)
}

type userPayload struct {
	UserID         uuid.UUID  `json:"user_id"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

// Connected registers the connection and announces the user when it is the
// first one.
func (f *Fanout) Connected(ctx context.Context, userID uuid.UUID) {
	if f.registry.Connect(ctx, userID) {
		f.Emit(ctx, PresenceRoom, EventUserOnline, userPayload{UserID: userID}, &userID)
	}
}

// Disconnected announces the user offline when the last connection closes.
func (f *Fanout) Disconnected(ctx context.Context, userID uuid.UUID) {
	if f.registry.Disconnect(ctx, userID) {
		f.Emit(ctx, PresenceRoom, EventUserOffline, userPayload{UserID: userID}, &userID)
	}
}

func (f *Fanout) UserJoined(ctx context.Context, convID, userID uuid.UUID) {
	f.Emit(ctx, ConversationRoom(convID), EventUserJoined,
		userPayload{UserID: userID, ConversationID: &convID}, &userID)
}

// Typing relays a typing indicator to the room minus the typist.
func (f *Fanout) Typing(ctx context.Context, convID, userID uuid.UUID, typing bool) {
	event := EventUserStopTyping
	if typing {
		event = EventUserTyping
	}
	f.Emit(ctx, ConversationRoom(convID), event,
		userPayload{UserID: userID, ConversationID: &convID}, &userID)
}
