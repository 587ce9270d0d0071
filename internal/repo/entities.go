package repo

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Conversation statuses.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusClosed   = "closed"
)

// Negotiation outcomes, set only together with StatusClosed.
const (
	NegotiationAccepted = "accepted"
	NegotiationRejected = "rejected"
)

// Message types.
const (
	MessageText     = "text"
	MessageSystem   = "system"
	MessageOffer    = "offer"
	MessageDocument = "document"
)

// Client profile statuses.
const (
	ProfileLead     = "lead"
	ProfileProspect = "prospect"
	ProfileCustomer = "customer"
)

// Slot selects one of the per-role unread counters of a conversation.
type Slot string

const (
	SlotAgent  Slot = "agent"
	SlotClient Slot = "client"
)

func (s Slot) column() string {
	if s == SlotClient {
		return "unread_client"
	}
	return "unread_agent"
}

type UnreadCount struct {
	Agent  int `json:"agent"`
	Client int `json:"client"`
}

// Get returns the counter for slot s.
func (u UnreadCount) Get(s Slot) int {
	if s == SlotClient {
		return u.Client
	}
	return u.Agent
}

// Participant is the display projection of a conversation member.
type Participant struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type Conversation struct {
	ID                uuid.UUID      `json:"id"`
	ParticipantIDs    []uuid.UUID    `json:"participant_ids"`
	ClientID          uuid.UUID      `json:"client_id"`
	AgentID           uuid.UUID      `json:"agent_id"`
	VehicleID         *uuid.UUID     `json:"vehicle_id,omitempty"`
	Subject           string         `json:"subject"`
	IsAINegotiation   bool           `json:"is_ai_negotiation"`
	LastMessage       string         `json:"last_message"`
	LastMessageAt     *time.Time     `json:"last_message_at"`
	UnreadCount       UnreadCount    `json:"unread_count"`
	Status            string         `json:"status"`
	NegotiationStatus *string        `json:"negotiation_status,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	Participants      []*Participant `json:"participants,omitempty"`
}

// HasMember reports whether userID is the client, the agent or a participant.
func (c *Conversation) HasMember(userID uuid.UUID) bool {
	if userID == uuid.Nil {
		return false
	}
	return c.ClientID == userID || c.AgentID == userID || c.HasParticipant(userID)
}

// HasParticipant reports whether userID is in the stored participant list.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return slices.Contains(c.ParticipantIDs, userID)
}

// Members lists participants followed by the client and agent when absent from that list.
func (c *Conversation) Members() []uuid.UUID {
	ids := append([]uuid.UUID{}, c.ParticipantIDs...)
	for _, id := range []uuid.UUID{c.ClientID, c.AgentID} {
		if id != uuid.Nil && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// SlotOf returns the unread counter owned by userID: the client slot for the
// conversation client and the agent slot for everyone else.
func (c *Conversation) SlotOf(userID uuid.UUID) Slot {
	if userID == c.ClientID {
		return SlotClient
	}
	return SlotAgent
}

// CounterpartSlot returns the counter incremented when userID sends a message.
func (c *Conversation) CounterpartSlot(senderID uuid.UUID) Slot {
	if senderID == c.ClientID {
		return SlotAgent
	}
	return SlotClient
}

func (c *Conversation) IsClosed() bool { return c.Status == StatusClosed }

// Offer is the negotiation state carried by AI message metadata.
type Offer struct {
	Price        float64 `json:"price"`
	VehiclePrice float64 `json:"vehicle_price"`
	Monthly      float64 `json:"monthly"`
	Duration     int     `json:"duration"`
}

type EmotionalAnalysis struct {
	SentimentScore float64  `json:"sentiment_score"`
	PrimaryEmotion string   `json:"primary_emotion"`
	KeyConcerns    []string `json:"key_concerns"`
}

// MessageMetadata is only set on AI-originated messages.
type MessageMetadata struct {
	Offer             *Offer             `json:"offer,omitempty"`
	EmotionalAnalysis *EmotionalAnalysis `json:"emotional_analysis,omitempty"`
	IntentDetected    string             `json:"intent_detected,omitempty"`
	Reasoning         string             `json:"reasoning,omitempty"`
	WinWinScore       *float64           `json:"win_win_score,omitempty"`
	AgentSteps        []json.RawMessage  `json:"agent_steps,omitempty"`
}

type Message struct {
	ID             uuid.UUID        `json:"id"`
	ConversationID uuid.UUID        `json:"conversation_id"`
	SenderID       uuid.UUID        `json:"sender_id"`
	Content        string           `json:"content"`
	Type           string           `json:"type"`
	Read           bool             `json:"read"`
	ReadAt         *time.Time       `json:"read_at,omitempty"`
	Metadata       *MessageMetadata `json:"metadata,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

type User struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     string     `json:"role"`
	AgencyID *uuid.UUID `json:"agency_id,omitempty"`
}

type Agency struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	ManagerID *uuid.UUID `json:"manager_id,omitempty"`
}

// ClientProfile is the CRM record of a lead, prospect or customer.
type ClientProfile struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	AgencyID  uuid.UUID  `json:"agency_id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

type Vehicle struct {
	ID        uuid.UUID `json:"id"`
	AgencyID  uuid.UUID `json:"agency_id"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
	Year      int       `json:"year"`
	Price     float64   `json:"price"`
	Mileage   int       `json:"mileage"`
	Condition string    `json:"condition"`
	Features  []string  `json:"features"`
}
