package negotiation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/internal/repo"
	"github.com/autodealer/dealer_backend/pkg/negotiator"
	"github.com/autodealer/dealer_backend/pkg/observability"
)

// FallbackReply is persisted when the negotiation agent cannot answer.
const FallbackReply = "I'm experiencing a technical difficulty right now. A human agent will take over this conversation shortly."

const (
	defaultHistoryWindow = 10
	seedTermMonths       = 60
)

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

type ConversationStore interface {
	RecordMessage(ctx context.Context, id uuid.UUID, content string, at time.Time, slot repo.Slot) error
	SetStatus(ctx context.Context, id uuid.UUID, status string, negotiation *string) error
}

type MessageStore interface {
	Create(ctx context.Context, m *repo.Message) error
	Recent(ctx context.Context, conversationID uuid.UUID, limit int, exclude uuid.UUID) ([]*repo.Message, error)
	LatestWithOffer(ctx context.Context, conversationID uuid.UUID) (*repo.Message, error)
}

type VehicleStore interface {
	Get(ctx context.Context, id uuid.UUID) (*repo.Vehicle, error)
}

// Upstream is the external negotiation agent.
type Upstream interface {
	Negotiate(ctx context.Context, req negotiator.Request) (*negotiator.Response, error)
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Config struct {
	AIUserID      uuid.UUID
	HistoryWindow int
}

// Turn is the persisted outcome of one negotiation round.
type Turn struct {
	Message  *repo.Message
	Fallback bool
	// Outcome is the negotiation status applied by this turn, empty when the
	// conversation stays open.
	Outcome string
}

func (t *Turn) Closed() bool { return t != nil && t.Outcome != "" }

type Service interface {
	// Respond answers human in conv. Upstream failures produce the fallback
	// reply; only store failures are returned.
	Respond(ctx context.Context, conv *repo.Conversation, human *repo.Message) (*Turn, error)
	AIUserID() uuid.UUID
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type negotiationService struct {
	cfg      Config
	convs    ConversationStore
	msgs     MessageStore
	vehicles VehicleStore
	upstream Upstream
	metrics  *observability.Instruments
}

func New(cfg Config, convs ConversationStore, msgs MessageStore, vehicles VehicleStore, upstream Upstream) Service {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = defaultHistoryWindow
	}

	return &negotiationService{
		cfg:      cfg,
		convs:    convs,
		msgs:     msgs,
		vehicles: vehicles,
		upstream: upstream,
		metrics:  observability.Domain(),
	}
}

func (s *negotiationService) AIUserID() uuid.UUID { return s.cfg.AIUserID }

func (s *negotiationService) Respond(ctx context.Context, conv *repo.Conversation, human *repo.Message) (*Turn, error) {
	vehicle := s.vehicleContext(ctx, conv)

	history, err := s.history(ctx, conv, human.ID)
	if err != nil {
		return nil, err
	}

	offer, err := s.currentOffer(ctx, conv.ID, vehicle)
	if err != nil {
		return nil, err
	}

	req := negotiator.Request{
		SessionID:           conv.ID.String(),
		CustomerMessage:     human.Content,
		ConversationHistory: history,
		CurrentOffer:        offer,
		VehicleContext:      vehicle,
	}

	turn := &Turn{}
	reply, err := s.call(ctx, req)
	if err != nil {
		slog.WarnContext(ctx, "negotiation agent failed, sending fallback",
			"conversation_id", conv.ID, "error", err)
		turn.Fallback = true
	}

	msg := &repo.Message{
		ID:             newID(),
		ConversationID: conv.ID,
		SenderID:       s.cfg.AIUserID,
		Type:           repo.MessageText,
		CreatedAt:      after(human.CreatedAt),
	}
	if turn.Fallback {
		msg.Content = FallbackReply
	} else {
		msg.Content = reply.AgentMessage
		msg.Metadata = metadataFrom(reply)
		if msg.Metadata.Offer != nil {
			msg.Type = repo.MessageOffer
		}
		turn.Outcome = OutcomeForIntent(reply.IntentDetected)
	}

	if err := s.msgs.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("store ai message: %w", err)
	}
	if err := s.convs.RecordMessage(ctx, conv.ID, msg.Content, msg.CreatedAt, repo.SlotClient); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	if turn.Outcome != "" {
		outcome := turn.Outcome
		if err := s.convs.SetStatus(ctx, conv.ID, repo.StatusClosed, &outcome); err != nil {
			return nil, fmt.Errorf("close negotiation: %w", err)
		}
	}

	turn.Message = msg
	return turn, nil
}

func (s *negotiationService) call(ctx context.Context, req negotiator.Request) (*negotiator.Response, error) {
	start := time.Now()
	reply, err := s.upstream.Negotiate(ctx, req)

	outcome := "success"
	if err != nil {
		outcome = "fallback"
	}
	s.metrics.NegotiationTurn(ctx, outcome, time.Since(start))
	return reply, err
}

// vehicleContext never fails the turn; a missing vehicle yields nil.
func (s *negotiationService) vehicleContext(ctx context.Context, conv *repo.Conversation) *negotiator.Vehicle {
	if conv.VehicleID == nil || s.vehicles == nil {
		return nil
	}
	v, err := s.vehicles.Get(ctx, *conv.VehicleID)
	if err != nil {
		if !repo.IsNotFound(err) {
			slog.WarnContext(ctx, "negotiation: vehicle lookup failed",
				"conversation_id", conv.ID, "vehicle_id", *conv.VehicleID, "error", err)
		}
		return nil
	}
	features := v.Features
	if features == nil {
		features = []string{}
	}
	return &negotiator.Vehicle{
		Make:      v.Make,
		Model:     v.Model,
		Year:      v.Year,
		Price:     v.Price,
		Mileage:   v.Mileage,
		Condition: v.Condition,
		Features:  features,
	}
}

func (s *negotiationService) history(ctx context.Context, conv *repo.Conversation, exclude uuid.UUID) ([]negotiator.Turn, error) {
	recent, err := s.msgs.Recent(ctx, conv.ID, s.cfg.HistoryWindow, exclude)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	out := make([]negotiator.Turn, 0, len(recent))
	for _, m := range recent {
		role := negotiator.RoleAgent
		if m.SenderID == conv.ClientID {
			role = negotiator.RoleCustomer
		}
		out = append(out, negotiator.Turn{Role: role, Content: m.Content})
	}
	return out, nil
}

// currentOffer is the newest persisted offer, else one seeded from the
// vehicle's listed price.
func (s *negotiationService) currentOffer(ctx context.Context, convID uuid.UUID, vehicle *negotiator.Vehicle) (*negotiator.Offer, error) {
	m, err := s.msgs.LatestWithOffer(ctx, convID)
	switch {
	case err == nil && m.Metadata != nil && m.Metadata.Offer != nil:
		o := m.Metadata.Offer
		return &negotiator.Offer{Price: o.Price, VehiclePrice: o.VehiclePrice, Monthly: o.Monthly, Duration: o.Duration}, nil
	case err != nil && !repo.IsNotFound(err):
		return nil, fmt.Errorf("load current offer: %w", err)
	}

	if vehicle == nil {
		return nil, nil
	}
	return SeedOffer(vehicle.Price), nil
}

// SeedOffer builds the opening offer for a listed price.
func SeedOffer(price float64) *negotiator.Offer {
	return &negotiator.Offer{
		Price:        price,
		VehiclePrice: price,
		Monthly:      price / seedTermMonths,
		Duration:     seedTermMonths,
	}
}

// OutcomeForIntent maps the detected intent to a negotiation status, or ""
// when the conversation stays open.
func OutcomeForIntent(intent string) string {
	switch strings.ToLower(strings.TrimSpace(intent)) {
	case "accept", "deal_closed":
		return repo.NegotiationAccepted
	case "reject", "walkaway":
		return repo.NegotiationRejected
	default:
		return ""
	}
}

func metadataFrom(r *negotiator.Response) *repo.MessageMetadata {
	md := &repo.MessageMetadata{
		IntentDetected: r.IntentDetected,
		Reasoning:      r.Reasoning,
		WinWinScore:    r.WinWinScore,
		AgentSteps:     r.AgentSteps,
	}
	if r.NewOffer != nil {
		md.Offer = &repo.Offer{
			Price:        r.NewOffer.Price,
			VehiclePrice: r.NewOffer.VehiclePrice,
			Monthly:      r.NewOffer.Monthly,
			Duration:     r.NewOffer.Duration,
		}
	}
	if r.EmotionalAnalysis != nil {
		md.EmotionalAnalysis = &repo.EmotionalAnalysis{
			SentimentScore: r.EmotionalAnalysis.SentimentScore,
			PrimaryEmotion: r.EmotionalAnalysis.PrimaryEmotion,
			KeyConcerns:    r.EmotionalAnalysis.KeyConcerns,
		}
	}
	return md
}

// after returns a timestamp strictly later than t at store precision.
func after(t time.Time) time.Time {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(t) {
		return t.Add(time.Microsecond)
	}
	return now
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
