package negotiation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/internal/repo"
	"github.com/autodealer/dealer_backend/internal/repo/repotest"
	"github.com/autodealer/dealer_backend/pkg/negotiator"
)

type fakeUpstream struct {
	reply *negotiator.Response
	err   error
	calls []negotiator.Request
}

func (f *fakeUpstream) Negotiate(ctx context.Context, req negotiator.Request) (*negotiator.Response, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

type fixture struct {
	store    *repotest.Store
	upstream *fakeUpstream
	svc      Service
	conv     *repo.Conversation
	vehicle  *repo.Vehicle
	aiID     uuid.UUID
}

func newFixture(t *testing.T, withVehicle bool) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repotest.New()
	agency := store.AddAgency("Downtown Motors", nil)
	client := store.AddUser("carla", "client", nil)
	agent := store.AddUser("aldo", "agent", &agency.ID)

	f := &fixture{store: store, upstream: &fakeUpstream{}, aiID: uuid.New()}

	now := time.Now().UTC().Truncate(time.Microsecond)
	conv := &repo.Conversation{
		ID:              uuid.New(),
		ParticipantIDs:  []uuid.UUID{client.ID, agent.ID},
		ClientID:        client.ID,
		AgentID:         agent.ID,
		IsAINegotiation: true,
		Status:          repo.StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if withVehicle {
		f.vehicle = store.AddVehicle(agency.ID, 150000)
		conv.VehicleID = &f.vehicle.ID
	}
	if err := store.Conversations.Create(ctx, conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	f.conv = conv
	f.svc = New(Config{AIUserID: f.aiID}, store.Conversations, store.Messages, store.Vehicles, f.upstream)
	return f
}

func (f *fixture) human(t *testing.T, content string) *repo.Message {
	t.Helper()
	msg := &repo.Message{
		ID:             uuid.New(),
		ConversationID: f.conv.ID,
		SenderID:       f.conv.ClientID,
		Content:        content,
		Type:           repo.MessageText,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := f.store.Messages.Create(context.Background(), msg); err != nil {
		t.Fatalf("create message: %v", err)
	}
	return msg
}

func TestRespondFallbackOnUpstreamFailure(t *testing.T) {
	f := newFixture(t, true)
	f.upstream.err = errors.New("context deadline exceeded")
	ctx := context.Background()

	human := f.human(t, "What's your best price?")
	turn, err := f.svc.Respond(ctx, f.conv, human)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	if !turn.Fallback {
		t.Error("expected fallback turn")
	}
	if turn.Message.Content != FallbackReply {
		t.Errorf("content = %q", turn.Message.Content)
	}
	if turn.Message.SenderID != f.aiID {
		t.Errorf("sender = %v, want AI identity", turn.Message.SenderID)
	}
	if turn.Message.Metadata != nil {
		t.Errorf("fallback metadata = %+v, want nil", turn.Message.Metadata)
	}
	if turn.Closed() {
		t.Error("fallback must not close the negotiation")
	}
	if !turn.Message.CreatedAt.After(human.CreatedAt) {
		t.Error("AI reply must be stamped after the human message")
	}

	if n := f.store.MessageCount(f.conv.ID); n != 2 {
		t.Errorf("stored messages = %d, want 2", n)
	}
	conv, _ := f.store.Conversations.Get(ctx, f.conv.ID)
	if conv.LastMessage != FallbackReply {
		t.Errorf("last message = %q", conv.LastMessage)
	}
	if conv.UnreadCount.Client != 1 {
		t.Errorf("client unread = %d, want 1", conv.UnreadCount.Client)
	}
}

func TestRespondSeedsOfferFromVehicle(t *testing.T) {
	f := newFixture(t, true)
	f.upstream.reply = &negotiator.Response{AgentMessage: "Welcome!"}

	if _, err := f.svc.Respond(context.Background(), f.conv, f.human(t, "hi")); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	req := f.upstream.calls[0]
	want := negotiator.Offer{Price: 150000, VehiclePrice: 150000, Monthly: 2500, Duration: 60}
	if req.CurrentOffer == nil || *req.CurrentOffer != want {
		t.Errorf("current_offer = %+v, want %+v", req.CurrentOffer, want)
	}
	if req.VehicleContext == nil || req.VehicleContext.Price != 150000 {
		t.Errorf("vehicle_context = %+v", req.VehicleContext)
	}
	if req.SessionID != f.conv.ID.String() {
		t.Errorf("session_id = %q", req.SessionID)
	}
}

func TestRespondOfferContinuity(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	prior := &repo.Message{
		ID:             uuid.New(),
		ConversationID: f.conv.ID,
		SenderID:       f.aiID,
		Content:        "How about 130000?",
		Type:           repo.MessageOffer,
		Metadata: &repo.MessageMetadata{
			Offer: &repo.Offer{Price: 130000, VehiclePrice: 150000, Monthly: 2166.67, Duration: 60},
		},
		CreatedAt: time.Now().UTC().Add(-time.Minute),
	}
	if err := f.store.Messages.Create(ctx, prior); err != nil {
		t.Fatal(err)
	}

	f.upstream.reply = &negotiator.Response{
		AgentMessage: "I can meet you at 128000.",
		NewOffer:     &negotiator.Offer{Price: 128000, VehiclePrice: 150000, Monthly: 2133.33, Duration: 60},
	}
	turn, err := f.svc.Respond(ctx, f.conv, f.human(t, "Lower please"))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	got := f.upstream.calls[0].CurrentOffer
	if got == nil || got.Price != 130000 {
		t.Fatalf("current_offer = %+v, want persisted 130000 offer", got)
	}
	if turn.Message.Type != repo.MessageOffer {
		t.Errorf("type = %q, want offer", turn.Message.Type)
	}
	if turn.Message.Metadata.Offer.Price != 128000 {
		t.Errorf("new offer = %+v", turn.Message.Metadata.Offer)
	}

	// The next turn continues from the offer just persisted.
	f.upstream.reply = &negotiator.Response{AgentMessage: "Still 128000."}
	if _, err := f.svc.Respond(ctx, f.conv, f.human(t, "ok?")); err != nil {
		t.Fatal(err)
	}
	if got := f.upstream.calls[1].CurrentOffer; got == nil || got.Price != 128000 {
		t.Errorf("second current_offer = %+v, want 128000", got)
	}
}

func TestRespondWithoutVehicleOrOffer(t *testing.T) {
	f := newFixture(t, false)
	f.upstream.reply = &negotiator.Response{AgentMessage: "Which car interests you?"}

	if _, err := f.svc.Respond(context.Background(), f.conv, f.human(t, "hello")); err != nil {
		t.Fatal(err)
	}
	req := f.upstream.calls[0]
	if req.CurrentOffer != nil || req.VehicleContext != nil {
		t.Errorf("offer = %+v vehicle = %+v, want both nil", req.CurrentOffer, req.VehicleContext)
	}
}

func TestRespondHistoryWindow(t *testing.T) {
	f := newFixture(t, false)
	f.upstream.reply = &negotiator.Response{AgentMessage: "noted"}
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 12; i++ {
		sender := f.conv.ClientID
		if i%2 == 1 {
			sender = f.conv.AgentID
		}
		m := &repo.Message{
			ID: uuid.New(), ConversationID: f.conv.ID, SenderID: sender,
			Content: time.Duration(i).String(), Type: repo.MessageText,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := f.store.Messages.Create(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	human := f.human(t, "latest")
	if _, err := f.svc.Respond(ctx, f.conv, human); err != nil {
		t.Fatal(err)
	}

	history := f.upstream.calls[0].ConversationHistory
	if len(history) != 10 {
		t.Fatalf("history len = %d, want 10", len(history))
	}
	for _, h := range history {
		if h.Content == "latest" {
			t.Error("history must exclude the message being answered")
		}
	}
	if history[0].Content != "2ns" || history[9].Content != "11ns" {
		t.Errorf("history window = %q..%q", history[0].Content, history[9].Content)
	}
	if history[0].Role != negotiator.RoleCustomer || history[1].Role != negotiator.RoleAgent {
		t.Errorf("roles = %q, %q", history[0].Role, history[1].Role)
	}
}

func TestRespondClosesOnIntent(t *testing.T) {
	tests := []struct {
		intent string
		want   string
	}{
		{"accept", repo.NegotiationAccepted},
		{"DEAL_CLOSED", repo.NegotiationAccepted},
		{"reject", repo.NegotiationRejected},
		{"Walkaway", repo.NegotiationRejected},
		{"counter_offer", ""},
	}

	for _, tt := range tests {
		t.Run(tt.intent, func(t *testing.T) {
			f := newFixture(t, true)
			f.upstream.reply = &negotiator.Response{AgentMessage: "ok", IntentDetected: tt.intent}
			ctx := context.Background()

			turn, err := f.svc.Respond(ctx, f.conv, f.human(t, "deal?"))
			if err != nil {
				t.Fatal(err)
			}
			if turn.Outcome != tt.want {
				t.Errorf("outcome = %q, want %q", turn.Outcome, tt.want)
			}

			conv, _ := f.store.Conversations.Get(ctx, f.conv.ID)
			if tt.want == "" {
				if conv.Status != repo.StatusActive {
					t.Errorf("status = %q, want active", conv.Status)
				}
				return
			}
			if conv.Status != repo.StatusClosed || conv.NegotiationStatus == nil || *conv.NegotiationStatus != tt.want {
				t.Errorf("status = %q negotiation = %v", conv.Status, conv.NegotiationStatus)
			}
		})
	}
}

func TestRespondStoreFailureIsFatal(t *testing.T) {
	f := newFixture(t, false)
	f.upstream.reply = &negotiator.Response{AgentMessage: "hello"}
	human := f.human(t, "hi")
	f.store.FailWrites = errors.New("connection refused")

	if _, err := f.svc.Respond(context.Background(), f.conv, human); err == nil {
		t.Fatal("expected store failure to surface")
	}
}

func TestSeedOffer(t *testing.T) {
	o := SeedOffer(60000)
	if o.Monthly != 1000 || o.Duration != 60 || o.VehiclePrice != 60000 {
		t.Errorf("SeedOffer = %+v", o)
	}
}
