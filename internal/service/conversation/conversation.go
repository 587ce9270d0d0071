package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/internal/repo"
	"github.com/autodealer/dealer_backend/internal/service/negotiation"
	"github.com/autodealer/dealer_backend/pkg/constants"
	"github.com/autodealer/dealer_backend/pkg/observability"
)

const (
	// MaxContentLength is counted in runes after trimming.
	MaxContentLength = 5000

	// AINegotiationMarker in a subject enables AI mode when the flag is not
	// given explicitly.
	AINegotiationMarker = "[AI-NEGOTIATION]"
)

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

type ConversationStore interface {
	Get(ctx context.Context, id uuid.UUID) (*repo.Conversation, error)
	FindOpen(ctx context.Context, clientID, agentID uuid.UUID, vehicleID *uuid.UUID) (*repo.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID, w repo.Window) ([]*repo.Conversation, error)
	Create(ctx context.Context, conv *repo.Conversation) error
	RecordMessage(ctx context.Context, id uuid.UUID, content string, at time.Time, slot repo.Slot) error
	ResetUnread(ctx context.Context, id uuid.UUID, slot repo.Slot) error
	SetStatus(ctx context.Context, id uuid.UUID, status string, negotiation *string) error
	Delete(ctx context.Context, id uuid.UUID) (int, error)
}

type MessageStore interface {
	Create(ctx context.Context, m *repo.Message) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID, w repo.Window) ([]*repo.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int, error)
}

type UserStore interface {
	Get(ctx context.Context, id uuid.UUID) (*repo.User, error)
	List(ctx context.Context, ids []uuid.UUID) ([]*repo.User, error)
	StaffOfAgency(ctx context.Context, agencyID uuid.UUID) ([]*repo.User, error)
}

type AgencyStore interface {
	Get(ctx context.Context, id uuid.UUID) (*repo.Agency, error)
}

type ClientProfileStore interface {
	Get(ctx context.Context, id uuid.UUID) (*repo.ClientProfile, error)
	FindByUserAndAgency(ctx context.Context, userID, agencyID uuid.UUID) (*repo.ClientProfile, error)
	Create(ctx context.Context, p *repo.ClientProfile) error
}

// Stores groups the persistence dependencies.
type Stores struct {
	Conversations ConversationStore
	Messages      MessageStore
	Users         UserStore
	Agencies      AgencyStore
	Profiles      ClientProfileStore
}

// StoresFromClient wires the Postgres clients.
func StoresFromClient(db *repo.Client) Stores {
	return Stores{
		Conversations: db.Conversation,
		Messages:      db.Message,
		Users:         db.User,
		Agencies:      db.Agency,
		Profiles:      db.ClientProfile,
	}
}

// Notifier pushes realtime signals. Calls are best effort.
type Notifier interface {
	MessageCreated(ctx context.Context, conv *repo.Conversation, msg *repo.Message)
	MessagesRead(ctx context.Context, conv *repo.Conversation, readerID uuid.UUID, count int)
	AIMetrics(ctx context.Context, conv *repo.Conversation, msg *repo.Message)
}

// Events publishes domain events for background workers.
type Events interface {
	MessageCreated(ctx context.Context, conv *repo.Conversation, msg *repo.Message)
	NegotiationClosed(ctx context.Context, conv *repo.Conversation)
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Caller is the authenticated principal.
type Caller struct {
	ID   uuid.UUID
	Role string
}

// CreateRequest accepts one of three forms: typed Client/Agent refs, untyped
// Participants hints, or a legacy ClientID with the caller as agent.
type CreateRequest struct {
	Client       *Ref
	Agent        *Ref
	Participants []uuid.UUID
	ClientID     *uuid.UUID

	VehicleID       *uuid.UUID
	Subject         string
	IsAINegotiation *bool
}

// Page selects a slice of a list. The zero Page returns everything; otherwise
// Page starts at 1 and PerPage falls back to DefaultPerPage outside 1..MaxPerPage.
type Page struct {
	Page    int
	PerPage int
}

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

func (p Page) window() repo.Window {
	if p.Page == 0 && p.PerPage == 0 {
		return repo.Window{}
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 || p.PerPage > MaxPerPage {
		p.PerPage = DefaultPerPage
	}
	return repo.Window{Offset: (p.Page - 1) * p.PerPage, Limit: p.PerPage}
}

type AppendResult struct {
	Message      *repo.Message      `json:"message"`
	AIMessage    *repo.Message      `json:"ai_message"`
	Conversation *repo.Conversation `json:"conversation"`
}

type ReadResult struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Marked         int       `json:"marked"`
}

type UnreadEntry struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Unread         int       `json:"unread"`
}

type UnreadSummary struct {
	Total         int           `json:"total"`
	Conversations []UnreadEntry `json:"conversations"`
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// CreateOrGet returns the open conversation for the resolved pair, creating
	// it when absent. created reports whether a new row was inserted.
	CreateOrGet(ctx context.Context, caller Caller, req CreateRequest) (conv *repo.Conversation, created bool, err error)
	List(ctx context.Context, userID uuid.UUID, page Page) ([]*repo.Conversation, error)
	Get(ctx context.Context, convID, userID uuid.UUID) (*repo.Conversation, error)
	ListMessages(ctx context.Context, convID, userID uuid.UUID, page Page) ([]*repo.Message, error)
	Append(ctx context.Context, convID, senderID uuid.UUID, content string) (*AppendResult, error)
	MarkRead(ctx context.Context, convID, userID uuid.UUID) (*ReadResult, error)
	Delete(ctx context.Context, convID, userID uuid.UUID) (int, error)
	UpdateStatus(ctx context.Context, convID, userID uuid.UUID, status string) (*repo.Conversation, error)
	UnreadSummary(ctx context.Context, userID uuid.UUID) (*UnreadSummary, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type conversationService struct {
	convs    ConversationStore
	msgs     MessageStore
	users    UserStore
	agencies AgencyStore
	profiles ClientProfileStore

	bridge   negotiation.Service
	notifier Notifier
	events   Events
	metrics  *observability.Instruments
}

// New builds the service. notifier and events may be nil.
func New(stores Stores, bridge negotiation.Service, notifier Notifier, events Events) Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if events == nil {
		events = nopEvents{}
	}
	return &conversationService{
		convs:    stores.Conversations,
		msgs:     stores.Messages,
		users:    stores.Users,
		agencies: stores.Agencies,
		profiles: stores.Profiles,
		bridge:   bridge,
		notifier: notifier,
		events:   events,
		metrics:  observability.Domain(),
	}
}

func (s *conversationService) CreateOrGet(ctx context.Context, caller Caller, req CreateRequest) (*repo.Conversation, bool, error) {
	clientRef, agentRef, err := s.pair(ctx, caller, req)
	if err != nil {
		return nil, false, err
	}

	client, err := s.resolveClient(ctx, clientRef)
	if err != nil {
		return nil, false, err
	}
	agent, err := s.resolveAgent(ctx, agentRef)
	if err != nil {
		return nil, false, err
	}
	if client.ID == agent.ID {
		return nil, false, ErrInvalidReference
	}

	agencyID := agent.AgencyID
	if agentRef.Kind == RefAgency {
		agencyID = &agentRef.ID
	}
	if err := s.mayOpen(ctx, caller, client, agent, agentRef.Kind == RefAgency, agencyID); err != nil {
		return nil, false, err
	}

	if caller.Role == constants.UserRoleClient && caller.ID == client.ID {
		s.ensureLead(ctx, caller.ID, agencyID)
	}

	existing, err := s.convs.FindOpen(ctx, client.ID, agent.ID, req.VehicleID)
	switch {
	case err == nil:
		if err := s.populate(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case !repo.IsNotFound(err):
		return nil, false, fmt.Errorf("find conversation: %w", err)
	}

	subject := strings.TrimSpace(req.Subject)
	aiMode := strings.HasPrefix(subject, AINegotiationMarker)
	if req.IsAINegotiation != nil {
		aiMode = *req.IsAINegotiation
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	conv := &repo.Conversation{
		ID:              newID(),
		ParticipantIDs:  []uuid.UUID{client.ID, agent.ID},
		ClientID:        client.ID,
		AgentID:         agent.ID,
		VehicleID:       req.VehicleID,
		Subject:         subject,
		IsAINegotiation: aiMode,
		Status:          repo.StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.convs.Create(ctx, conv); err != nil {
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}

	slog.InfoContext(ctx, "conversation created",
		"conversation_id", conv.ID, "client_id", client.ID, "agent_id", agent.ID, "ai", aiMode)

	if err := s.populate(ctx, conv); err != nil {
		return nil, false, err
	}
	return conv, true, nil
}

// pair turns the request into client and agent references.
func (s *conversationService) pair(ctx context.Context, caller Caller, req CreateRequest) (Ref, Ref, error) {
	self := Ref{Kind: RefUser, ID: caller.ID}

	switch {
	case req.Client != nil || req.Agent != nil:
		if req.Client == nil || !req.Client.Kind.Valid() {
			return Ref{}, Ref{}, ErrInvalidReference
		}
		agent := self
		if req.Agent != nil {
			if !req.Agent.Kind.Valid() {
				return Ref{}, Ref{}, ErrInvalidReference
			}
			agent = *req.Agent
		}
		return *req.Client, agent, nil

	case len(req.Participants) > 0:
		return s.pairFromHints(ctx, caller, req.Participants)

	case req.ClientID != nil:
		ref, err := s.classify(ctx, *req.ClientID)
		if err != nil {
			return Ref{}, Ref{}, err
		}
		return ref, self, nil
	}

	return Ref{}, Ref{}, ErrInvalidReference
}

// pairFromHints classifies untyped ids and assigns them to slots. Client
// profiles take the client slot and agencies the agent slot; plain users fill
// the remaining slots, client-role users first. The caller joins the pair
// when only one other id is given.
func (s *conversationService) pairFromHints(ctx context.Context, caller Caller, hints []uuid.UUID) (Ref, Ref, error) {
	seen := map[uuid.UUID]bool{}
	var refs []Ref
	for _, id := range hints {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		ref, err := s.classify(ctx, id)
		if err != nil {
			return Ref{}, Ref{}, err
		}
		refs = append(refs, ref)
	}
	if len(refs) == 1 && !seen[caller.ID] {
		refs = append(refs, Ref{Kind: RefUser, ID: caller.ID})
	}
	if len(refs) != 2 {
		return Ref{}, Ref{}, ErrInvalidReference
	}

	var client, agent *Ref
	var users []Ref
	for _, r := range refs {
		switch r.Kind {
		case RefClientProfile:
			if client != nil {
				return Ref{}, Ref{}, ErrInvalidReference
			}
			client = &r
		case RefAgency:
			if agent != nil {
				return Ref{}, Ref{}, ErrInvalidReference
			}
			agent = &r
		default:
			users = append(users, r)
		}
	}

	if len(users) == 2 {
		second, err := s.users.Get(ctx, users[1].ID)
		if err != nil {
			return Ref{}, Ref{}, fmt.Errorf("classify participants: %w", err)
		}
		first, err := s.users.Get(ctx, users[0].ID)
		if err != nil {
			return Ref{}, Ref{}, fmt.Errorf("classify participants: %w", err)
		}
		if second.Role == constants.UserRoleClient && first.Role != constants.UserRoleClient {
			users[0], users[1] = users[1], users[0]
		}
	}
	for _, r := range users {
		if client == nil {
			client = &r
		} else {
			agent = &r
		}
	}
	return *client, *agent, nil
}

// mayOpen reports ErrNotFound unless the caller belongs to the resolved pair.
// Admins pass. Managers of the agent's agency pass, as does any staff member
// of an agency named directly in the agent slot.
func (s *conversationService) mayOpen(ctx context.Context, caller Caller, client, agent *repo.User, byAgency bool, agencyID *uuid.UUID) error {
	if caller.ID == client.ID || caller.ID == agent.ID || caller.Role == constants.UserRoleAdmin {
		return nil
	}
	if agencyID == nil || caller.Role == constants.UserRoleClient {
		return ErrNotFound
	}

	u, err := s.users.Get(ctx, caller.ID)
	if err != nil {
		if repo.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("load caller: %w", err)
	}
	if u.AgencyID == nil || *u.AgencyID != *agencyID {
		return ErrNotFound
	}
	switch u.Role {
	case constants.UserRoleManager:
		return nil
	case constants.UserRoleAgent:
		if byAgency {
			return nil
		}
	}
	return ErrNotFound
}

// ensureLead creates a lead profile linking userID to agencyID when none
// exists. Failures are logged only.
func (s *conversationService) ensureLead(ctx context.Context, userID uuid.UUID, agencyID *uuid.UUID) {
	if agencyID == nil {
		return
	}
	_, err := s.profiles.FindByUserAndAgency(ctx, userID, *agencyID)
	if err == nil {
		return
	}
	if !repo.IsNotFound(err) {
		slog.WarnContext(ctx, "lead profile lookup failed", "user_id", userID, "agency_id", *agencyID, "error", err)
		return
	}

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "lead profile: load user failed", "user_id", userID, "error", err)
		return
	}
	uid := u.ID
	p := &repo.ClientProfile{
		ID:        newID(),
		UserID:    &uid,
		AgencyID:  *agencyID,
		Name:      u.Name,
		Email:     u.Email,
		Status:    repo.ProfileLead,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		slog.WarnContext(ctx, "lead profile create failed", "user_id", userID, "agency_id", *agencyID, "error", err)
		return
	}
	slog.InfoContext(ctx, "lead profile created", "profile_id", p.ID, "user_id", userID, "agency_id", *agencyID)
}

func (s *conversationService) List(ctx context.Context, userID uuid.UUID, page Page) ([]*repo.Conversation, error) {
	convs, err := s.convs.ListForUser(ctx, userID, page.window())
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if err := s.populate(ctx, convs...); err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []*repo.Conversation{}
	}
	return convs, nil
}

func (s *conversationService) Get(ctx context.Context, convID, userID uuid.UUID) (*repo.Conversation, error) {
	conv, err := s.access(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.populate(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *conversationService) ListMessages(ctx context.Context, convID, userID uuid.UUID, page Page) ([]*repo.Message, error) {
	if _, err := s.access(ctx, convID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.msgs.ListByConversation(ctx, convID, page.window())
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []*repo.Message{}
	}
	return msgs, nil
}

func (s *conversationService) Append(ctx context.Context, convID, senderID uuid.UUID, content string) (*AppendResult, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}

	conv, err := s.access(ctx, convID, senderID)
	if err != nil {
		return nil, err
	}

	msg := &repo.Message{
		ID:             newID(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		Type:           repo.MessageText,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.msgs.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	if err := s.convs.RecordMessage(ctx, conv.ID, msg.Content, msg.CreatedAt, conv.CounterpartSlot(senderID)); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	s.metrics.MessageAppended(ctx, senderKind(conv, senderID))

	updated, err := s.snapshot(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	s.notifier.MessageCreated(ctx, updated, msg)
	s.events.MessageCreated(ctx, updated, msg)

	res := &AppendResult{Message: msg, Conversation: updated}
	if !conv.IsAINegotiation || conv.IsClosed() || s.bridge == nil {
		return res, nil
	}

	turn, err := s.bridge.Respond(ctx, conv, msg)
	if err != nil {
		return nil, fmt.Errorf("negotiation turn: %w", err)
	}
	if updated, err = s.snapshot(ctx, conv.ID); err != nil {
		return nil, err
	}
	s.metrics.MessageAppended(ctx, "ai")
	res.AIMessage = turn.Message
	res.Conversation = updated
	s.notifier.MessageCreated(ctx, updated, turn.Message)
	if md := turn.Message.Metadata; md != nil && md.EmotionalAnalysis != nil {
		s.notifier.AIMetrics(ctx, updated, turn.Message)
	}
	if turn.Closed() {
		s.events.NegotiationClosed(ctx, updated)
	}
	return res, nil
}

// snapshot reloads a conversation with its display participants.
func (s *conversationService) snapshot(ctx context.Context, id uuid.UUID) (*repo.Conversation, error) {
	conv, err := s.convs.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload conversation: %w", err)
	}
	if err := s.populate(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *conversationService) MarkRead(ctx context.Context, convID, userID uuid.UUID) (*ReadResult, error) {
	conv, err := s.access(ctx, convID, userID)
	if err != nil {
		return nil, err
	}

	n, err := s.msgs.MarkRead(ctx, conv.ID, userID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	if err := s.convs.ResetUnread(ctx, conv.ID, conv.SlotOf(userID)); err != nil {
		return nil, fmt.Errorf("reset unread: %w", err)
	}

	s.notifier.MessagesRead(ctx, conv, userID, n)
	return &ReadResult{ConversationID: conv.ID, Marked: n}, nil
}

func (s *conversationService) Delete(ctx context.Context, convID, userID uuid.UUID) (int, error) {
	conv, err := s.access(ctx, convID, userID)
	if err != nil {
		return 0, err
	}
	n, err := s.convs.Delete(ctx, conv.ID)
	if err != nil {
		if repo.IsNotFound(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("delete conversation: %w", err)
	}
	slog.InfoContext(ctx, "conversation deleted", "conversation_id", conv.ID, "user_id", userID, "messages", n)
	return n, nil
}

func (s *conversationService) UpdateStatus(ctx context.Context, convID, userID uuid.UUID, status string) (*repo.Conversation, error) {
	if status != repo.StatusActive && status != repo.StatusArchived {
		return nil, ErrInvalidStatus
	}
	conv, err := s.access(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	if conv.IsClosed() {
		return nil, ErrConversationClosed
	}
	if conv.Status != status {
		if err := s.convs.SetStatus(ctx, conv.ID, status, nil); err != nil {
			return nil, fmt.Errorf("update status: %w", err)
		}
	}
	return s.Get(ctx, conv.ID, userID)
}

func (s *conversationService) UnreadSummary(ctx context.Context, userID uuid.UUID) (*UnreadSummary, error) {
	convs, err := s.convs.ListForUser(ctx, userID, repo.Window{})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := &UnreadSummary{Conversations: []UnreadEntry{}}
	for _, c := range convs {
		n := c.UnreadCount.Get(c.SlotOf(userID))
		if n == 0 {
			continue
		}
		out.Total += n
		out.Conversations = append(out.Conversations, UnreadEntry{ConversationID: c.ID, Unread: n})
	}
	return out, nil
}

// access loads the conversation if userID belongs to it. Absence and
// non-membership are both ErrNotFound.
func (s *conversationService) access(ctx context.Context, convID, userID uuid.UUID) (*repo.Conversation, error) {
	conv, err := s.convs.Get(ctx, convID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if !conv.HasMember(userID) {
		return nil, ErrNotFound
	}
	return conv, nil
}

// populate fills the display participants of every conversation with one
// directory lookup.
func (s *conversationService) populate(ctx context.Context, convs ...*repo.Conversation) error {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, c := range convs {
		for _, id := range memberIDs(c) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	users, err := s.users.List(ctx, ids)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	byID := make(map[uuid.UUID]*repo.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for _, c := range convs {
		c.Participants = c.Participants[:0]
		for _, id := range memberIDs(c) {
			if u, ok := byID[id]; ok {
				c.Participants = append(c.Participants, &repo.Participant{ID: u.ID, Name: u.Name, Email: u.Email})
			}
		}
	}
	return nil
}

func memberIDs(c *repo.Conversation) []uuid.UUID {
	ids := append([]uuid.UUID{}, c.ParticipantIDs...)
	for _, id := range []uuid.UUID{c.ClientID, c.AgentID} {
		if !c.HasParticipant(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", ErrContentTooLong
	}
	return content, nil
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

type nopNotifier struct{}

func (nopNotifier) MessageCreated(context.Context, *repo.Conversation, *repo.Message) {}
func (nopNotifier) MessagesRead(context.Context, *repo.Conversation, uuid.UUID, int)  {}
func (nopNotifier) AIMetrics(context.Context, *repo.Conversation, *repo.Message)      {}

type nopEvents struct{}

func (nopEvents) MessageCreated(context.Context, *repo.Conversation, *repo.Message) {}
func (nopEvents) NegotiationClosed(context.Context, *repo.Conversation)            {}

func senderKind(conv *repo.Conversation, senderID uuid.UUID) string {
	switch {
	case senderID == conv.ClientID:
		return "client"
	case senderID == conv.AgentID:
		return "agent"
	default:
		return "participant"
	}
}
