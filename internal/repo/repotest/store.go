// Package repotest provides an in-memory implementation of the repo clients
// for service and transport tests.
package repotest

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/internal/repo"
	"github.com/autodealer/dealer_backend/pkg/constants"
)

// Store holds every table in memory. The exported views mirror the
// sub-clients of repo.Client.
type Store struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*repo.Conversation
	messages      []*repo.Message
	users         map[uuid.UUID]*repo.User
	agencies      map[uuid.UUID]*repo.Agency
	profiles      map[uuid.UUID]*repo.ClientProfile
	vehicles      map[uuid.UUID]*repo.Vehicle

	// FailWrites, when set, is returned by every mutating call.
	FailWrites error

	Conversations *Conversations
	Messages      *Messages
	Users         *Users
	Agencies      *Agencies
	Profiles      *Profiles
	Vehicles      *Vehicles
}

func New() *Store {
	s := &Store{
		conversations: map[uuid.UUID]*repo.Conversation{},
		users:         map[uuid.UUID]*repo.User{},
		agencies:      map[uuid.UUID]*repo.Agency{},
		profiles:      map[uuid.UUID]*repo.ClientProfile{},
		vehicles:      map[uuid.UUID]*repo.Vehicle{},
	}
	s.Conversations = &Conversations{s}
	s.Messages = &Messages{s}
	s.Users = &Users{s}
	s.Agencies = &Agencies{s}
	s.Profiles = &Profiles{s}
	s.Vehicles = &Vehicles{s}
	return s
}

// ---------------------------------------------------------------------------
// Seeding
// ---------------------------------------------------------------------------

func (s *Store) AddUser(name, role string, agencyID *uuid.UUID) *repo.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &repo.User{ID: uuid.New(), Name: name, Email: name + "@example.com", Role: role, AgencyID: agencyID}
	s.users[u.ID] = u
	return u
}

func (s *Store) AddAgency(name string, managerID *uuid.UUID) *repo.Agency {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &repo.Agency{ID: uuid.New(), Name: name, ManagerID: managerID}
	s.agencies[a.ID] = a
	return a
}

func (s *Store) SetAgencyManager(agencyID, managerID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.agencies[agencyID]; ok {
		a.ManagerID = &managerID
	}
}

func (s *Store) AddProfile(userID *uuid.UUID, agencyID uuid.UUID, name string) *repo.ClientProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &repo.ClientProfile{
		ID: uuid.New(), UserID: userID, AgencyID: agencyID,
		Name: name, Email: name + "@example.com", Status: repo.ProfileLead, CreatedAt: time.Now().UTC(),
	}
	s.profiles[p.ID] = p
	return p
}

func (s *Store) AddVehicle(agencyID uuid.UUID, price float64) *repo.Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := &repo.Vehicle{
		ID: uuid.New(), AgencyID: agencyID, Make: "Toyota", Model: "Camry", Year: 2022,
		Price: price, Mileage: 12000, Condition: "used", Features: []string{"sunroof"},
	}
	s.vehicles[v.ID] = v
	return v
}

// ProfilesFor returns every client profile of userID.
func (s *Store) ProfilesFor(userID uuid.UUID) []*repo.ClientProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repo.ClientProfile
	for _, p := range s.profiles {
		if p.UserID != nil && *p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}

// MessageCount returns the number of stored messages of a conversation.
func (s *Store) MessageCount(conversationID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Conversations
// ---------------------------------------------------------------------------

type Conversations struct{ s *Store }

func (c *Conversations) Get(ctx context.Context, id uuid.UUID) (*repo.Conversation, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	conv, ok := c.s.conversations[id]
	if !ok {
		return nil, repo.NewNotFoundError("conversation")
	}
	return cloneConversation(conv), nil
}

func (c *Conversations) FindOpen(ctx context.Context, clientID, agentID uuid.UUID, vehicleID *uuid.UUID) (*repo.Conversation, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var found *repo.Conversation
	for _, conv := range c.s.conversations {
		if conv.ClientID != clientID || conv.AgentID != agentID || conv.IsClosed() {
			continue
		}
		if !sameVehicle(conv.VehicleID, vehicleID) {
			continue
		}
		if found == nil || conv.CreatedAt.Before(found.CreatedAt) {
			found = conv
		}
	}
	if found == nil {
		return nil, repo.NewNotFoundError("conversation")
	}
	return cloneConversation(found), nil
}

func (c *Conversations) ListForUser(ctx context.Context, userID uuid.UUID, w repo.Window) ([]*repo.Conversation, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var out []*repo.Conversation
	for _, conv := range c.s.conversations {
		if conv.IsClosed() || !conv.HasMember(userID) {
			continue
		}
		out = append(out, cloneConversation(conv))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessageAt, out[j].LastMessageAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return window(out, w), nil
}

func (c *Conversations) Create(ctx context.Context, conv *repo.Conversation) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if c.s.FailWrites != nil {
		return c.s.FailWrites
	}
	c.s.conversations[conv.ID] = cloneConversation(conv)
	return nil
}

func (c *Conversations) RecordMessage(ctx context.Context, id uuid.UUID, content string, at time.Time, slot repo.Slot) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if c.s.FailWrites != nil {
		return c.s.FailWrites
	}
	conv, ok := c.s.conversations[id]
	if !ok {
		return repo.NewNotFoundError("conversation")
	}
	if conv.LastMessageAt == nil || !conv.LastMessageAt.After(at) {
		t := at
		conv.LastMessage = content
		conv.LastMessageAt = &t
		conv.UpdatedAt = at
	}
	if slot == repo.SlotClient {
		conv.UnreadCount.Client++
	} else {
		conv.UnreadCount.Agent++
	}
	return nil
}

func (c *Conversations) ResetUnread(ctx context.Context, id uuid.UUID, slot repo.Slot) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if c.s.FailWrites != nil {
		return c.s.FailWrites
	}
	conv, ok := c.s.conversations[id]
	if !ok {
		return repo.NewNotFoundError("conversation")
	}
	if slot == repo.SlotClient {
		conv.UnreadCount.Client = 0
	} else {
		conv.UnreadCount.Agent = 0
	}
	return nil
}

func (c *Conversations) SetStatus(ctx context.Context, id uuid.UUID, status string, negotiation *string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if c.s.FailWrites != nil {
		return c.s.FailWrites
	}
	conv, ok := c.s.conversations[id]
	if !ok {
		return repo.NewNotFoundError("conversation")
	}
	conv.Status = status
	if negotiation != nil {
		n := *negotiation
		conv.NegotiationStatus = &n
	} else {
		conv.NegotiationStatus = nil
	}
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (c *Conversations) Delete(ctx context.Context, id uuid.UUID) (int, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if c.s.FailWrites != nil {
		return 0, c.s.FailWrites
	}
	if _, ok := c.s.conversations[id]; !ok {
		return 0, repo.NewNotFoundError("conversation")
	}
	kept := c.s.messages[:0]
	removed := 0
	for _, m := range c.s.messages {
		if m.ConversationID == id {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	c.s.messages = kept
	delete(c.s.conversations, id)
	return removed, nil
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

type Messages struct{ s *Store }

func (m *Messages) Create(ctx context.Context, msg *repo.Message) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.FailWrites != nil {
		return m.s.FailWrites
	}
	cp := *msg
	m.s.messages = append(m.s.messages, &cp)
	return nil
}

func (m *Messages) Get(ctx context.Context, id uuid.UUID) (*repo.Message, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, msg := range m.s.messages {
		if msg.ID == id {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, repo.NewNotFoundError("message")
}

func (m *Messages) ListByConversation(ctx context.Context, conversationID uuid.UUID, w repo.Window) ([]*repo.Message, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return window(m.s.ordered(conversationID, uuid.Nil), w), nil
}

func (m *Messages) Recent(ctx context.Context, conversationID uuid.UUID, limit int, exclude uuid.UUID) ([]*repo.Message, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	all := m.s.ordered(conversationID, exclude)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (m *Messages) LatestWithOffer(ctx context.Context, conversationID uuid.UUID) (*repo.Message, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	all := m.s.ordered(conversationID, uuid.Nil)
	for i := len(all) - 1; i >= 0; i-- {
		if md := all[i].Metadata; md != nil && md.Offer != nil {
			return all[i], nil
		}
	}
	return nil, repo.NewNotFoundError("offer")
}

func (m *Messages) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.FailWrites != nil {
		return 0, m.s.FailWrites
	}
	n := 0
	for _, msg := range m.s.messages {
		if msg.ConversationID != conversationID || msg.SenderID == readerID || msg.Read {
			continue
		}
		t := at
		msg.Read = true
		msg.ReadAt = &t
		n++
	}
	return n, nil
}

func (s *Store) ordered(conversationID, exclude uuid.UUID) []*repo.Message {
	var out []*repo.Message
	for _, msg := range s.messages {
		if msg.ConversationID != conversationID || msg.ID == exclude {
			continue
		}
		cp := *msg
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// ---------------------------------------------------------------------------
// Directory
// ---------------------------------------------------------------------------

type Users struct{ s *Store }

func (u *Users) Get(ctx context.Context, id uuid.UUID) (*repo.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	usr, ok := u.s.users[id]
	if !ok {
		return nil, repo.NewNotFoundError("user")
	}
	cp := *usr
	return &cp, nil
}

func (u *Users) List(ctx context.Context, ids []uuid.UUID) ([]*repo.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	var out []*repo.User
	for _, id := range ids {
		if usr, ok := u.s.users[id]; ok {
			cp := *usr
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (u *Users) StaffOfAgency(ctx context.Context, agencyID uuid.UUID) ([]*repo.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	var out []*repo.User
	for _, usr := range u.s.users {
		if usr.AgencyID == nil || *usr.AgencyID != agencyID {
			continue
		}
		if usr.Role != constants.UserRoleAgent && usr.Role != constants.UserRoleManager {
			continue
		}
		cp := *usr
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

type Agencies struct{ s *Store }

func (a *Agencies) Get(ctx context.Context, id uuid.UUID) (*repo.Agency, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	ag, ok := a.s.agencies[id]
	if !ok {
		return nil, repo.NewNotFoundError("agency")
	}
	cp := *ag
	return &cp, nil
}

type Profiles struct{ s *Store }

func (p *Profiles) Get(ctx context.Context, id uuid.UUID) (*repo.ClientProfile, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	prof, ok := p.s.profiles[id]
	if !ok {
		return nil, repo.NewNotFoundError("client profile")
	}
	cp := *prof
	return &cp, nil
}

func (p *Profiles) FindByUserAndAgency(ctx context.Context, userID, agencyID uuid.UUID) (*repo.ClientProfile, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	for _, prof := range p.s.profiles {
		if prof.UserID != nil && *prof.UserID == userID && prof.AgencyID == agencyID {
			cp := *prof
			return &cp, nil
		}
	}
	return nil, repo.NewNotFoundError("client profile")
}

func (p *Profiles) Create(ctx context.Context, prof *repo.ClientProfile) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if p.s.FailWrites != nil {
		return p.s.FailWrites
	}
	cp := *prof
	p.s.profiles[prof.ID] = &cp
	return nil
}

type Vehicles struct{ s *Store }

func (v *Vehicles) Get(ctx context.Context, id uuid.UUID) (*repo.Vehicle, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	veh, ok := v.s.vehicles[id]
	if !ok {
		return nil, repo.NewNotFoundError("vehicle")
	}
	cp := *veh
	return &cp, nil
}

func cloneConversation(c *repo.Conversation) *repo.Conversation {
	cp := *c
	cp.ParticipantIDs = slices.Clone(c.ParticipantIDs)
	cp.Participants = nil
	if c.LastMessageAt != nil {
		t := *c.LastMessageAt
		cp.LastMessageAt = &t
	}
	if c.NegotiationStatus != nil {
		n := *c.NegotiationStatus
		cp.NegotiationStatus = &n
	}
	return &cp
}

func sameVehicle(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func window[T any](items []T, w repo.Window) []T {
	if w.Limit <= 0 {
		return items
	}
	if w.Offset >= len(items) {
		return nil
	}
	items = items[max(w.Offset, 0):]
	if len(items) > w.Limit {
		items = items[:w.Limit]
	}
	return items
}
