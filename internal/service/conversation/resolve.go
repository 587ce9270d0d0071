package conversation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/internal/repo"
)

// RefKind tags what a participant reference points at.
type RefKind string

const (
	RefUser          RefKind = "user"
	RefClientProfile RefKind = "client_profile"
	RefAgency        RefKind = "agency"
)

// Ref is a typed participant reference.
type Ref struct {
	Kind RefKind   `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

func (k RefKind) Valid() bool {
	switch k {
	case RefUser, RefClientProfile, RefAgency:
		return true
	}
	return false
}

// classify determines the kind of an untyped id, trying users, then client
// profiles, then agencies.
func (s *conversationService) classify(ctx context.Context, id uuid.UUID) (Ref, error) {
	if _, err := s.users.Get(ctx, id); err == nil {
		return Ref{Kind: RefUser, ID: id}, nil
	} else if !repo.IsNotFound(err) {
		return Ref{}, fmt.Errorf("classify reference: %w", err)
	}

	if _, err := s.profiles.Get(ctx, id); err == nil {
		return Ref{Kind: RefClientProfile, ID: id}, nil
	} else if !repo.IsNotFound(err) {
		return Ref{}, fmt.Errorf("classify reference: %w", err)
	}

	if _, err := s.agencies.Get(ctx, id); err == nil {
		return Ref{Kind: RefAgency, ID: id}, nil
	} else if !repo.IsNotFound(err) {
		return Ref{}, fmt.Errorf("classify reference: %w", err)
	}

	return Ref{}, ErrInvalidReference
}

// resolveClient maps a client-slot reference to a user.
func (s *conversationService) resolveClient(ctx context.Context, ref Ref) (*repo.User, error) {
	switch ref.Kind {
	case RefUser:
		return s.user(ctx, ref.ID)
	case RefClientProfile:
		p, err := s.profiles.Get(ctx, ref.ID)
		if err != nil {
			if repo.IsNotFound(err) {
				return nil, ErrInvalidReference
			}
			return nil, fmt.Errorf("resolve client profile: %w", err)
		}
		if p.UserID == nil {
			return nil, ErrUnlinkedClientProfile
		}
		return s.user(ctx, *p.UserID)
	default:
		return nil, ErrInvalidReference
	}
}

// resolveAgent maps an agent-slot reference to a staff user. An agency
// resolves to its manager, else to any of its staff.
func (s *conversationService) resolveAgent(ctx context.Context, ref Ref) (*repo.User, error) {
	switch ref.Kind {
	case RefUser:
		return s.user(ctx, ref.ID)
	case RefAgency:
		a, err := s.agencies.Get(ctx, ref.ID)
		if err != nil {
			if repo.IsNotFound(err) {
				return nil, ErrInvalidReference
			}
			return nil, fmt.Errorf("resolve agency: %w", err)
		}
		if a.ManagerID != nil {
			u, err := s.users.Get(ctx, *a.ManagerID)
			if err == nil {
				return u, nil
			}
			if !repo.IsNotFound(err) {
				return nil, fmt.Errorf("resolve agency manager: %w", err)
			}
		}
		staff, err := s.users.StaffOfAgency(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve agency staff: %w", err)
		}
		if len(staff) == 0 {
			return nil, ErrNoStaffForAgency
		}
		return staff[0], nil
	default:
		return nil, ErrInvalidReference
	}
}

func (s *conversationService) user(ctx context.Context, id uuid.UUID) (*repo.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrInvalidReference
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}
