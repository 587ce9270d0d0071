package authorize

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/pkg/reqctx"
)

var (
	ErrNoSubjectInContext = errors.New("no subject found in context")
)

// SubjectFromContext extracts the GroupSubject (user ID) from the request claims.
func SubjectFromContext(ctx context.Context) (GroupSubject, error) {
	userID, err := UserIDFromContext(ctx)
	if err != nil {
		return "", err
	}
	return GroupSubject(userID.String()), nil
}

// RoleSubjectFromContext returns the Casbin role carried by the token's role claim.
// Casbin treats a subject equal to a policy role as holding that role.
func RoleSubjectFromContext(ctx context.Context) (GroupSubject, error) {
	claims := reqctx.ClaimsFromContext(ctx)
	if claims == nil {
		return "", ErrNoSubjectInContext
	}
	role, ok := RoleForUserRole(claims.GetRole())
	if !ok {
		return "", ErrNoSubjectInContext
	}
	return GroupSubject(role), nil
}

// MustSubjectFromContext extracts the GroupSubject from context or panics.
// Use only when you're certain the subject exists (after AuthRequired).
func MustSubjectFromContext(ctx context.Context) GroupSubject {
	subject, err := SubjectFromContext(ctx)
	if err != nil {
		panic(err)
	}
	return subject
}

// UserIDFromContext extracts the user ID as uuid.UUID from context.
// Returns uuid.Nil and error if not found.
func UserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	claims := reqctx.ClaimsFromContext(ctx)
	if claims == nil {
		return uuid.Nil, ErrNoSubjectInContext
	}
	userID := claims.GetUserID()
	if userID == uuid.Nil {
		return uuid.Nil, ErrNoSubjectInContext
	}
	return userID, nil
}

// DomainFromResource determines the appropriate domain based on resource ownership.
// - If agencyID is provided, returns agency:<uuid> domain
// - If userID is provided, returns user:<uuid> domain
// - Otherwise returns sys domain
func DomainFromResource(agencyID, userID *string) Domain {
	if agencyID != nil && *agencyID != "" {
		return AgencyDomain(*agencyID)
	}
	if userID != nil && *userID != "" {
		return UserDomain(*userID)
	}
	return DomainSys
}

// EnforceAny allows the request when either the user or their token role is permitted.
func EnforceAny(ctx context.Context, auth IAuthorization, domain Domain, object Resource, action Action) error {
	var subjects []GroupSubject
	if s, err := SubjectFromContext(ctx); err == nil {
		subjects = append(subjects, s)
	}
	if s, err := RoleSubjectFromContext(ctx); err == nil {
		subjects = append(subjects, s)
	}
	if len(subjects) == 0 {
		return ErrNoSubjectInContext
	}

	for _, s := range subjects {
		ok, err := auth.Enforce(ctx, s, domain, object, action)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrForbidden
}
