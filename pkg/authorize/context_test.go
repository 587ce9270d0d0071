package authorize

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/pkg/reqctx"
)

type fakeClaims struct {
	userID uuid.UUID
	role   string
}

func (f fakeClaims) GetUserID() uuid.UUID { return f.userID }
func (f fakeClaims) GetRole() string      { return f.role }
func (f fakeClaims) GetTokenType() string { return "access" }

func TestSubjectFromContext(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		ctx     context.Context
		want    GroupSubject
		wantErr bool
	}{
		{"claims present", reqctx.WithClaims(context.Background(), fakeClaims{userID: id}), GroupSubject(id.String()), false},
		{"no claims", context.Background(), "", true},
		{"nil user id", reqctx.WithClaims(context.Background(), fakeClaims{}), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SubjectFromContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("subject = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRoleSubjectFromContext(t *testing.T) {
	ctx := reqctx.WithClaims(context.Background(), fakeClaims{userID: uuid.New(), role: "manager"})
	got, err := RoleSubjectFromContext(ctx)
	if err != nil || got != GroupSubject(RoleSysManager) {
		t.Fatalf("RoleSubjectFromContext = %q, %v", got, err)
	}

	ctx = reqctx.WithClaims(context.Background(), fakeClaims{userID: uuid.New(), role: "guest"})
	if _, err := RoleSubjectFromContext(ctx); !errors.Is(err, ErrNoSubjectInContext) {
		t.Errorf("err = %v, want ErrNoSubjectInContext", err)
	}
}

func TestEnforceAny(t *testing.T) {
	auth, _ := NewAuthorization(createTestEnforcer(t))
	ctx := context.Background()
	if err := SeedDefaultPolicies(ctx, auth); err != nil {
		t.Fatalf("seed: %v", err)
	}

	client := reqctx.WithClaims(ctx, fakeClaims{userID: uuid.New(), role: "client"})
	if err := EnforceAny(client, auth, DomainSys, ResourceMessage, ActionCreate); err != nil {
		t.Errorf("client create message: %v", err)
	}
	if err := EnforceAny(client, auth, DomainSys, ResourcePresence, ActionRead); !errors.Is(err, ErrForbidden) {
		t.Errorf("client read presence err = %v, want ErrForbidden", err)
	}

	// a per-user grant works even when the token role has no permission
	uid := uuid.New()
	if _, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(uid.String()), RoleSysManager, DomainSys); err != nil {
		t.Fatalf("add role: %v", err)
	}
	promoted := reqctx.WithClaims(ctx, fakeClaims{userID: uid, role: "client"})
	if err := EnforceAny(promoted, auth, DomainSys, ResourcePresence, ActionRead); err != nil {
		t.Errorf("promoted read presence: %v", err)
	}

	if err := EnforceAny(ctx, auth, DomainSys, ResourceMessage, ActionCreate); !errors.Is(err, ErrNoSubjectInContext) {
		t.Errorf("anonymous err = %v", err)
	}
}

func TestDomainFromResource(t *testing.T) {
	agencyID := "agency-123"
	userID := "user-456"
	empty := ""

	tests := []struct {
		name       string
		agencyID   *string
		userID     *string
		wantDomain Domain
	}{
		{"agency domain when agencyID provided", &agencyID, nil, Domain("agency:agency-123")},
		{"user domain when userID provided", nil, &userID, Domain("user:user-456")},
		{"agency takes precedence over user", &agencyID, &userID, Domain("agency:agency-123")},
		{"sys domain when neither provided", nil, nil, DomainSys},
		{"sys domain when empty strings provided", &empty, &empty, DomainSys},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DomainFromResource(tt.agencyID, tt.userID); got != tt.wantDomain {
				t.Errorf("DomainFromResource() = %q, want %q", got, tt.wantDomain)
			}
		})
	}
}
