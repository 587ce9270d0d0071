package authorize

import (
	"testing"

	"github.com/autodealer/dealer_backend/pkg/constants"
)

func TestIsValidDomain(t *testing.T) {
	tests := []struct {
		name     string
		domain   Domain
		expected bool
	}{
		{"sys domain", DomainSys, true},
		{"wildcard domain", WildcardDomain, true},
		{"valid agency domain", Domain("agency:550e8400-e29b-41d4-a716-446655440000"), true},
		{"valid user domain", Domain("user:550e8400-e29b-41d4-a716-446655440000"), true},

		{"empty domain", Domain(""), false},
		{"random string", Domain("random"), false},
		{"agency without uuid", Domain("agency:"), false},
		{"agency with invalid uuid", Domain("agency:invalid-uuid"), false},
		{"user without uuid", Domain("user:"), false},
		{"unknown prefix", Domain("dealer:550e8400-e29b-41d4-a716-446655440000"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidDomain(tt.domain); got != tt.expected {
				t.Errorf("IsValidDomain(%q) = %v, want %v", tt.domain, got, tt.expected)
			}
		})
	}
}

func TestAgencyDomain(t *testing.T) {
	id := "550e8400-e29b-41d4-a716-446655440000"
	if got := AgencyDomain(id); got != Domain("agency:"+id) {
		t.Errorf("AgencyDomain(%q) = %q", id, got)
	}
}

func TestRoleForUserRole(t *testing.T) {
	for _, userRole := range []string{constants.UserRoleClient, constants.UserRoleAgent, constants.UserRoleManager, constants.UserRoleAdmin} {
		role, ok := RoleForUserRole(userRole)
		if !ok {
			t.Errorf("RoleForUserRole(%q) not mapped", userRole)
			continue
		}
		if _, known := KnownRoles[role]; !known {
			t.Errorf("role %q is not in KnownRoles", role)
		}
		if RoleDisplayNames[role] == "" {
			t.Errorf("role %q has no display name", role)
		}
	}
	if _, ok := RoleForUserRole("janitor"); ok {
		t.Error("unexpected mapping for unknown role")
	}
}

func TestDefaultPoliciesUseKnownConstants(t *testing.T) {
	for _, p := range DefaultPolicies() {
		if _, ok := KnownRoles[p.Subject]; !ok {
			t.Errorf("policy %+v: unknown role", p)
		}
		if _, ok := KnownResources[p.Object]; !ok && p.Object != WildcardResource {
			t.Errorf("policy %+v: unknown resource", p)
		}
		if _, ok := KnownActions[p.Action]; !ok && p.Action != WildcardAction {
			t.Errorf("policy %+v: unknown action", p)
		}
	}
}
