package authorize

import (
	"context"
	"log/slog"
)

// DefaultPolicies is the baseline permission set. Membership of a given
// conversation is still checked by the conversation service.
func DefaultPolicies() []PermissionPolicy {
	policies := []PermissionPolicy{
		// Admin: everything
		{RoleSysAdmin, DomainSys, WildcardResource, WildcardAction, EffectAllow},

		// Managers: every conversation action, plus presence lookups
		{RoleSysManager, DomainSys, ResourceConversation, WildcardAction, EffectAllow},
		{RoleSysManager, DomainSys, ResourceMessage, WildcardAction, EffectAllow},
		{RoleSysManager, DomainSys, ResourcePresence, ActionRead, EffectAllow},

		{RoleSysAgent, DomainSys, ResourcePresence, ActionRead, EffectAllow},
		{RoleSysAgent, DomainSys, ResourceConversation, ActionUpdate, EffectAllow},
	}

	// Every role may read, create and delete its own conversations and messages.
	for _, role := range []Role{RoleSysAgent, RoleSysClient} {
		policies = append(policies,
			PermissionPolicy{role, DomainSys, ResourceConversation, ActionCreate, EffectAllow},
			PermissionPolicy{role, DomainSys, ResourceConversation, ActionRead, EffectAllow},
			PermissionPolicy{role, DomainSys, ResourceConversation, ActionList, EffectAllow},
			PermissionPolicy{role, DomainSys, ResourceConversation, ActionDelete, EffectAllow},
			PermissionPolicy{role, DomainSys, ResourceMessage, ActionCreate, EffectAllow},
			PermissionPolicy{role, DomainSys, ResourceMessage, ActionRead, EffectAllow},
			PermissionPolicy{role, DomainSys, ResourceMessage, ActionUpdate, EffectAllow},
		)
	}
	return policies
}

// SeedDefaultPolicies sets up the baseline RBAC policies for the system.
func SeedDefaultPolicies(ctx context.Context, auth IAuthorization) error {
	logger := slog.Default()

	allPolicies := DefaultPolicies()
	for _, p := range allPolicies {
		added, err := auth.AddPermission(ctx, p.Subject, p.Domain, p.Object, p.Action, p.Effect)
		if err != nil {
			logger.Error("failed to add policy", "policy", p, "error", err)
			return err
		}
		if added {
			logger.Debug("added policy", "role", p.Subject, "domain", p.Domain, "resource", p.Object, "action", p.Action)
		}
	}

	logger.Info("seeded default RBAC policies", "count", len(allPolicies))
	return nil
}

// AssignUserRole grants the Casbin role matching a users.role value in the sys domain.
func AssignUserRole(ctx context.Context, auth IAuthorization, userID, userRole string) error {
	role, ok := RoleForUserRole(userRole)
	if !ok {
		return ErrInvalidArgs
	}
	_, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(userID), role, DomainSys)
	return err
}

// RemoveSystemRole removes a system-level role from a user.
func RemoveSystemRole(ctx context.Context, auth IAuthorization, userID string, role Role) error {
	subject := GroupSubject(userID)
	_, err := auth.RemoveRoleForUserInDomain(ctx, subject, role, DomainSys)
	return err
}
