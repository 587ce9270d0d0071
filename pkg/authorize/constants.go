package authorize

import (
	"fmt"
	"regexp"

	"github.com/autodealer/dealer_backend/pkg/constants"
)

type Action string
type Resource string
type Role string
type Domain string

// ----------------------------
// Actions
// ----------------------------

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"

	// Power actions
	ActionManage Action = "manage" // CRUD + list
)

const (
	WildcardAction Action = "*"
)

var KnownActions = map[Action]struct{}{
	ActionCreate: {}, ActionRead: {}, ActionUpdate: {}, ActionDelete: {}, ActionList: {},
	ActionManage: {},
}

// ----------------------------
// Resources
// ----------------------------

const (
	WildcardResource Resource = "*"

	// Communication
	ResourceConversation Resource = "conversation"
	ResourceMessage      Resource = "message"
	ResourcePresence     Resource = "presence"

	// System / platform admin
	ResourceSystem Resource = "system"
	ResourceRBAC   Resource = "rbac"
)

var KnownResources = map[Resource]struct{}{
	ResourceConversation: {}, ResourceMessage: {}, ResourcePresence: {},
	ResourceSystem: {}, ResourceRBAC: {},
}

// ----------------------------
// Roles
// ----------------------------
//
// These are the "policy subjects" we assign to users via grouping policies.
// Token role claims map onto them through RoleForUserRole.

const (
	WildcardRole Role = "*"

	RoleSysAdmin   Role = "role:sys:admin"
	RoleSysManager Role = "role:sys:manager"
	RoleSysAgent   Role = "role:sys:agent"
	RoleSysClient  Role = "role:sys:client"
)

var KnownRoles = map[Role]struct{}{
	RoleSysAdmin:   {},
	RoleSysManager: {},
	RoleSysAgent:   {},
	RoleSysClient:  {},
}

// RoleDisplayNames are shown in the admin tooling.
var RoleDisplayNames = map[Role]string{
	RoleSysAdmin:   "Administrator",
	RoleSysManager: "Sales manager",
	RoleSysAgent:   "Sales agent",
	RoleSysClient:  "Client",
}

// UserRoleToRBACRole maps users.role values to Casbin roles.
var UserRoleToRBACRole = map[string]Role{
	constants.UserRoleAdmin:   RoleSysAdmin,
	constants.UserRoleManager: RoleSysManager,
	constants.UserRoleAgent:   RoleSysAgent,
	constants.UserRoleClient:  RoleSysClient,
}

// RoleForUserRole returns the Casbin role for a users.role value.
func RoleForUserRole(userRole string) (Role, bool) {
	r, ok := UserRoleToRBACRole[userRole]
	return r, ok
}

// ----------------------------
// Domains
// ----------------------------

const (
	DomainSys Domain = "sys"
)

// Domain prefixes (for exact domains we generate per entity)
const (
	DomainPrefixAgency Domain = "agency:"
	DomainPrefixUser   Domain = "user:"
)

const (
	WildcardDomain Domain = "*"
)

var (
	reUUID = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)
)

// Domain builders (typed, safe)
func AgencyDomain(agencyID string) Domain {
	return Domain(fmt.Sprintf("%s%s", DomainPrefixAgency, agencyID))
}

func UserDomain(userID string) Domain {
	return Domain(fmt.Sprintf("%s%s", DomainPrefixUser, userID))
}

// IsValidDomain checks whether d is a recognised domain string.
func IsValidDomain(d Domain) bool {
	if d == DomainSys || d == WildcardDomain {
		return true
	}

	s := string(d)
	switch {
	case len(s) > len(DomainPrefixAgency) && s[:len(DomainPrefixAgency)] == string(DomainPrefixAgency):
		return reUUID.MatchString(s[len(DomainPrefixAgency):])
	case len(s) > len(DomainPrefixUser) && s[:len(DomainPrefixUser)] == string(DomainPrefixUser):
		return reUUID.MatchString(s[len(DomainPrefixUser):])
	default:
		return false
	}
}

// ----------------------------
// Casbin tuple helpers
// ----------------------------

type PolicyEffect string

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

// GroupSubject is the g.sub in Casbin: a concrete principal id (user_id) or a role name.
type GroupSubject string

// Grouping rows: g, user_id, role, domain
type GroupingPolicy struct {
	Subject GroupSubject
	Role    Role
	Domain  Domain
}

// Permission rows: p, role, domain, resource, action, eft
type PermissionPolicy struct {
	Subject Role
	Domain  Domain
	Object  Resource
	Action  Action
	Effect  PolicyEffect
}
