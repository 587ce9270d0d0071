package constants

const (
	ConfigName   = "config"
	ConfigFormat = "yaml"

	EnvPrefix = "DEALER"

	ServiceName = "dealer_backend"
)

// User roles as stored in users.role.
const (
	UserRoleClient  = "client"
	UserRoleAgent   = "agent"
	UserRoleManager = "manager"
	UserRoleAdmin   = "admin"
)

// DefaultAIUserID is the sender id of AI negotiation messages unless
// negotiation.ai_user_id overrides it.
const DefaultAIUserID = "00000000-0000-7000-8000-00000000a1a1"
