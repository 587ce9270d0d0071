// Package realtime delivers conversation events to connected sockets. It is a
// notification overlay: persisted state stays authoritative and dropped
// events are recovered by re-listing.
package realtime

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Server to client events.
const (
	EventNewMessage             = "new_message"
	EventNewMessageNotification = "new_message_notification"
	EventUserJoined             = "user_joined"
	EventUserOnline             = "user_online"
	EventUserOffline            = "user_offline"
	EventUserTyping             = "user_typing"
	EventUserStopTyping         = "user_stop_typing"
	EventMessagesRead           = "messages_read"
	EventAIMetricsUpdate        = "ai_metrics_update"
	EventError                  = "error"
)

// PresenceRoom is joined by every connection.
const PresenceRoom = "presence"

func UserRoom(id uuid.UUID) string         { return "user:" + id.String() }
func ConversationRoom(id uuid.UUID) string { return "conversation:" + id.String() }

// Frame is the JSON shape of every socket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeFrame marshals an outbound frame.
func EncodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// Envelope routes an encoded frame to a room, optionally skipping every
// connection of one user.
type Envelope struct {
	Room       string          `json:"room"`
	ExceptUser *uuid.UUID      `json:"except_user,omitempty"`
	Frame      json.RawMessage `json:"frame"`
}
