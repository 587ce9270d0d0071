package socket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/internal/realtime"
	"github.com/autodealer/dealer_backend/internal/service/conversation"
	"github.com/autodealer/dealer_backend/pkg/authorize"
	"github.com/autodealer/dealer_backend/pkg/observability"
	pasetotoken "github.com/autodealer/dealer_backend/pkg/paseto"
	"github.com/autodealer/dealer_backend/pkg/reqctx"
)

// Client to server events.
const (
	EventJoinConversation = "join_conversation"
	EventSendMessage      = "send_message"
	EventTyping           = "typing"
	EventStopTyping       = "stop_typing"
	EventMarkRead         = "mark_read"
)

var (
	errBadPayload   = errors.New("invalid payload")
	errUnknownEvent = errors.New("unknown event")
	errNotInRoom    = errors.New("join the conversation first")
	errInternal     = errors.New("internal error")
	errNotPermitted = errors.New("forbidden")
)

// Conn is the part of *websocket.Conn a session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type session struct {
	g      *Gateway
	conn   Conn
	claims *pasetotoken.Claims
	client *realtime.Client
}

// Serve runs a connection until the peer goes away. The caller has already
// verified claims.
func (g *Gateway) Serve(ctx context.Context, conn Conn, claims *pasetotoken.Claims) {
	ctx = reqctx.WithClaims(ctx, claims)
	userID := claims.UserID

	s := &session{
		g:      g,
		conn:   conn,
		claims: claims,
		client: g.hub.NewClient(userID, claims.Role),
	}
	g.hub.Join(s.client, realtime.UserRoom(userID))
	g.hub.Join(s.client, realtime.PresenceRoom)
	g.fanout.Connected(ctx, userID)
	observability.Domain().SocketOpened(ctx)

	slog.InfoContext(ctx, "socket connected", "user_id", userID, "client_id", s.client.ID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop()
	}()

	s.readLoop(ctx)

	g.hub.Remove(s.client)
	<-done
	g.fanout.Disconnected(ctx, userID)
	observability.Domain().SocketClosed(ctx)
	_ = conn.Close()

	slog.InfoContext(ctx, "socket disconnected", "user_id", userID, "client_id", s.client.ID)
}

// writeLoop is the only writer on the connection.
func (s *session) writeLoop() {
	ticker := time.NewTicker(s.g.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-s.client.Outbound():
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.g.opts.WriteTimeout))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.Debug("socket write failed", "client_id", s.client.ID, "error", err)
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.g.opts.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (s *session) readLoop(ctx context.Context) {
	pongWait := 2 * s.g.opts.PingInterval

	s.conn.SetReadLimit(s.g.opts.MaxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.DebugContext(ctx, "socket read failed", "client_id", s.client.ID, "error", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.dispatch(ctx, data)
	}
}

type conversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

type sendMessagePayload struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

type errorPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

func (s *session) dispatch(ctx context.Context, data []byte) {
	var in realtime.Frame
	if err := json.Unmarshal(data, &in); err != nil || in.Event == "" {
		s.fail(ctx, "", errBadPayload)
		return
	}

	var err error
	switch in.Event {
	case EventJoinConversation:
		err = s.join(ctx, in.Data)
	case EventSendMessage:
		err = s.send(ctx, in.Data)
	case EventTyping:
		err = s.typing(ctx, in.Data, true)
	case EventStopTyping:
		err = s.typing(ctx, in.Data, false)
	case EventMarkRead:
		err = s.markRead(ctx, in.Data)
	default:
		err = errUnknownEvent
	}
	if err != nil {
		s.fail(ctx, in.Event, err)
	}
}

func decodeConversationID(raw json.RawMessage) (uuid.UUID, error) {
	var p conversationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return uuid.Nil, errBadPayload
	}
	id, err := uuid.Parse(strings.TrimSpace(p.ConversationID))
	if err != nil {
		return uuid.Nil, errBadPayload
	}
	return id, nil
}

func (s *session) allow(ctx context.Context, res authorize.Resource, act authorize.Action) error {
	return authorize.EnforceAny(ctx, s.g.auth, authorize.DomainSys, res, act)
}

// join adds the connection to a conversation room after the gateway's access check.
func (s *session) join(ctx context.Context, raw json.RawMessage) error {
	convID, err := decodeConversationID(raw)
	if err != nil {
		return err
	}
	if err := s.allow(ctx, authorize.ResourceConversation, authorize.ActionRead); err != nil {
		return err
	}
	if _, err := s.g.convs.Get(ctx, convID, s.claims.UserID); err != nil {
		return err
	}

	s.g.hub.Join(s.client, realtime.ConversationRoom(convID))
	s.g.fanout.UserJoined(ctx, convID, s.claims.UserID)
	return nil
}

// send appends a message. The sender joins the room so the resulting
// new_message frames reach it.
func (s *session) send(ctx context.Context, raw json.RawMessage) error {
	var p sendMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return errBadPayload
	}
	convID, err := uuid.Parse(strings.TrimSpace(p.ConversationID))
	if err != nil {
		return errBadPayload
	}
	if err := s.allow(ctx, authorize.ResourceMessage, authorize.ActionCreate); err != nil {
		return err
	}

	if _, err := s.g.convs.Get(ctx, convID, s.claims.UserID); err != nil {
		return err
	}
	s.g.hub.Join(s.client, realtime.ConversationRoom(convID))

	_, err = s.g.convs.Append(ctx, convID, s.claims.UserID, p.Content)
	return err
}

func (s *session) typing(ctx context.Context, raw json.RawMessage, typing bool) error {
	convID, err := decodeConversationID(raw)
	if err != nil {
		return err
	}
	if !s.g.hub.InRoom(s.client, realtime.ConversationRoom(convID)) {
		return errNotInRoom
	}
	s.g.fanout.Typing(ctx, convID, s.claims.UserID, typing)
	return nil
}

func (s *session) markRead(ctx context.Context, raw json.RawMessage) error {
	convID, err := decodeConversationID(raw)
	if err != nil {
		return err
	}
	if err := s.allow(ctx, authorize.ResourceMessage, authorize.ActionUpdate); err != nil {
		return err
	}
	_, err = s.g.convs.MarkRead(ctx, convID, s.claims.UserID)
	return err
}

// fail reports a rejected action to this connection only.
func (s *session) fail(ctx context.Context, event string, err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, conversation.ErrValidation),
		errors.Is(err, conversation.ErrNotFound),
		errors.Is(err, errBadPayload),
		errors.Is(err, errUnknownEvent),
		errors.Is(err, errNotInRoom):
	case errors.Is(err, authorize.ErrForbidden), errors.Is(err, authorize.ErrNoSubjectInContext):
		msg = errNotPermitted.Error()
	default:
		slog.ErrorContext(ctx, "socket event failed", "event", event, "user_id", s.claims.UserID, "error", err)
		msg = errInternal.Error()
	}

	frame, encErr := realtime.EncodeFrame(realtime.EventError, errorPayload{Event: event, Message: msg})
	if encErr != nil {
		return
	}
	if !s.g.hub.Send(s.client, frame) {
		slog.WarnContext(ctx, "socket error frame dropped", "client_id", s.client.ID, "event", event)
	}
}
