package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/autodealer/dealer_backend/config"
	"github.com/autodealer/dealer_backend/internal/events"
	"github.com/autodealer/dealer_backend/internal/realtime"
	"github.com/autodealer/dealer_backend/internal/repo"
	"github.com/autodealer/dealer_backend/internal/service/negotiation"
	"github.com/autodealer/dealer_backend/pkg/email"
)

const workerTimeout = 30 * time.Second

// WorkerModule registers all NATS event workers.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc       fx.Lifecycle
	Cfg      *config.Config
	NC       *nats.Conn `optional:"true"`
	DB       *repo.Client
	Registry realtime.Registry
	Email    *email.Client
	Bridge   negotiation.Service
}

func RegisterWorkers(p WorkerParams) {
	if p.NC == nil {
		slog.Info("workers: NATS not configured, domain event workers disabled")
		return
	}

	w := newMailWorker(p.DB, p.Registry, p.Email, p.Bridge.AIUserID(), p.Cfg)
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			startMessageMailWorker(p.NC, w)
			startNegotiationMailWorker(p.NC, w)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// Drain handled by ProvideNatsClient
			return nil
		},
	})
}

// ---------------------------------------------------------------------------
// message_mail_worker
// ---------------------------------------------------------------------------

func startMessageMailWorker(nc *nats.Conn, w *mailWorker) {
	_, err := nc.Subscribe(events.Wildcard(events.SubjectMessageNew), func(msg *nats.Msg) {
		convID, err := events.ParseConversationID(events.SubjectMessageNew, msg.Subject)
		if err != nil {
			return
		}
		msgID, err := uuid.Parse(strings.TrimSpace(string(msg.Data)))
		if err != nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
		defer cancel()

		if err := w.messageCreated(ctx, convID, msgID); err != nil {
			slog.Warn("message_mail_worker: failed", "conversation_id", convID, "message_id", msgID, "err", err)
		}
	})
	if err != nil {
		slog.Error("message_mail_worker: subscribe message.new failed", "err", err)
		return
	}
	slog.Info("message_mail_worker: started")
}

// ---------------------------------------------------------------------------
// negotiation_mail_worker
// ---------------------------------------------------------------------------

func startNegotiationMailWorker(nc *nats.Conn, w *mailWorker) {
	_, err := nc.Subscribe(events.Wildcard(events.SubjectNegotiationClosed), func(msg *nats.Msg) {
		convID, err := events.ParseConversationID(events.SubjectNegotiationClosed, msg.Subject)
		if err != nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
		defer cancel()

		if err := w.negotiationClosed(ctx, convID); err != nil {
			slog.Warn("negotiation_mail_worker: failed", "conversation_id", convID, "err", err)
		}
	})
	if err != nil {
		slog.Error("negotiation_mail_worker: subscribe negotiation.closed failed", "err", err)
		return
	}
	slog.Info("negotiation_mail_worker: started")
}

// ---------------------------------------------------------------------------
// mail worker
// ---------------------------------------------------------------------------

type mailer interface {
	Send(ctx context.Context, m email.Message) error
}

type mailWorker struct {
	convs interface {
		Get(ctx context.Context, id uuid.UUID) (*repo.Conversation, error)
	}
	msgs interface {
		Get(ctx context.Context, id uuid.UUID) (*repo.Message, error)
		LatestWithOffer(ctx context.Context, conversationID uuid.UUID) (*repo.Message, error)
	}
	users interface {
		List(ctx context.Context, ids []uuid.UUID) ([]*repo.User, error)
	}
	vehicles interface {
		Get(ctx context.Context, id uuid.UUID) (*repo.Vehicle, error)
	}
	presence realtime.Registry
	mail     mailer

	aiUserID uuid.UUID
	appName  string
	baseURL  string
}

func newMailWorker(db *repo.Client, presence realtime.Registry, mail *email.Client, aiUserID uuid.UUID, cfg *config.Config) *mailWorker {
	return &mailWorker{
		convs:    db.Conversation,
		msgs:     db.Message,
		users:    db.User,
		vehicles: db.Vehicle,
		presence: presence,
		mail:     mail,
		aiUserID: aiUserID,
		appName:  cfg.Email.AppName,
		baseURL:  linkBase(cfg),
	}
}

// messageCreated emails every human participant other than the sender who has no live socket.
func (w *mailWorker) messageCreated(ctx context.Context, convID, msgID uuid.UUID) error {
	conv, err := w.convs.Get(ctx, convID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	msg, err := w.msgs.Get(ctx, msgID)
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}

	ids := []uuid.UUID{msg.SenderID}
	var recipients []uuid.UUID
	for _, id := range conv.Members() {
		if id == msg.SenderID || id == w.aiUserID {
			continue
		}
		if w.presence != nil && w.presence.IsOnline(ctx, id) {
			continue
		}
		recipients = append(recipients, id)
		ids = append(ids, id)
	}
	if len(recipients) == 0 {
		return nil
	}

	users, err := w.userIndex(ctx, ids)
	if err != nil {
		return err
	}
	senderName := ""
	if u := users[msg.SenderID]; u != nil {
		senderName = u.Name
	} else if msg.SenderID == w.aiUserID {
		senderName = w.appName + " negotiator"
	}

	for _, id := range recipients {
		u := users[id]
		if u == nil || u.Email == "" {
			continue
		}
		m := email.BuildNewMessageEmail(email.NewMessageEmailData{
			RecipientName:   u.Name,
			Email:           u.Email,
			SenderName:      senderName,
			Content:         msg.Content,
			ConversationURL: email.ConversationURL(w.baseURL, conv.ID.String()),
			AppName:         w.appName,
		})
		if err := w.mail.Send(ctx, m); err != nil {
			return fmt.Errorf("send to %s: %w", id, err)
		}
	}
	return nil
}

// negotiationClosed emails the client and the agent with the outcome and the last offer.
func (w *mailWorker) negotiationClosed(ctx context.Context, convID uuid.UUID) error {
	conv, err := w.convs.Get(ctx, convID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if conv.NegotiationStatus == nil {
		return nil
	}

	data := email.NegotiationOutcomeEmailData{
		Outcome:         *conv.NegotiationStatus,
		ConversationURL: email.ConversationURL(w.baseURL, conv.ID.String()),
		AppName:         w.appName,
	}
	if conv.VehicleID != nil {
		v, err := w.vehicles.Get(ctx, *conv.VehicleID)
		switch {
		case err == nil:
			data.VehicleTitle = fmt.Sprintf("%d %s %s", v.Year, v.Make, v.Model)
		case !repo.IsNotFound(err):
			return fmt.Errorf("load vehicle: %w", err)
		}
	}
	last, err := w.msgs.LatestWithOffer(ctx, conv.ID)
	switch {
	case err == nil:
		if md := last.Metadata; md != nil && md.Offer != nil {
			price := md.Offer.Price
			data.FinalPrice = &price
		}
	case !repo.IsNotFound(err):
		return fmt.Errorf("load last offer: %w", err)
	}

	users, err := w.userIndex(ctx, []uuid.UUID{conv.ClientID, conv.AgentID})
	if err != nil {
		return err
	}
	for _, id := range []uuid.UUID{conv.ClientID, conv.AgentID} {
		u := users[id]
		if u == nil || u.Email == "" || id == w.aiUserID {
			continue
		}
		data.RecipientName = u.Name
		data.Email = u.Email
		if err := w.mail.Send(ctx, email.BuildNegotiationOutcomeEmail(data)); err != nil {
			return fmt.Errorf("send to %s: %w", id, err)
		}
	}
	return nil
}

func (w *mailWorker) userIndex(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*repo.User, error) {
	users, err := w.users.List(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	out := make(map[uuid.UUID]*repo.User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// linkBase falls back to the public server domain when email.base_url is unset.
func linkBase(cfg *config.Config) string {
	if cfg.Email.BaseURL != "" {
		return cfg.Email.BaseURL
	}
	if cfg.Server.Domain == "" {
		return ""
	}
	return "https://" + cfg.Server.Domain
}
