package app

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/autodealer/dealer_backend/config"
	"github.com/autodealer/dealer_backend/internal/events"
	"github.com/autodealer/dealer_backend/internal/realtime"
	"github.com/autodealer/dealer_backend/internal/repo"
	"github.com/autodealer/dealer_backend/internal/service/conversation"
	"github.com/autodealer/dealer_backend/internal/service/negotiation"
	"github.com/autodealer/dealer_backend/pkg/constants"
	pasetotoken "github.com/autodealer/dealer_backend/pkg/paseto"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideHub,
		ProvideRegistry,
		ProvideBus,
		ProvideFanout,
		ProvideEventPublisher,
		ProvideNegotiationService,
		ProvideConversationService,
		ProvidePasetoManager,
	),
)

func ProvideHub(cfg *config.Config) *realtime.Hub {
	return realtime.NewHub(cfg.Realtime.OutboundBuffer)
}

func ProvideRegistry(cfg *config.Config, rdb *redis.Client) realtime.Registry {
	if cfg.Realtime.Presence == "memory" {
		return realtime.NewMemoryRegistry()
	}
	return realtime.NewRedisRegistry(rdb)
}

// ProvideBus selects the cross-instance transport and feeds it into the local hub.
func ProvideBus(lc fx.Lifecycle, cfg *config.Config, nc *nats.Conn, rdb *redis.Client, hub *realtime.Hub) (realtime.Bus, error) {
	bus, err := realtime.NewBus(cfg.Realtime.Bus, nc, rdb)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			slog.Info("realtime bus subscribing", "bus", cfg.Realtime.Bus)
			return bus.Subscribe(ctx, hub.Deliver)
		},
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing realtime bus")
			return bus.Close()
		},
	})
	return bus, nil
}

func ProvideFanout(bus realtime.Bus, registry realtime.Registry) *realtime.Fanout {
	return realtime.NewFanout(bus, registry)
}

func ProvideEventPublisher(nc *nats.Conn) *events.Publisher {
	return events.NewPublisher(nc)
}

func ProvideNegotiationService(cfg *config.Config, db *repo.Client, upstream negotiation.Upstream) (negotiation.Service, error) {
	raw := cfg.Negotiation.AIUserID
	if raw == "" {
		raw = constants.DefaultAIUserID
	}
	aiUserID, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return negotiation.New(negotiation.Config{
		AIUserID:      aiUserID,
		HistoryWindow: cfg.Negotiation.HistoryWindow,
	}, db.Conversation, db.Message, db.Vehicle, upstream), nil
}

func ProvideConversationService(
	db *repo.Client,
	bridge negotiation.Service,
	fanout *realtime.Fanout,
	publisher *events.Publisher,
) conversation.Service {
	return conversation.New(conversation.StoresFromClient(db), bridge, fanout, publisher)
}

func ProvidePasetoManager(cfg *config.Config) (*pasetotoken.Manager, error) {
	return pasetotoken.NewFromConfig(cfg)
}
