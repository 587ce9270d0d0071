package logs

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/grafana/loki-client-go/loki"
	promconfig "github.com/prometheus/common/config"
	slogloki "github.com/samber/slog-loki/v3"

	"github.com/autodealer/dealer_backend/config"
)

var (
	lokiMu      sync.Mutex
	lokiClients []*loki.Client
)

func newLokiHandler(cfg *config.Config, level slog.Level) (slog.Handler, error) {
	lc := cfg.Logging.Output.Loki

	endpoint := strings.TrimRight(lc.Endpoint, "/") + "/loki/api/v1/push"
	clientCfg, err := loki.NewDefaultConfig(endpoint)
	if err != nil {
		return nil, fmt.Errorf("loki config: %w", err)
	}
	clientCfg.TenantID = lc.TenantID
	if lc.Username != "" {
		clientCfg.Client.BasicAuth = &promconfig.BasicAuth{
			Username: lc.Username,
			Password: promconfig.Secret(lc.Password),
		}
	}

	client, err := loki.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("loki client: %w", err)
	}

	lokiMu.Lock()
	lokiClients = append(lokiClients, client)
	lokiMu.Unlock()

	return slogloki.Option{Level: level, Client: client}.NewLokiHandler(), nil
}

// Flush stops every loki client, pushing buffered batches. Call it on shutdown.
func Flush() {
	lokiMu.Lock()
	defer lokiMu.Unlock()

	for _, c := range lokiClients {
		c.Stop()
	}
	lokiClients = nil
}
