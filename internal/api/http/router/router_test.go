package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"

	"github.com/autodealer/dealer_backend/config"
)

func TestSystemRoutes(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.Enabled = true
	cfg.Observability.Metrics.Enabled = true

	app := fiber.New()
	(&Router{p: Params{Cfg: cfg}}).registerSystemRoutes(app)

	for _, path := range []string{
		healthcheck.LivenessEndpoint,
		healthcheck.StartupEndpoint,
		healthcheck.ReadinessEndpoint,
		"/metrics",
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestMetricsRouteDisabled(t *testing.T) {
	app := fiber.New()
	(&Router{p: Params{Cfg: &config.Config{}}}).registerSystemRoutes(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
