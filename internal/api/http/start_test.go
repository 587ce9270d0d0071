package http

import (
	"testing"
	"time"

	"go.uber.org/fx"

	"github.com/autodealer/dealer_backend/config"
)

func TestOptionsGraphResolves(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Port = 0
	cfg.Server.Environment = "test"

	if err := fx.ValidateApp(Options(cfg, time.Second)); err != nil {
		t.Fatalf("dependency graph: %v", err)
	}
}
