package redis

import (
	"context"
	"testing"
	"time"

	"github.com/autodealer/dealer_backend/config"
)

func TestOptionsDefaults(t *testing.T) {
	opts := Options(config.RedisConfig{Addr: "cache:6379"})
	if opts.PoolSize != defaultPoolSize || opts.MinIdleConns != defaultMinIdleConns {
		t.Errorf("pool = %d/%d", opts.PoolSize, opts.MinIdleConns)
	}
	if opts.DialTimeout != defaultDialTimeout || opts.ReadTimeout != defaultIOTimeout || opts.WriteTimeout != defaultIOTimeout {
		t.Errorf("timeouts = %v/%v/%v", opts.DialTimeout, opts.ReadTimeout, opts.WriteTimeout)
	}
}

func TestOptionsOverrides(t *testing.T) {
	opts := Options(config.RedisConfig{Addr: "cache:6379", DB: 3, PoolSize: 40, ReadTimeoutSeconds: 9})
	if opts.DB != 3 || opts.PoolSize != 40 {
		t.Errorf("db/pool = %d/%d", opts.DB, opts.PoolSize)
	}
	if opts.ReadTimeout != 9*time.Second {
		t.Errorf("read timeout = %v", opts.ReadTimeout)
	}
}

func TestNewRequiresAddr(t *testing.T) {
	if _, err := New(context.Background(), config.RedisConfig{}); err == nil {
		t.Fatal("expected error for empty addr")
	}
}
