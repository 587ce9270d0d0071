// Package negotiator is the HTTP client of the external negotiation agent.
package negotiator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3/client"
)

var (
	ErrUpstreamStatus = errors.New("negotiator: unexpected status")
	ErrEmptyReply     = errors.New("negotiator: empty agent_message")
	ErrNotConfigured  = errors.New("negotiator: base url is not configured")
)

// Unconfigured stands in for the agent when no base url is set. Every turn
// fails, so AI conversations receive the fallback reply.
type Unconfigured struct{}

func (Unconfigured) Negotiate(ctx context.Context, req Request) (*Response, error) {
	return nil, ErrNotConfigured
}

type Config struct {
	BaseURL string
	Path    string
	APIKey  string
	Timeout time.Duration
}

// Client posts negotiation turns to the agent service.
type Client struct {
	http    *client.Client
	url     string
	apiKey  string
	timeout time.Duration
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrNotConfigured
	}
	path := cfg.Path
	if path == "" {
		path = "/negotiate"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		http:    client.New(),
		url:     base + path,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
	}, nil
}

// Negotiate sends req and decodes the agent reply. The call is bounded by the
// configured timeout in addition to ctx.
func (c *Client) Negotiate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if req.ConversationHistory == nil {
		req.ConversationHistory = []Turn{}
	}

	r := c.http.R().
		SetContext(ctx).
		SetTimeout(c.timeout).
		SetHeader("Accept", "application/json").
		SetJSON(req)
	defer client.ReleaseRequest(r)
	if c.apiKey != "" {
		r.SetHeader("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := r.Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("negotiator: post: %w", err)
	}
	defer resp.Close()

	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, code)
	}

	var out Response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("negotiator: decode: %w", err)
	}
	if strings.TrimSpace(out.AgentMessage) == "" {
		return nil, ErrEmptyReply
	}
	return &out, nil
}
