// Package pasetotoken verifies the v4 PASETO tokens the identity provider
// issues to clients and staff.
package pasetotoken

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/config"
)

const (
	claimType    = "typ"
	claimUserID  = "uid"
	claimRole    = "role"
	claimSession = "sid"
)

type Config struct {
	Mode     Mode
	Issuer   string
	Audience string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Manager struct {
	cfg    Config
	keys   Keys
	parser paseto.Parser
}

func New(cfg Config, keys Keys) (*Manager, error) {
	switch {
	case cfg.Mode != keys.Mode:
		return nil, ErrConfig{Msg: "config mode and key mode differ"}
	case cfg.Issuer == "":
		return nil, ErrConfig{Msg: "issuer is required"}
	case cfg.Audience == "":
		return nil, ErrConfig{Msg: "audience is required"}
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}

	p := paseto.NewParser()
	p.AddRule(paseto.IssuedBy(cfg.Issuer))
	p.AddRule(paseto.ForAudience(cfg.Audience))
	p.AddRule(paseto.NotExpired())

	return &Manager{cfg: cfg, keys: keys, parser: p}, nil
}

// NewFromConfig builds a Manager from authentication.paseto.
func NewFromConfig(cfg *config.Config) (*Manager, error) {
	p := cfg.Authentication.Paseto
	keys, err := KeysFromConfig(p)
	if err != nil {
		return nil, err
	}
	return New(Config{
		Mode:       Mode(p.Mode),
		Issuer:     p.Issuer,
		Audience:   p.Audience,
		AccessTTL:  time.Duration(p.AccessTTLMinutes) * time.Minute,
		RefreshTTL: time.Duration(p.RefreshTTLDays) * 24 * time.Hour,
	}, keys)
}

// Verify checks the signature, issuer, audience and expiry of tokenStr.
// Callers decide which token types they accept.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	tok, err := m.parse(tokenStr)
	if err != nil {
		return nil, ErrInvalidToken{Err: err}
	}
	claims, err := claimsFrom(tok)
	if err != nil {
		return nil, ErrInvalidToken{Err: err}
	}
	return claims, nil
}

func (m *Manager) parse(tokenStr string) (*paseto.Token, error) {
	switch m.cfg.Mode {
	case ModeLocal:
		if m.keys.Symmetric == nil {
			return nil, ErrConfig{Msg: "missing symmetric key"}
		}
		return m.parser.ParseV4Local(*m.keys.Symmetric, tokenStr, nil)
	case ModePublic:
		if m.keys.Public == nil {
			return nil, ErrConfig{Msg: "missing public key"}
		}
		return m.parser.ParseV4Public(*m.keys.Public, tokenStr, nil)
	default:
		return nil, ErrConfig{Msg: "unknown mode"}
	}
}

func claimsFrom(tok *paseto.Token) (*Claims, error) {
	out := &Claims{}
	var err error

	if out.TokenID, err = tok.GetJti(); err != nil {
		return nil, err
	}
	if out.IssuedAt, err = tok.GetIssuedAt(); err != nil {
		return nil, err
	}
	if out.ExpiresAt, err = tok.GetExpiration(); err != nil {
		return nil, err
	}

	typ, err := tok.GetString(claimType)
	if err != nil {
		return nil, err
	}
	out.Type = TokenType(typ)

	if out.UserID, err = uuidClaim(tok, claimUserID); err != nil {
		return nil, err
	}
	if out.Role, err = tok.GetString(claimRole); err != nil {
		return nil, err
	}

	if _, err := tok.GetString(claimSession); err == nil {
		sid, err := uuidClaim(tok, claimSession)
		if err != nil {
			return nil, err
		}
		out.SessionID = &sid
	}
	return out, nil
}

func uuidClaim(tok *paseto.Token, key string) (uuid.UUID, error) {
	s, err := tok.GetString(key)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(s)
}

// IssueAccess mints an access token. Production tokens come from the
// identity provider; this serves the issue-token command and tests.
func (m *Manager) IssueAccess(userID uuid.UUID, role string, sessionID *uuid.UUID) (string, error) {
	return m.issue(TokenTypeAccess, userID, role, sessionID, m.cfg.AccessTTL)
}

func (m *Manager) IssueRefresh(userID uuid.UUID, role string, sessionID *uuid.UUID) (string, error) {
	return m.issue(TokenTypeRefresh, userID, role, sessionID, m.cfg.RefreshTTL)
}

func (m *Manager) issue(tt TokenType, userID uuid.UUID, role string, sessionID *uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()

	tok := paseto.NewToken()
	tok.SetIssuer(m.cfg.Issuer)
	tok.SetAudience(m.cfg.Audience)
	tok.SetJti(randHex(16))
	tok.SetSubject(userID.String())
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(ttl))

	tok.SetString(claimType, string(tt))
	tok.SetString(claimUserID, userID.String())
	tok.SetString(claimRole, role)
	if sessionID != nil {
		tok.SetString(claimSession, sessionID.String())
	}

	switch m.cfg.Mode {
	case ModeLocal:
		if m.keys.Symmetric == nil {
			return "", ErrConfig{Msg: "missing symmetric key"}
		}
		return tok.V4Encrypt(*m.keys.Symmetric, nil), nil
	case ModePublic:
		if m.keys.Secret == nil {
			return "", ErrConfig{Msg: "signing requires secret_key_hex"}
		}
		return tok.V4Sign(*m.keys.Secret, nil), nil
	default:
		return "", ErrConfig{Msg: "unknown mode"}
	}
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
