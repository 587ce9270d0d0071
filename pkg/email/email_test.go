package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/autodealer/dealer_backend/config"
)

func TestBuildNewMessageEmail(t *testing.T) {
	m := BuildNewMessageEmail(NewMessageEmailData{
		RecipientName:   "Dana",
		Email:           "dana@example.com",
		SenderName:      "Sam <script>",
		Content:         strings.Repeat("x", previewLimit+10),
		ConversationURL: ConversationURL("https://dealer.example.com/", "c-1"),
	})

	if len(m.To) != 1 || m.To[0] != "dana@example.com" {
		t.Errorf("To = %v", m.To)
	}
	if !strings.Contains(m.TextBody, "https://dealer.example.com/conversations/c-1") {
		t.Errorf("text body missing link: %s", m.TextBody)
	}
	if strings.Contains(m.HTMLBody, "<script>") {
		t.Error("html body must escape user content")
	}
	if !strings.Contains(m.TextBody, strings.Repeat("x", previewLimit)+"…") {
		t.Error("long content should be truncated")
	}
	if _, err := buildMessage("noreply@example.com", m); err != nil {
		t.Errorf("buildMessage: %v", err)
	}
}

func TestBuildNegotiationOutcomeEmail(t *testing.T) {
	price := 128000.0
	tests := []struct {
		outcome string
		subject string
	}{
		{"accepted", "Deal reached on 2022 Toyota Camry"},
		{"rejected", "Negotiation closed for 2022 Toyota Camry"},
	}
	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			m := BuildNegotiationOutcomeEmail(NegotiationOutcomeEmailData{
				Email:        "a@example.com",
				Outcome:      tt.outcome,
				VehicleTitle: "2022 Toyota Camry",
				FinalPrice:   &price,
			})
			if m.Subject != tt.subject {
				t.Errorf("Subject = %q, want %q", m.Subject, tt.subject)
			}
			if !strings.Contains(m.TextBody, "$128000.00") {
				t.Errorf("missing price in %s", m.TextBody)
			}
		})
	}
}

func TestBuildMessageValidation(t *testing.T) {
	valid := Message{To: []string{"a@example.com"}, Subject: "s", TextBody: "b"}

	tests := []struct {
		name string
		from string
		msg  Message
	}{
		{"missing from", "", valid},
		{"blank recipients", "x@example.com", Message{To: []string{" "}, Subject: "s", TextBody: "b"}},
		{"missing subject", "x@example.com", Message{To: valid.To, TextBody: "b"}},
		{"missing body", "x@example.com", Message{To: valid.To, Subject: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildMessage(tt.from, tt.msg)
			var invalid ErrInvalidMessage
			if !errors.As(err, &invalid) {
				t.Errorf("err = %v, want ErrInvalidMessage", err)
			}
		})
	}
}

func TestSendDisabled(t *testing.T) {
	c := New(config.EmailConfig{From: "noreply@example.com"})
	if c.Enabled() {
		t.Fatal("zero config must be disabled")
	}
	err := c.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "s", TextBody: "b"})
	var disabled ErrDisabled
	if !errors.As(err, &disabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
}

func TestDialerTLS(t *testing.T) {
	c := New(config.EmailConfig{SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: 465, UseTLS: true}})
	d := c.dialer()
	if !d.SSL {
		t.Error("use_tls should select implicit TLS")
	}
	if d.TLSConfig == nil || d.TLSConfig.ServerName != "smtp.example.com" || d.TLSConfig.InsecureSkipVerify {
		t.Errorf("tls config = %+v", d.TLSConfig)
	}
	if c.timeout() != defaultSMTPTimeout {
		t.Errorf("timeout = %v, want default", c.timeout())
	}
}
