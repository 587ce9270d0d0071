package email

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"
)

const previewLimit = 280

// NewMessageEmailData feeds the offline-recipient notification.
type NewMessageEmailData struct {
	RecipientName   string
	Email           string
	SenderName      string
	Content         string
	ConversationURL string
	AppName         string
}

// NegotiationOutcomeEmailData feeds the closed-negotiation notice.
type NegotiationOutcomeEmailData struct {
	RecipientName   string
	Email           string
	Outcome         string // accepted | rejected
	VehicleTitle    string
	FinalPrice      *float64
	ConversationURL string
	AppName         string
}

// ConversationURL joins the web base URL and a conversation id.
func ConversationURL(baseURL, conversationID string) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/conversations/" + conversationID
}

// BuildNewMessageEmail tells an offline participant that a message is waiting.
func BuildNewMessageEmail(data NewMessageEmailData) Message {
	appName := orDefault(data.AppName, "AutoDealer")
	name := orDefault(data.RecipientName, "there")
	sender := orDefault(data.SenderName, "Someone")
	preview := truncate(data.Content, previewLimit)

	subject := fmt.Sprintf("New message from %s", sender)

	textBody := fmt.Sprintf(`Hi %s,

%s sent you a message:

"%s"

Reply here: %s

Thanks,
The %s Team`,
		name, sender, preview, data.ConversationURL, appName)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #2563eb;">Hi %s,</h2>
    <p><strong>%s</strong> sent you a message:</p>
    <blockquote style="background-color: #f3f4f6; padding: 10px 15px; border-left: 4px solid #2563eb; margin: 20px 0;">%s</blockquote>
    <p style="text-align: center; margin: 30px 0;">
        <a href="%s" style="background-color: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Open conversation</a>
    </p>
    <p style="color: #6b7280; font-size: 14px; margin-top: 30px;">Thanks,<br>The %s Team</p>
</body>
</html>`,
		html.EscapeString(name), html.EscapeString(sender), html.EscapeString(preview),
		html.EscapeString(data.ConversationURL), html.EscapeString(appName))

	return Message{
		To:       []string{data.Email},
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
	}
}

// BuildNegotiationOutcomeEmail summarises an AI negotiation that reached a decision.
func BuildNegotiationOutcomeEmail(data NegotiationOutcomeEmailData) Message {
	appName := orDefault(data.AppName, "AutoDealer")
	name := orDefault(data.RecipientName, "there")
	vehicle := orDefault(data.VehicleTitle, "your vehicle")

	var subject, headline string
	switch data.Outcome {
	case "accepted":
		subject = fmt.Sprintf("Deal reached on %s", vehicle)
		headline = fmt.Sprintf("The negotiation for %s ended with an agreement.", vehicle)
	default:
		subject = fmt.Sprintf("Negotiation closed for %s", vehicle)
		headline = fmt.Sprintf("The negotiation for %s ended without an agreement.", vehicle)
	}

	price := ""
	if data.FinalPrice != nil {
		price = fmt.Sprintf("Final offer: $%.2f", *data.FinalPrice)
	}

	textBody := fmt.Sprintf(`Hi %s,

%s
%s

Review the conversation: %s

Thanks,
The %s Team`,
		name, headline, price, data.ConversationURL, appName)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #2563eb;">Hi %s,</h2>
    <p>%s</p>
    <p><strong>%s</strong></p>
    <p style="text-align: center; margin: 30px 0;">
        <a href="%s" style="background-color: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Review conversation</a>
    </p>
    <p style="color: #6b7280; font-size: 14px; margin-top: 30px;">Thanks,<br>The %s Team</p>
</body>
</html>`,
		html.EscapeString(name), html.EscapeString(headline), html.EscapeString(price),
		html.EscapeString(data.ConversationURL), html.EscapeString(appName))

	return Message{
		To:       []string{data.Email},
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "…"
}
