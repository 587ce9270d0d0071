package email

// Message is one outbound notification. Headers carries extras such as
// X-Conversation-Id.
type Message struct {
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
	Headers  map[string]string
}
