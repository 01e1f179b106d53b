package domain

// SendMessageCommand is the inbound intent to relay one message.
// An empty Kind defaults to text.
type SendMessageCommand struct {
	To            string `validate:"required"`
	From          string `validate:"required"`
	Kind          MessageKind
	Content       string
	AttachmentURL string
}

// TypingCommand is the inbound, ephemeral typing notification.
// It is never persisted and never acknowledged.
type TypingCommand struct {
	To       string
	From     string
	Username string
	IsTyping bool
}
