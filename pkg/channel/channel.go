package channel

import "context"

// Message is the channel-ready payload. Text is already sanitized.
type Message struct {
	Text     string
	MediaURL string
}

// IsEmpty reports whether there is nothing to send.
func (m Message) IsEmpty() bool {
	return m.Text == "" && m.MediaURL == ""
}

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, recipientID string, msg Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, recipientID string, msg Message) error

func (f SenderFunc) Send(ctx context.Context, recipientID string, msg Message) error {
	return f(ctx, recipientID, msg)
}
