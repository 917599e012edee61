// Package transport defines channel-neutral messaging types so the rest of
// the bot never imports a concrete chat library.
package transport

import "context"

// Update is an incoming message from the chat transport.
type Update struct {
	Message Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Notification is a best-effort outbound alert. Priority runs 0 (low) to 10
// (high) and only affects the message prefix and dedup key.
type Notification struct {
	Priority int
	Target   ChatTarget
	Text     string
	Options  *SendOptions
}

// Sender is the minimal outbound surface. The logx telegram sink and the
// notifier only need this.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// Adapter is a full chat transport: outbound sends plus an inbound long-poll
// loop that forwards updates to out without ever blocking on it.
type Adapter interface {
	Sender

	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error
}
