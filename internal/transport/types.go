// Package transport defines the chat-platform-facing contracts. The core
// never inspects destinations beyond passing through stored references;
// whether a chat still exists or the bot may post there is entirely the
// adapter's problem.
package transport

import (
	"context"

	"tubewatch/internal/resolver"
)

// ChatTarget addresses one delivery destination.
type ChatTarget struct {
	ChatID   int64
	ThreadID int // forum topic thread id (0 if none)
}

// MessageRef addresses one existing message, e.g. the pinned status
// message used as a subscriber-count label.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Sink delivers one notification payload to a destination.
type Sink interface {
	Deliver(ctx context.Context, to ChatTarget, p *resolver.Payload) error
}

// LabelUpdater pushes freshly formatted label text to a visible surface.
type LabelUpdater interface {
	SetLabel(ctx context.Context, ref MessageRef, text string) error
}
