// Package notify delivers triggered alerts through a channel. Delivery is best effort.
package notify

import (
	"context"
	"fmt"
	"time"
)

// Channel is a delivery medium.
type Channel string

const (
	ChannelPush     Channel = "push"
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// ParseChannel maps a stored channel name to a Channel, defaulting to push.
func ParseChannel(s string) Channel {
	switch Channel(s) {
	case ChannelEmail, ChannelWhatsApp:
		return Channel(s)
	default:
		return ChannelPush
	}
}

// Payload is the message handed to a dispatcher.
type Payload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// Result reports the outcome of one send.
type Result struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// Dispatcher sends notifications.
type Dispatcher interface {
	Send(ctx context.Context, channel Channel, payload Payload) (Result, error)
}

// DispatchError wraps a delivery failure.
type DispatchError struct {
	Channel Channel
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch via %s: %v", e.Channel, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
