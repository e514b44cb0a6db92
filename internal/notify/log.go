package notify

import (
	"context"
	"log"
	"time"
)

// LogDispatcher writes notifications to the process log.
type LogDispatcher struct{}

var _ Dispatcher = LogDispatcher{}

func (LogDispatcher) Send(_ context.Context, channel Channel, payload Payload) (Result, error) {
	log.Printf("[Notify] %s: %s - %s", channel, payload.Title, payload.Body)
	return Result{Success: true, Timestamp: time.Now().UTC()}, nil
}
