// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Bus is the in-process Pub/Sub used between webhook handlers, pollers and
// workers. Messages are not persistent; anything in flight at shutdown is
// lost, which for watch events means at worst one missed notification that
// the next poller pass picks up.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates a bus with a buffered output channel so a slow worker
// does not block webhook handlers.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			NewLoggerAdapter(),
		),
	}
}

// PublishWatch publishes a watch event to TopicWatch.
func (b *Bus) PublishWatch(e *WatchEvent) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("events: invalid watch event: %w", err)
	}
	msg, err := e.Message()
	if err != nil {
		return fmt.Errorf("events: marshal watch event %s: %w", e.EventID, err)
	}
	if err := b.pubsub.Publish(TopicWatch, msg); err != nil {
		return fmt.Errorf("events: publish watch event %s: %w", e.EventID, err)
	}
	return nil
}

// PublishLibrary publishes a library event to TopicLibrary.
func (b *Bus) PublishLibrary(e *LibraryEvent) error {
	msg, err := e.Message()
	if err != nil {
		return fmt.Errorf("events: marshal library event %s: %w", e.EventID, err)
	}
	if err := b.pubsub.Publish(TopicLibrary, msg); err != nil {
		return fmt.Errorf("events: publish library event %s: %w", e.EventID, err)
	}
	return nil
}

// Publisher exposes the raw watermill publisher, used by the router's
// poison queue.
func (b *Bus) Publisher() message.Publisher {
	return b.pubsub
}

// Subscriber exposes the raw watermill subscriber for handler registration.
func (b *Bus) Subscriber() message.Subscriber {
	return b.pubsub
}

// Close shuts the bus down. Pending messages are dropped.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
