package mqtt

import "github.com/sweeney/lampd/internal/logic"

// NopPublisher discards everything. It is used when no broker is configured.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(logic.Event) error { return nil }

// PublishSystem does nothing.
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }

// IsConnected always reports false.
func (NopPublisher) IsConnected() bool { return false }
