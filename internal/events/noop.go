// Package events provides the publisher used when no broker is configured.
package events

import (
	"context"

	"github.com/giridharan-7/my-paytm/internal/interfaces"
)

// NopPublisher discards every event. It stands in for kafka in local runs
// and tests.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, topic string, event any) error { return nil }

func (NopPublisher) Close() error { return nil }

var _ interfaces.EventPublisher = NopPublisher{}
