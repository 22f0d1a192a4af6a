package realtime

import (
	"context"

	"vestigia/internal/core/changefeed"
)

// Publisher announces a row change to every subscriber of its table.
type Publisher interface {
	Publish(ctx context.Context, ev changefeed.Event) error
}

// Subscriber opens a stream of row changes for one table. It satisfies
// changefeed.Source.
type Subscriber interface {
	Subscribe(ctx context.Context, table string, filter changefeed.Filter) (<-chan changefeed.Event, error)
}

// Broker is both sides of the change feed.
type Broker interface {
	Publisher
	Subscriber
}
