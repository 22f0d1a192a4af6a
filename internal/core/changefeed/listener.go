package changefeed

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned by Subscribe and Poll after Close.
var ErrClosed = errors.New("changefeed: listener closed")

// DefaultPollInterval is the fallback re-fetch period.
const DefaultPollInterval = 45 * time.Second

// Handler receives matching events. Handlers run on the listener's
// goroutines and must be safe for concurrent use.
type Handler func(Event)

type subKey struct {
	table  string
	filter string
}

type subscription struct {
	filter   Filter
	cancel   context.CancelFunc
	handlers map[int]Handler
}

// Listener owns the push subscriptions and poll timers of one view. Identical
// (table, filter) subscriptions share one push channel; Close tears all of
// them down.
type Listener struct {
	source Source
	logger *zap.Logger
	retry  time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	subs   map[subKey]*subscription
	nextID int
	closed bool
	wg     sync.WaitGroup
}

// NewListener creates a Listener on source. A nil source disables push and
// leaves only polling.
func NewListener(source Source, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		source: source,
		logger: logger,
		retry:  5 * time.Second,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[subKey]*subscription),
	}
}

// SetRetryDelay sets the wait before re-opening a dropped push channel.
func (l *Listener) SetRetryDelay(d time.Duration) {
	l.mu.Lock()
	l.retry = d
	l.mu.Unlock()
}

// Subscribe registers h for changes on table matching filter. The returned
// func removes h; the push channel closes once its last handler is gone.
func (l *Listener) Subscribe(table string, filter Filter, h Handler) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	key := subKey{table: table, filter: filter.String()}
	l.nextID++
	id := l.nextID

	sub, ok := l.subs[key]
	if !ok {
		ctx, cancel := context.WithCancel(l.ctx)
		sub = &subscription{filter: filter, cancel: cancel, handlers: make(map[int]Handler)}
		l.subs[key] = sub
		if l.source != nil {
			l.wg.Add(1)
			go l.run(ctx, table, sub)
		}
	}
	sub.handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() { l.unsubscribe(key, id) })
	}, nil
}

func (l *Listener) unsubscribe(key subKey, id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sub, ok := l.subs[key]
	if !ok {
		return
	}
	delete(sub.handlers, id)
	if len(sub.handlers) == 0 {
		sub.cancel()
		delete(l.subs, key)
	}
}

// Subscriptions returns the number of open (table, filter) subscriptions.
func (l *Listener) Subscriptions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

func (l *Listener) run(ctx context.Context, table string, sub *subscription) {
	defer l.wg.Done()

	log := l.logger.With(zap.String("table", table), zap.String("filter", sub.filter.String()))
	for {
		ch, err := l.source.Subscribe(ctx, table, sub.filter)
		if err != nil {
			log.Warn("Change feed subscribe failed", zap.Error(err))
		} else {
			for ev := range ch {
				if sub.filter.Match(ev) {
					l.dispatch(sub, ev)
				}
			}
		}

		if ctx.Err() != nil {
			return
		}
		log.Info("Change feed dropped, resubscribing")

		l.mu.Lock()
		retry := l.retry
		l.mu.Unlock()
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

func (l *Listener) dispatch(sub *subscription, ev Event) {
	l.mu.Lock()
	handlers := make([]Handler, 0, len(sub.handlers))
	for _, h := range sub.handlers {
		handlers = append(handlers, h)
	}
	l.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Poll calls fn every interval until the returned stop func or Close is
// called. Errors are logged; the next tick retries.
func (l *Listener) Poll(interval time.Duration, fn func(context.Context) error) (func(), error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(l.ctx)
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := fn(ctx); err != nil && ctx.Err() == nil {
					l.logger.Warn("Poll failed", zap.Error(err))
				}
			}
		}
	}()
	return cancel, nil
}

// Close cancels every subscription and poll timer and waits for them to exit.
func (l *Listener) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.cancel()
	l.subs = make(map[subKey]*subscription)
	l.mu.Unlock()

	l.wg.Wait()
}
