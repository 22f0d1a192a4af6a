// Package notify is the shared error-reporting path of the viewer. Every
// failed operation ends up here: it is logged and kept as a short,
// dismissible message until the user clears it.
package notify

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind classifies a failure.
type Kind string

const (
	KindBackend    Kind = "backend"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
)

// Error is a classified failure of one operation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies err; unclassified errors are backend failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}
	return KindBackend
}

// IsNotFound reports whether err is classified as not-found.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// Reporter receives failures.
type Reporter interface {
	Report(op string, err error)
}

// Notification is one user-facing message.
type Notification struct {
	ID      int
	Kind    Kind
	Op      string
	Message string
	At      time.Time
}

// Notifier logs reported failures and keeps the most recent ones for display.
type Notifier struct {
	mu     sync.Mutex
	logger *zap.Logger
	max    int
	nextID int
	items  []Notification
	now    func() time.Time
}

// NewNotifier keeps at most max undismissed notifications.
func NewNotifier(logger *zap.Logger, max int) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if max <= 0 {
		max = 5
	}
	return &Notifier{logger: logger, max: max, now: time.Now}
}

// Report records err under op. A nil err is ignored.
func (n *Notifier) Report(op string, err error) {
	if err == nil {
		return
	}
	kind := KindOf(err)
	n.logger.Warn("Operation failed", zap.String("op", op), zap.String("kind", string(kind)), zap.Error(err))

	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	n.items = append(n.items, Notification{
		ID:      n.nextID,
		Kind:    kind,
		Op:      op,
		Message: userMessage(kind, err),
		At:      n.now(),
	})
	if len(n.items) > n.max {
		n.items = n.items[len(n.items)-n.max:]
	}
}

// Pending returns the undismissed notifications, oldest first.
func (n *Notifier) Pending() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.items))
	copy(out, n.items)
	return out
}

// Dismiss removes the notification with id.
func (n *Notifier) Dismiss(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, item := range n.items {
		if item.ID == id {
			n.items = append(n.items[:i], n.items[i+1:]...)
			return
		}
	}
}

// DismissAll clears every notification.
func (n *Notifier) DismissAll() {
	n.mu.Lock()
	n.items = nil
	n.mu.Unlock()
}

func userMessage(kind Kind, err error) string {
	switch kind {
	case KindAuth:
		return "Your session has expired. Please sign in again."
	case KindNotFound:
		return "That item could not be found."
	case KindValidation:
		var e *Error
		if errors.As(err, &e) && e.Message != "" {
			return e.Message
		}
		return "Please check your input and try again."
	default:
		return "Something went wrong. Please try again."
	}
}
