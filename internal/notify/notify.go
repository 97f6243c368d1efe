// Package notify is the toast channel the cart uses for add/remove/clear feedback.
package notify

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
	KindError   Kind = "error"
)

type Notification struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier is fire-and-forget.
type Notifier interface {
	Notify(kind Kind, message string)
}

// Inbox buffers notifications until the next Drain. Oldest entries are
// dropped once capacity is reached.
type Inbox struct {
	mu       sync.Mutex
	capacity int
	pending  []Notification
	now      func() time.Time
}

func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = 20
	}
	return &Inbox{capacity: capacity, now: time.Now}
}

func (b *Inbox) Notify(kind Kind, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == b.capacity {
		b.pending = b.pending[1:]
	}
	b.pending = append(b.pending, Notification{Kind: kind, Message: message, At: b.now().UTC()})
}

// Drain returns and clears everything buffered so far. Never nil.
func (b *Inbox) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

type logNotifier struct {
	logger logrus.FieldLogger
}

// NewLogNotifier writes every notification to logger at debug level.
func NewLogNotifier(logger logrus.FieldLogger) Notifier {
	return &logNotifier{logger: logger}
}

func (l *logNotifier) Notify(kind Kind, message string) {
	l.logger.WithField("kind", kind).Debug(message)
}

type multi []Notifier

// Multi fans a notification out to every non-nil notifier.
func Multi(notifiers ...Notifier) Notifier {
	var out multi
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multi) Notify(kind Kind, message string) {
	for _, n := range m {
		n.Notify(kind, message)
	}
}
