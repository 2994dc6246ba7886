package portal

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultNotificationTTL is how long a notification stays visible without dismissal.
const DefaultNotificationTTL = 5 * time.Second

type NotificationType string

const (
	NotifySuccess NotificationType = "success"
	NotifyError   NotificationType = "error"
	NotifyInfo    NotificationType = "info"
)

// Notification is a transient status message. ID only has to tell one notification's
// timer apart from the next one's.
type Notification struct {
	ID      string
	Type    NotificationType
	Message string
}

// Timer is a handle on a scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. time.AfterFunc satisfies it through SystemScheduler.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemScheduler schedules on the runtime timer.
var SystemScheduler Scheduler = systemScheduler{}

// NotificationChannel holds at most one notification. Showing a new one replaces the
// current one and cancels its dismissal timer.
type NotificationChannel struct {
	ttl   time.Duration
	sched Scheduler

	mu       sync.Mutex
	current  *Notification
	timer    Timer
	observer func(Notification)
	closed   bool
}

// NewNotificationChannel returns an empty channel. ttl <= 0 uses DefaultNotificationTTL
// and a nil sched uses SystemScheduler.
func NewNotificationChannel(ttl time.Duration, sched Scheduler) *NotificationChannel {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	if sched == nil {
		sched = SystemScheduler
	}
	return &NotificationChannel{ttl: ttl, sched: sched}
}

// OnShow registers f to receive every notification as it is shown.
func (n *NotificationChannel) OnShow(f func(Notification)) {
	n.mu.Lock()
	n.observer = f
	n.mu.Unlock()
}

// Show replaces the current notification and schedules its dismissal.
// It is a no-op once the channel is closed.
func (n *NotificationChannel) Show(typ NotificationType, message string) Notification {
	note := Notification{ID: uuid.NewString(), Type: typ, Message: message}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return Notification{}
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.current = &note
	id := note.ID
	n.timer = n.sched.AfterFunc(n.ttl, func() { n.Dismiss(id) })
	observer := n.observer
	n.mu.Unlock()

	if observer != nil {
		observer(note)
	}
	return note
}

// Dismiss clears the current notification if its ID is id. A timer that fires for a
// notification which was already replaced finds a different ID and does nothing.
func (n *NotificationChannel) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nil || n.current.ID != id {
		return false
	}
	n.clear()
	return true
}

// Current returns the visible notification, if any.
func (n *NotificationChannel) Current() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nil {
		return Notification{}, false
	}
	return *n.current, true
}

// Close cancels the pending timer and empties the channel for good.
func (n *NotificationChannel) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true
	n.clear()
}

func (n *NotificationChannel) clear() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.current = nil
}
