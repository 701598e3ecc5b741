package alarm

import (
	"sort"
	"sync"
	"time"

	"github.com/hanbitlab/coursemap/pkg/logger"
)

// Notification is what a fired alarm produces.
type Notification struct {
	AlarmID  int64     `json:"alarms_id"`
	CourseID int64     `json:"courses_id"`
	Message  string    `json:"message"`
	FiredAt  time.Time `json:"fired_at"`
}

// Notifier receives fired alarms. The scheduler is constructed with one
// concrete Notifier; there is no runtime capability probing.
type Notifier interface {
	Notify(n Notification)
}

// Center is a Notifier that keeps fired notifications pending until they
// are explicitly acknowledged. Nothing auto-dismisses.
type Center struct {
	mu      sync.Mutex
	pending map[int64]Notification
	logger  *logger.Logger
}

// NewCenter creates a new notification center
func NewCenter(log *logger.Logger) *Center {
	return &Center{
		pending: make(map[int64]Notification),
		logger:  log.Named("notification-center"),
	}
}

// Notify records a fired alarm as pending
func (c *Center) Notify(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[n.AlarmID] = n
	c.logger.Info("Alarm fired",
		logger.Int64("alarms_id", n.AlarmID),
		logger.String("message", n.Message),
	)
}

// Pending returns the notifications awaiting acknowledgment, oldest first.
func (c *Center) Pending() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notification, 0, len(c.pending))
	for _, n := range c.pending {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.Before(out[j].FiredAt) })
	return out
}

// Acknowledge dismisses a pending notification. Returns false if no
// notification with that alarm id is pending.
func (c *Center) Acknowledge(alarmID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[alarmID]; !ok {
		return false
	}
	delete(c.pending, alarmID)
	return true
}
