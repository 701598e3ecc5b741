// Package alarm implements the reminder scheduler: one-shot timers armed
// from durable alarm records, each firing at most once per process
// lifetime.
package alarm

import (
	"context"
	"sync"
	"time"

	"github.com/hanbitlab/coursemap/internal/storage/sqlite"
	"github.com/hanbitlab/coursemap/pkg/logger"
)

// State tracks an alarm record through its lifecycle within one process.
type State int

const (
	// StateUnregistered means the record has not been seen by this process.
	StateUnregistered State = iota
	// StateScheduled means a one-shot timer is armed.
	StateScheduled
	// StateFired means the notification was delivered. Terminal.
	StateFired
	// StateCancelled means the alarm was deleted before firing. Terminal.
	StateCancelled
	// StateExpired means the target time had already passed at load; the
	// alarm is never fired retroactively. Terminal.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateFired:
		return "fired"
	case StateCancelled:
		return "cancelled"
	case StateExpired:
		return "expired"
	default:
		return "unregistered"
	}
}

// Source provides the alarm records to schedule. Satisfied by the sqlite
// AlarmStorage and by any API-backed implementation.
type Source interface {
	ListByCourse(ctx context.Context, courseID int64) ([]*sqlite.AlarmRecord, error)
	Exists(ctx context.Context, alarmID int64) (bool, error)
}

type entry struct {
	state State
	timer *time.Timer
}

// Scheduler arms one-shot timers for the course's alarms. Reloading is
// idempotent: a record already scheduled, fired, cancelled or expired in
// this process is never re-armed, so each alarm fires at most once. Timer
// callbacks only touch their own entry and the notifier, never any other
// shared state.
type Scheduler struct {
	mu       sync.Mutex
	entries  map[int64]*entry
	source   Source
	notifier Notifier
	courseID int64
	logger   *logger.Logger
	now      func() time.Time
}

// NewScheduler creates a scheduler for the given course. The notifier is
// resolved here, once; there are no optional collaborators probed at fire
// time.
func NewScheduler(source Source, notifier Notifier, courseID int64, logger *logger.Logger) *Scheduler {
	return &Scheduler{
		entries:  make(map[int64]*entry),
		source:   source,
		notifier: notifier,
		courseID: courseID,
		logger:   logger.Named("alarm-scheduler"),
		now:      time.Now,
	}
}

// Load fetches the course's alarms and arms timers for records this
// process has not seen yet. Records whose target time has already passed
// are marked expired and never fire.
func (s *Scheduler) Load(ctx context.Context) error {
	records, err := s.source.ListByCourse(ctx, s.courseID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	armed := 0
	for _, record := range records {
		id := record.AlarmsID.Int64()
		if _, seen := s.entries[id]; seen {
			continue
		}

		delay := record.Target.Sub(s.now())
		if delay <= 0 {
			s.entries[id] = &entry{state: StateExpired}
			s.logger.Debug("Alarm target already past, not arming",
				logger.Int64("alarms_id", id),
				logger.String("alarm_time", record.AlarmTime),
			)
			continue
		}

		rec := record
		e := &entry{state: StateScheduled}
		e.timer = time.AfterFunc(delay, func() { s.fire(rec) })
		s.entries[id] = e
		armed++
	}

	if armed > 0 {
		s.logger.Info("Armed alarms",
			logger.Int("count", armed),
			logger.Int64("courses_id", s.courseID),
		)
	}
	return nil
}

// fire delivers the notification for one record, once. The record must
// still be scheduled (not cancelled) and must still exist in the source;
// an alarm deleted after its timer was armed stays silent.
func (s *Scheduler) fire(record *sqlite.AlarmRecord) {
	id := record.AlarmsID.Int64()

	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.state != StateScheduled {
		s.mu.Unlock()
		return
	}
	e.state = StateFired
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := s.source.Exists(ctx, id)
	if err != nil {
		s.logger.Error("Failed to check alarm existence at fire time",
			logger.Int64("alarms_id", id), logger.Error(err))
		// Fall through: better a notification for a questionable record
		// than a silently dropped reminder.
	} else if !exists {
		s.logger.Debug("Alarm deleted before firing, suppressing",
			logger.Int64("alarms_id", id))
		return
	}

	s.notifier.Notify(Notification{
		AlarmID:  id,
		CourseID: record.CoursesID.Int64(),
		Message:  record.Message,
		FiredAt:  s.now(),
	})
}

// Cancel stops the timer for an alarm, typically after deletion. Safe to
// call for unknown or already-fired ids.
func (s *Scheduler) Cancel(alarmID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[alarmID]
	if !ok || e.state != StateScheduled {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.state = StateCancelled
	s.logger.Debug("Cancelled alarm timer", logger.Int64("alarms_id", alarmID))
}

// StateOf returns the lifecycle state of an alarm id.
func (s *Scheduler) StateOf(alarmID int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[alarmID]
	if !ok {
		return StateUnregistered
	}
	return e.state
}

// Stop cancels every armed timer. Used at shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if e.state == StateScheduled {
			if e.timer != nil {
				e.timer.Stop()
			}
			e.state = StateCancelled
			s.logger.Debug("Cancelled alarm timer at shutdown", logger.Int64("alarms_id", id))
		}
	}
}

// Run reloads the alarm list on an interval until the context is
// cancelled, so alarms registered elsewhere get armed too.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Alarm reload loop stopped")
			return
		case <-ticker.C:
			if err := s.Load(ctx); err != nil {
				s.logger.Error("Failed to reload alarms", logger.Error(err))
			}
		}
	}
}
