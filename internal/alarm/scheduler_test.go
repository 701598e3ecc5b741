package alarm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanbitlab/coursemap/internal/storage/sqlite"
	"github.com/hanbitlab/coursemap/pkg/jsonid"
	"github.com/hanbitlab/coursemap/pkg/logger"
)

type fakeSource struct {
	mu      sync.Mutex
	records map[int64]*sqlite.AlarmRecord
}

func newFakeSource() *fakeSource {
	return &fakeSource{records: map[int64]*sqlite.AlarmRecord{}}
}

func (f *fakeSource) add(id int64, message string, target time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[id] = &sqlite.AlarmRecord{
		AlarmsID:  jsonid.ID(id),
		CoursesID: jsonid.ID(1),
		Message:   message,
		AlarmTime: target.UTC().Format(sqlite.AlarmWireFormat),
		Target:    target.UTC(),
	}
}

func (f *fakeSource) remove(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
}

func (f *fakeSource) ListByCourse(ctx context.Context, courseID int64) ([]*sqlite.AlarmRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*sqlite.AlarmRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeSource) Exists(ctx context.Context, alarmID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[alarmID]
	return ok, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	fired []Notification
}

func (n *recordingNotifier) Notify(notification Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fired = append(n.fired, notification)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.fired)
}

func TestPastAlarmNeverArmed(t *testing.T) {
	source := newFakeSource()
	source.add(1, "too late", time.Now().Add(-time.Second))

	notifier := &recordingNotifier{}
	s := NewScheduler(source, notifier, 1, logger.Nop())
	require.NoError(t, s.Load(context.Background()))

	assert.Equal(t, StateExpired, s.StateOf(1))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, notifier.count())
}

func TestFutureAlarmFiresOnce(t *testing.T) {
	source := newFakeSource()
	source.add(1, "go now", time.Now().Add(40*time.Millisecond))

	notifier := &recordingNotifier{}
	s := NewScheduler(source, notifier, 1, logger.Nop())
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, StateScheduled, s.StateOf(1))

	require.Eventually(t, func() bool { return notifier.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateFired, s.StateOf(1))
	assert.Equal(t, "go now", notifier.fired[0].Message)

	// Another pass sees the same record but must not re-arm it.
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, StateFired, s.StateOf(1))
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, notifier.count())
}

func TestReloadBeforeFiringDoesNotDoubleArm(t *testing.T) {
	source := newFakeSource()
	source.add(1, "once", time.Now().Add(60*time.Millisecond))

	notifier := &recordingNotifier{}
	s := NewScheduler(source, notifier, 1, logger.Nop())
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.Load(context.Background()))

	require.Eventually(t, func() bool { return notifier.count() >= 1 },
		2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, notifier.count())
}

func TestCancelSuppressesFiring(t *testing.T) {
	source := newFakeSource()
	source.add(1, "cancelled", time.Now().Add(40*time.Millisecond))

	notifier := &recordingNotifier{}
	s := NewScheduler(source, notifier, 1, logger.Nop())
	require.NoError(t, s.Load(context.Background()))

	s.Cancel(1)
	assert.Equal(t, StateCancelled, s.StateOf(1))

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, notifier.count())
}

func TestDeletedAlarmDoesNotNotify(t *testing.T) {
	source := newFakeSource()
	source.add(1, "deleted behind our back", time.Now().Add(40*time.Millisecond))

	notifier := &recordingNotifier{}
	s := NewScheduler(source, notifier, 1, logger.Nop())
	require.NoError(t, s.Load(context.Background()))

	// Deleted from the source without going through Cancel; the fire path
	// re-checks existence.
	source.remove(1)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, notifier.count())
	assert.Equal(t, StateFired, s.StateOf(1))
}

func TestStopCancelsArmedTimers(t *testing.T) {
	source := newFakeSource()
	source.add(1, "a", time.Now().Add(50*time.Millisecond))
	source.add(2, "b", time.Now().Add(60*time.Millisecond))

	notifier := &recordingNotifier{}
	s := NewScheduler(source, notifier, 1, logger.Nop())
	require.NoError(t, s.Load(context.Background()))

	s.Stop()
	assert.Equal(t, StateCancelled, s.StateOf(1))
	assert.Equal(t, StateCancelled, s.StateOf(2))

	time.Sleep(120 * time.Millisecond)
	assert.Zero(t, notifier.count())
}

func TestCenterPendingUntilAcknowledged(t *testing.T) {
	center := NewCenter(logger.Nop())

	center.Notify(Notification{AlarmID: 1, Message: "first", FiredAt: time.Now()})
	center.Notify(Notification{AlarmID: 2, Message: "second", FiredAt: time.Now().Add(time.Second)})

	pending := center.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, int64(1), pending[0].AlarmID)

	assert.True(t, center.Acknowledge(1))
	assert.Len(t, center.Pending(), 1)

	// Acknowledging twice reports the miss.
	assert.False(t, center.Acknowledge(1))
}
