package tasks

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskAt(executeAt time.Time) Task {
	return Task{
		ID:        "t-1",
		Type:      TypeScheduled,
		Action:    Action{Kind: "timeout"},
		Target:    Actor{UserID: "u-target"},
		GuildID:   "g-1",
		ExecuteAt: &executeAt,
		Status:    StatusPending,
	}
}

func TestScheduleFiresExactlyOnce(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := NewScheduler(clock, DefaultSchedulerConfig())

	var calls int32
	id, err := s.Schedule(taskAt(clock.Now().Add(time.Second)), func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	require.NoError(t, err)

	status, ok := s.Status(id)
	require.True(t, ok)
	assert.Equal(t, SchedulePending, status)

	clock.Advance(1200 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	status, ok = s.Status(id)
	require.True(t, ok)
	assert.Equal(t, ScheduleCompleted, status)

	// Nothing left to fire.
	clock.Advance(10 * time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCancelBeforeFirePreventsExecution(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := NewScheduler(clock, DefaultSchedulerConfig())

	var calls int32
	id, err := s.Schedule(taskAt(clock.Now().Add(5*time.Second)), func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	require.NoError(t, err)

	clock.Advance(time.Second)
	assert.True(t, s.Cancel(id))

	clock.Advance(10 * time.Second)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "cancelled action must never execute")

	assert.False(t, s.Cancel("unknown-id"))
}

// The full ordering guarantee: a cancellation recorded on the durable task
// before the timer fires must suppress execution, and a timer that already
// fired makes the late cancel check a no-op.
func TestCancellationBeatsTimer(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := newMemStore()
	m, err := NewManager(store, clock, DefaultManagerConfig())
	require.NoError(t, err)
	s := NewScheduler(clock, DefaultSchedulerConfig())

	in := scheduledInput(clock.Now().Add(5 * time.Second))
	in.CancelCondition = &CancelCondition{Type: "user_action", Value: "apology"}
	task, err := m.CreateTask(in)
	require.NoError(t, err)

	var calls int32
	_, err = s.Schedule(task, func(ctx context.Context) error {
		if _, ok := m.ClaimForExecution(task.ID); !ok {
			return nil
		}
		atomic.AddInt32(&calls, 1)
		status := StatusCompleted
		m.UpdateTask(task.ID, TaskUpdate{Status: &status})
		return nil
	})
	require.NoError(t, err)

	// Target apologizes at t+1s.
	clock.Advance(time.Second)
	require.True(t, m.CheckCancelCondition(task.ID, "sorry, I'll stop", "u-target"))
	s.CancelTask(task.ID)

	// Timer deadline passes at t+5s: the action must not run.
	clock.Advance(10 * time.Second)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	got, _ := m.Task(task.ID)
	assert.Equal(t, StatusCancelled, got.Status)

	// A cancel check arriving after termination changes nothing.
	assert.False(t, m.CheckCancelCondition(task.ID, "sorry again", "u-target"))
}

// Restart shape: a deadline that passed while no timer was armed is
// executed through the sweep's ready handler rather than being marked
// completed and forgotten.
func TestSweepExecutesOverdueTaskWithoutTimer(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := newMemStore()
	m, err := NewManager(store, clock, DefaultManagerConfig())
	require.NoError(t, err)
	s := NewScheduler(clock, DefaultSchedulerConfig())

	task, err := m.CreateTask(scheduledInput(clock.Now().Add(-time.Minute)))
	require.NoError(t, err)

	var executed int32
	m.SetReadyHandler(func(tk Task) {
		s.CancelTask(tk.ID)
		atomic.AddInt32(&executed, 1)
		result := "Action executed"
		m.UpdateTask(tk.ID, TaskUpdate{Result: &result})
	})

	m.Sweep()
	assert.Equal(t, int32(1), atomic.LoadInt32(&executed))

	got, _ := m.Task(task.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "Action executed", got.Result)
}

// A sweep tick and the timer racing on the same deadline must resolve to
// exactly one execution, owned by whoever transitions the durable task
// first.
func TestSweepPromotionBeatsTimer(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := newMemStore()
	m, err := NewManager(store, clock, DefaultManagerConfig())
	require.NoError(t, err)
	s := NewScheduler(clock, DefaultSchedulerConfig())

	task, err := m.CreateTask(scheduledInput(clock.Now().Add(5 * time.Second)))
	require.NoError(t, err)

	var timerRuns, handlerRuns int32
	m.SetReadyHandler(func(tk Task) {
		s.CancelTask(tk.ID)
		atomic.AddInt32(&handlerRuns, 1)
	})

	// Armed first, so it fires first when both come due together.
	clock.AfterFunc(5*time.Second, func() { m.Sweep() })

	_, err = s.Schedule(task, func(ctx context.Context) error {
		if _, ok := m.ClaimForExecution(task.ID); !ok {
			return nil
		}
		atomic.AddInt32(&timerRuns, 1)
		return nil
	})
	require.NoError(t, err)

	clock.Advance(6 * time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&handlerRuns))
	assert.Equal(t, int32(0), atomic.LoadInt32(&timerRuns), "promotion owns the action, the timer backs off")
}

func TestTimerClaimBlocksSweep(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := newMemStore()
	m, err := NewManager(store, clock, DefaultManagerConfig())
	require.NoError(t, err)
	s := NewScheduler(clock, DefaultSchedulerConfig())

	task, err := m.CreateTask(scheduledInput(clock.Now().Add(5 * time.Second)))
	require.NoError(t, err)

	var handlerRuns int32
	m.SetReadyHandler(func(Task) { atomic.AddInt32(&handlerRuns, 1) })

	_, err = s.Schedule(task, func(ctx context.Context) error {
		if _, ok := m.ClaimForExecution(task.ID); !ok {
			return nil
		}
		status := StatusCompleted
		result := "Action executed"
		m.UpdateTask(task.ID, TaskUpdate{Status: &status, Result: &result})
		return nil
	})
	require.NoError(t, err)

	clock.Advance(6 * time.Second)
	m.Sweep()

	assert.Equal(t, int32(0), atomic.LoadInt32(&handlerRuns))
	got, _ := m.Task(task.ID)
	assert.Equal(t, "Action executed", got.Result)
}

func TestScheduleExecutesImmediatelyWhenOverdue(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := NewScheduler(clock, DefaultSchedulerConfig())

	var calls int32
	id, err := s.Schedule(taskAt(clock.Now().Add(-time.Second)), func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "overdue deadline bypasses the timer")
	status, ok := s.Status(id)
	require.True(t, ok)
	assert.Equal(t, ScheduleCompleted, status)
}

func TestScheduleRequiresExecutionTime(t *testing.T) {
	clock := newFakeClock(time.Now())
	s := NewScheduler(clock, DefaultSchedulerConfig())

	task := taskAt(time.Now())
	task.ExecuteAt = nil
	_, err := s.Schedule(task, func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestCallbackErrorResolvesToCancelled(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := NewScheduler(clock, DefaultSchedulerConfig())

	id, err := s.Schedule(taskAt(clock.Now().Add(time.Second)), func(ctx context.Context) error {
		return fmt.Errorf("missing permissions")
	})
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	status, ok := s.Status(id)
	require.True(t, ok)
	assert.Equal(t, ScheduleCancelled, status)
}

func TestReschedule(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := NewScheduler(clock, DefaultSchedulerConfig())

	var calls int32
	id, err := s.Schedule(taskAt(clock.Now().Add(2*time.Second)), func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	require.NoError(t, err)

	// Push the deadline out; the old one passing must not fire.
	require.True(t, s.Reschedule(id, clock.Now().Add(10*time.Second)))
	clock.Advance(3 * time.Second)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	clock.Advance(8 * time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Only pending records can be rescheduled.
	assert.False(t, s.Reschedule(id, clock.Now().Add(time.Second)))
	assert.False(t, s.Reschedule("unknown-id", clock.Now()))
}

func TestRescheduleToPastExecutesImmediately(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := NewScheduler(clock, DefaultSchedulerConfig())

	var calls int32
	id, err := s.Schedule(taskAt(clock.Now().Add(time.Minute)), func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	require.NoError(t, err)

	require.True(t, s.Reschedule(id, clock.Now().Add(-time.Second)))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTimeUntilExecution(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := NewScheduler(clock, DefaultSchedulerConfig())

	id, err := s.Schedule(taskAt(clock.Now().Add(30*time.Second)), func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	remaining, ok := s.TimeUntilExecution(id)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, remaining)

	clock.Advance(10 * time.Second)
	remaining, ok = s.TimeUntilExecution(id)
	require.True(t, ok)
	assert.Equal(t, 20*time.Second, remaining)

	clock.Advance(30 * time.Second)
	_, ok = s.TimeUntilExecution(id)
	assert.False(t, ok, "resolved records have no remaining time")
}

func TestResolvedRecordsAreEvicted(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := NewScheduler(clock, SchedulerConfig{Retention: 60 * time.Second})

	id, err := s.Schedule(taskAt(clock.Now().Add(time.Second)), func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, ok := s.Status(id)
	require.True(t, ok, "record lingers right after resolution")

	clock.Advance(61 * time.Second)
	_, ok = s.Status(id)
	assert.False(t, ok, "record evicted after retention")
}
