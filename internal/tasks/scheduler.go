package tasks

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActionFunc is the caller-supplied callback invoked when a task's timer
// fires. It is the sole integration point for the real moderation action.
type ActionFunc func(ctx context.Context) error

// ScheduleStatus mirrors the task state machine for the ephemeral
// scheduling record.
type ScheduleStatus string

const (
	SchedulePending   ScheduleStatus = "pending"
	ScheduleExecuting ScheduleStatus = "executing"
	ScheduleCompleted ScheduleStatus = "completed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// ScheduledAction is the in-memory bookkeeping for one armed timer. It is
// never persisted; the durable Task carries the authoritative state.
type ScheduledAction struct {
	ID        string
	TaskID    string
	ExecuteAt time.Time

	action ActionFunc
	timer  Timer
	status ScheduleStatus
}

// SchedulerConfig carries the scheduler tunables.
type SchedulerConfig struct {
	Retention time.Duration // how long resolved records linger before eviction
}

// DefaultSchedulerConfig returns the reference 60s record retention.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{Retention: 60 * time.Second}
}

// Scheduler arms a one-shot timer per task and resolves the race between
// the timer firing and a cancellation arriving first. It knows nothing
// about persistence.
type Scheduler struct {
	mu      sync.Mutex
	records map[string]*ScheduledAction
	byTask  map[string]string
	clock   Clock
	cfg     SchedulerConfig
}

func NewScheduler(clock Clock, cfg SchedulerConfig) *Scheduler {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultSchedulerConfig().Retention
	}
	return &Scheduler{
		records: make(map[string]*ScheduledAction),
		byTask:  make(map[string]string),
		clock:   clock,
		cfg:     cfg,
	}
}

// Schedule arms a timer that invokes fn at task.ExecuteAt. A deadline that
// has already passed executes fn immediately, bypassing the timer.
func (s *Scheduler) Schedule(task Task, fn ActionFunc) (string, error) {
	if task.ExecuteAt == nil {
		return "", fmt.Errorf("task %s has no execution time", task.ID)
	}

	rec := &ScheduledAction{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		ExecuteAt: *task.ExecuteAt,
		action:    fn,
	}

	s.mu.Lock()
	s.records[rec.ID] = rec
	s.byTask[task.ID] = rec.ID

	delay := rec.ExecuteAt.Sub(s.clock.Now())
	if delay <= 0 {
		rec.status = ScheduleExecuting
		s.mu.Unlock()
		log.Printf("[INFO] deadline for task %s already passed, executing now", task.ID)
		s.run(rec)
		return rec.ID, nil
	}

	rec.status = SchedulePending
	rec.timer = s.clock.AfterFunc(delay, func() { s.fire(rec.ID) })
	s.mu.Unlock()

	log.Printf("[INFO] armed timer for task %s in %v", task.ID, delay)
	return rec.ID, nil
}

// fire revalidates the record is still pending before acting: a Cancel
// between arming and firing must prevent execution.
func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok || rec.status != SchedulePending {
		s.mu.Unlock()
		return
	}
	rec.status = ScheduleExecuting
	s.mu.Unlock()

	s.run(rec)
}

// run invokes the callback and resolves the record. A callback error
// resolves to cancelled at this layer; callers wanting a durable failed
// state write it onto the Task from inside the callback.
func (s *Scheduler) run(rec *ScheduledAction) {
	err := rec.action(context.Background())

	s.mu.Lock()
	if err != nil {
		rec.status = ScheduleCancelled
		log.Printf("[ERR] action for task %s failed: %v", rec.TaskID, err)
	} else {
		rec.status = ScheduleCompleted
	}
	s.mu.Unlock()

	s.evictLater(rec.ID)
}

// Cancel clears the timer if armed and marks the record cancelled. Returns
// false when the id is unknown.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if rec.status == SchedulePending {
		if rec.timer != nil {
			rec.timer.Stop()
		}
		rec.status = ScheduleCancelled
		s.mu.Unlock()
		s.evictLater(id)
		return true
	}
	s.mu.Unlock()
	return true
}

// CancelTask cancels by the durable task id.
func (s *Scheduler) CancelTask(taskID string) bool {
	s.mu.Lock()
	id, ok := s.byTask[taskID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return s.Cancel(id)
}

// Reschedule moves a pending record to a new deadline. A deadline already
// in the past executes immediately.
func (s *Scheduler) Reschedule(id string, executeAt time.Time) bool {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok || rec.status != SchedulePending {
		s.mu.Unlock()
		return false
	}
	if rec.timer != nil {
		rec.timer.Stop()
	}
	rec.ExecuteAt = executeAt

	delay := executeAt.Sub(s.clock.Now())
	if delay <= 0 {
		s.mu.Unlock()
		s.fire(id)
		return true
	}
	rec.timer = s.clock.AfterFunc(delay, func() { s.fire(id) })
	s.mu.Unlock()
	return true
}

// TimeUntilExecution reports the remaining delay for a pending record.
func (s *Scheduler) TimeUntilExecution(id string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.status != SchedulePending {
		return 0, false
	}
	return rec.ExecuteAt.Sub(s.clock.Now()), true
}

// Status reports the current state of a scheduling record.
func (s *Scheduler) Status(id string) (ScheduleStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return "", false
	}
	return rec.status, true
}

// evictLater drops a resolved record after the configured retention. The
// scheduling table is ephemeral metadata, distinct from the durable task
// table and its 24h retention.
func (s *Scheduler) evictLater(id string) {
	s.clock.AfterFunc(s.cfg.Retention, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		rec, ok := s.records[id]
		if !ok {
			return
		}
		delete(s.records, id)
		if cur, ok := s.byTask[rec.TaskID]; ok && cur == id {
			delete(s.byTask, rec.TaskID)
		}
	})
}
