package tasks

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists the whole task table. Implementations replace the stored
// snapshot on every Save; the manager never issues partial writes.
type Store interface {
	LoadTasks() (map[string]Task, error)
	SaveTasks(map[string]Task) error
}

// ManagerConfig carries the tunables the sweep runs on.
type ManagerConfig struct {
	SweepInterval time.Duration // how often the background sweep runs
	Retention     time.Duration // how long terminal tasks are kept
}

// DefaultManagerConfig returns the reference cadence: 10s sweep, 24h retention.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		SweepInterval: 10 * time.Second,
		Retention:     24 * time.Hour,
	}
}

// Manager owns the in-memory task table, the task state machine,
// cancel-condition evaluation and the periodic sweep. All mutations go
// through it so every transition is persisted atomically.
type Manager struct {
	mu      sync.Mutex
	tasks   map[string]Task
	store   Store
	clock   Clock
	cfg     ManagerConfig
	onReady func(Task)
}

// NewManager loads the persisted task table and returns a manager over it.
func NewManager(store Store, clock Clock, cfg ManagerConfig) (*Manager, error) {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultManagerConfig().SweepInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultManagerConfig().Retention
	}

	table, err := store.LoadTasks()
	if err != nil {
		return nil, fmt.Errorf("failed to load task table: %w", err)
	}
	if table == nil {
		table = make(map[string]Task)
	}

	return &Manager{
		tasks: table,
		store: store,
		clock: clock,
		cfg:   cfg,
	}, nil
}

// CreateTaskInput is the caller-supplied shape of a new task. Required
// fields are structurally enforced by this type.
type CreateTaskInput struct {
	Type            Type
	Action          Action
	Target          Actor
	CreatedBy       Actor
	GuildID         string
	Condition       string
	ExecuteAt       *time.Time
	CancelCondition *CancelCondition
	Monitoring      *Monitoring
}

// CreateTask assigns a fresh id, derives the initial status, stamps the
// timestamps and persists the table.
func (m *Manager) CreateTask(in CreateTaskInput) (Task, error) {
	now := m.clock.Now()

	var status Status
	switch {
	case in.Monitoring != nil:
		status = StatusMonitoring
	case in.Type == TypeImmediate:
		status = StatusExecuting
	default:
		status = StatusPending
	}

	t := Task{
		ID:              uuid.NewString(),
		Type:            in.Type,
		Action:          in.Action,
		Target:          in.Target,
		CreatedBy:       in.CreatedBy,
		GuildID:         in.GuildID,
		Condition:       in.Condition,
		ExecuteAt:       in.ExecuteAt,
		CancelCondition: in.CancelCondition,
		Monitoring:      in.Monitoring,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
	if err := m.persist(); err != nil {
		delete(m.tasks, t.ID)
		return Task{}, fmt.Errorf("failed to persist new task: %w", err)
	}
	return t, nil
}

// Task returns a copy of the task with the given id.
func (m *Manager) Task(id string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok
}

// ClaimForExecution atomically moves a live task to executing and returns
// it. False means another path resolved the task first: a cancellation, the
// sweep's promotion, or a competing timer. Exactly one caller can win the
// claim, so the action runs at most once per process. The claim is not
// persisted: a crash mid-action leaves the stored task pending and a
// restart re-arms it.
func (m *Manager) ClaimForExecution(id string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return Task{}, false
	}
	if t.Status != StatusPending && t.Status != StatusMonitoring {
		return Task{}, false
	}
	t.Status = StatusExecuting
	t.UpdatedAt = m.clock.Now()
	m.tasks[id] = t
	return t, true
}

// TaskUpdate carries the fields UpdateTask merges. Nil fields are left
// untouched.
type TaskUpdate struct {
	Status     *Status
	Result     *string
	Error      *string
	ExecutedAt *time.Time
}

// UpdateTask is the sole mutation path. It merges the present fields,
// refreshes UpdatedAt and re-persists. An unknown id is logged and ignored:
// the task may have completed and been cleaned up concurrently. Repeated
// writes of the same terminal status are harmless, the sweep and the
// scheduler timer can race to finish the same task.
func (m *Manager) UpdateTask(id string, upd TaskUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		log.Printf("[WARN] update for unknown task %s, treating as already resolved", id)
		return
	}

	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.Result != nil {
		t.Result = *upd.Result
	}
	if upd.Error != nil {
		t.Error = *upd.Error
	}
	if upd.ExecutedAt != nil {
		t.ExecutedAt = upd.ExecutedAt
	}
	t.UpdatedAt = m.clock.Now()

	m.tasks[id] = t
	if err := m.persist(); err != nil {
		log.Printf("[ERR] failed to persist update for task %s: %v", id, err)
	}
}

// DeleteTask removes a task outright, bypassing retention.
func (m *Manager) DeleteTask(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return
	}
	delete(m.tasks, id)
	if err := m.persist(); err != nil {
		log.Printf("[ERR] failed to persist deletion of task %s: %v", id, err)
	}
}

// apologyPhrases is the fixed disjunction behind the informal "apology"
// cancel-condition category.
var apologyPhrases = []string{"sorry", "apologize", "apology", "my bad"}

// CheckCancelCondition evaluates an inbound message against a task's cancel
// predicate. It is a no-op returning false when the task is absent,
// terminal, has no predicate, or the message is not from the task's target:
// cancellation is strictly scoped to the designated user. On a match the
// task transitions to cancelled and the caller must suppress execution.
func (m *Manager) CheckCancelCondition(id, content, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok || t.CancelCondition == nil {
		return false
	}
	if t.Status != StatusPending && t.Status != StatusMonitoring {
		return false
	}
	if userID != t.Target.UserID {
		return false
	}
	if !matchesCondition(t.CancelCondition.Value, content) {
		return false
	}

	t.Status = StatusCancelled
	t.Result = fmt.Sprintf("Cancelled: user said %q", strings.TrimSpace(content))
	t.UpdatedAt = m.clock.Now()
	m.tasks[id] = t
	if err := m.persist(); err != nil {
		log.Printf("[ERR] failed to persist cancellation of task %s: %v", id, err)
	}
	return true
}

func matchesCondition(value, content string) bool {
	lower := strings.ToLower(content)
	if strings.EqualFold(value, "apology") {
		for _, phrase := range apologyPhrases {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
		return false
	}
	return strings.Contains(lower, strings.ToLower(value))
}

// MonitoringTasks returns tasks still racing their timer (status monitoring
// or pending), optionally scoped to a guild. An empty guildID returns all.
func (m *Manager) MonitoringTasks(guildID string) []Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Task
	for _, t := range m.tasks {
		if t.Status != StatusMonitoring && t.Status != StatusPending {
			continue
		}
		if guildID != "" && t.GuildID != guildID {
			continue
		}
		out = append(out, t)
	}
	return out
}

// SetReadyHandler registers the callback the sweep hands promoted tasks to.
// Without a handler a promoted task is marked completed but nothing performs
// its action, so callers wire one before the sweep starts. The handler runs
// outside the table lock.
func (m *Manager) SetReadyHandler(fn func(Task)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReady = fn
}

// RunSweeper runs the background sweep until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep runs one pass: pending tasks past their deadline and monitoring
// tasks past their window become completed and are handed to the ready
// handler, which performs the action; terminal tasks older than the
// retention are garbage-collected. The completed transition happens under
// the lock, so the scheduler's fire-time revalidation and this promotion
// cannot both claim the same task.
func (m *Manager) Sweep() {
	m.mu.Lock()

	now := m.clock.Now()
	changed := false
	var ready []Task

	for id, t := range m.tasks {
		switch {
		case t.Status == StatusPending && t.ExecuteAt != nil && !t.ExecuteAt.After(now):
			t.Status = StatusCompleted
			t.Result = "Ready for execution"
			t.UpdatedAt = now
			m.tasks[id] = t
			ready = append(ready, t)
			changed = true
			log.Printf("[INFO] task %s passed its deadline, marked ready", id)

		case t.Status == StatusMonitoring && t.Monitoring != nil && now.Sub(t.CreatedAt) > t.Monitoring.Duration:
			t.Status = StatusCompleted
			t.Result = "Monitoring period ended — executing action"
			t.UpdatedAt = now
			m.tasks[id] = t
			ready = append(ready, t)
			changed = true
			log.Printf("[INFO] task %s finished its monitoring window", id)

		case t.Status.Terminal() && now.Sub(t.UpdatedAt) > m.cfg.Retention:
			delete(m.tasks, id)
			changed = true
			log.Printf("[INFO] cleaned up stale task %s (%s)", id, t.Status)
		}
	}

	if changed {
		if err := m.persist(); err != nil {
			log.Printf("[ERR] failed to persist sweep results: %v", err)
		}
	}
	handler := m.onReady
	m.mu.Unlock()

	if handler == nil {
		return
	}
	for _, t := range ready {
		handler(t)
	}
}

// persist writes the whole table. Callers hold m.mu.
func (m *Manager) persist() error {
	snapshot := make(map[string]Task, len(m.tasks))
	for id, t := range m.tasks {
		snapshot[id] = t
	}
	return m.store.SaveTasks(snapshot)
}
