package tasks

import "time"

// Type classifies how a task becomes eligible to execute.
type Type string

const (
	TypeImmediate   Type = "immediate"
	TypeScheduled   Type = "scheduled"
	TypeConditional Type = "conditional"
)

// Status is the task state machine:
// pending|monitoring -> completed|cancelled, executing -> completed|failed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusMonitoring Status = "monitoring"
	StatusExecuting  Status = "executing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Actor identifies a guild member, either the target of a task or the
// moderator who created it.
type Actor struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// Action is the payload handed to the external executor when the task fires.
// The manager and scheduler never look inside it.
type Action struct {
	Kind      string        `json:"kind"`
	Reason    string        `json:"reason,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	ChannelID string        `json:"channel_id,omitempty"`
}

// CancelCondition is the single predicate evaluated against the target's
// messages while the task is non-terminal.
type CancelCondition struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Monitoring is the watch window before the action becomes eligible.
type Monitoring struct {
	Duration time.Duration `json:"duration"`
}

// Task is the durable record of one deferred, monitored or conditional
// moderation intent. Mutated only through Manager.UpdateTask.
type Task struct {
	ID              string           `json:"id"`
	Type            Type             `json:"type"`
	Action          Action           `json:"action"`
	Target          Actor            `json:"target"`
	CreatedBy       Actor            `json:"created_by"`
	GuildID         string           `json:"guild_id"`
	Condition       string           `json:"condition,omitempty"`
	ExecuteAt       *time.Time       `json:"execute_at,omitempty"`
	CancelCondition *CancelCondition `json:"cancel_condition,omitempty"`
	Monitoring      *Monitoring      `json:"monitoring,omitempty"`
	Status          Status           `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	ExecutedAt      *time.Time       `json:"executed_at,omitempty"`
	Result          string           `json:"result,omitempty"`
	Error           string           `json:"error,omitempty"`
}
