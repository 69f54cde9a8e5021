// Package jobmgr runs named background jobs with cancellation and lifecycle
// callbacks. The bot uses it to keep its long-lived loops (sweeper, Discord
// session) individually stoppable.
//
//	jm := jobmgr.NewManager(func(msg string) {
//	    log.Println("JOB:", msg)
//	})
//
//	_ = jm.StartAsync("task-sweeper", func(ctx context.Context) error {
//	    // run until ctx is cancelled
//	    return nil
//	})
//
//	// later...
//	_ = jm.Stop("task-sweeper")
//
// Intentionally minimal: no retries, no workers, no persistence. Jobs run in
// their own goroutines and are removed automatically on completion.
package jobmgr

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Job is one running unit of work, tracked by its Manager.
type Job struct {
	Name   string
	Cancel context.CancelFunc
}

// StatusReporter receives lifecycle events for jobs:
//
//	running:task-sweeper
//	error:discord-bot:websocket closed
//	done:task-sweeper
type StatusReporter func(string)

// Manager starts, stops and tracks jobs. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	Reporter StatusReporter
}

// NewManager creates a Manager. The reporter callback may be nil.
func NewManager(reporter StatusReporter) *Manager {
	return &Manager{
		jobs:     make(map[string]*Job),
		Reporter: reporter,
	}
}

// StartAsync runs a job in its own goroutine and returns immediately.
// Starting a name that is already running is an error. Jobs remove
// themselves when the runner returns.
func (m *Manager) StartAsync(name string, runner func(ctx context.Context) error) error {
	m.mu.Lock()
	if _, exists := m.jobs[name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("job '%s' is already running", name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.jobs[name] = &Job{Name: name, Cancel: cancel}
	m.mu.Unlock()

	go func() {
		m.report("running:" + name)

		if err := runner(ctx); err != nil {
			m.report("error:" + name + ":" + err.Error())
		} else {
			m.report("done:" + name)
		}

		m.mu.Lock()
		delete(m.jobs, name)
		m.mu.Unlock()
	}()

	return nil
}

// Stop cancels a running job by name.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job '%s' not running", name)
	}

	job.Cancel()
	delete(m.jobs, name)
	return nil
}

// StopAll cancels every running job.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, job := range m.jobs {
		job.Cancel()
		delete(m.jobs, name)
	}
}

// List returns the active job names.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	return out
}

// Status returns a human-readable summary of active jobs.
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Running jobs: %s", strings.Join(active, ", "))
}

func (m *Manager) report(s string) {
	if m.Reporter != nil {
		m.Reporter(s)
	}
}
