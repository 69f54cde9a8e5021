package discord

import (
	"context"
	"fmt"
	"log"
	"time"

	"server-warden/internal/config"
	"server-warden/internal/core"
	"server-warden/internal/intent"
	"server-warden/internal/moderation"
	"server-warden/internal/storage"
	"server-warden/internal/tasks"
	"server-warden/internal/temporal"

	"github.com/bwmarrin/discordgo"
)

// Bot is the Discord front of the task engine: it feeds the message stream
// into cancel checks, dispatches slash commands and re-arms persisted tasks
// on startup.
type Bot struct {
	dg           *discordgo.Session
	cfg          *config.Config
	storage      *storage.Storage
	tasks        *tasks.Manager
	scheduler    *tasks.Scheduler
	executor     *moderation.Executor
	intentParser *intent.Parser
	ready        chan struct{}
}

func NewBot(cfg *config.Config, store *storage.Storage, manager *tasks.Manager, scheduler *tasks.Scheduler) *Bot {
	return &Bot{
		cfg:          cfg,
		storage:      store,
		tasks:        manager,
		scheduler:    scheduler,
		intentParser: intent.NewParser(temporal.NewParser()),
		ready:        make(chan struct{}),
	}
}

// Ready is closed once the session is open and persisted tasks are re-armed.
// The sweeper waits on it so a sweep cannot promote an overdue task before
// the bot is able to execute it.
func (b *Bot) Ready() <-chan struct{} { return b.ready }

// Run starts the Discord session and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	b.dg = dg
	b.executor = moderation.NewExecutor(dg, b.cfg.ModerationRPS)

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onInteractionCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	b.tasks.SetReadyHandler(b.executeReady)
	b.resumeTasks()
	close(b.ready)

	<-ctx.Done()
	log.Println("[INFO] ❎ Shutdown signal received. Cleaning up...")
	return nil
}

func (b *Bot) deps() *core.Deps {
	return &core.Deps{
		Storage:   b.storage,
		Tasks:     b.tasks,
		Scheduler: b.scheduler,
		Intent:    b.intentParser,
		Config:    b.cfg,
		Arm:       b.armTask,
	}
}

// armTask hands a task's completion callback to the scheduler. The callback
// claims the durable task right before acting, so a cancellation or a sweep
// promotion recorded first wins the race and the action runs at most once.
func (b *Bot) armTask(t tasks.Task) error {
	if t.ExecuteAt == nil {
		return fmt.Errorf("task %s has no execution time", t.ID)
	}

	_, err := b.scheduler.Schedule(t, func(ctx context.Context) error {
		cur, ok := b.tasks.ClaimForExecution(t.ID)
		if !ok {
			// Cancelled, already resolved, or swept while the timer was armed.
			return nil
		}

		now := time.Now()
		if err := b.executor.Execute(ctx, cur); err != nil {
			status := tasks.StatusFailed
			errStr := err.Error()
			b.tasks.UpdateTask(t.ID, tasks.TaskUpdate{Status: &status, Error: &errStr, ExecutedAt: &now})
			return err
		}

		status := tasks.StatusCompleted
		result := "Action executed"
		b.tasks.UpdateTask(t.ID, tasks.TaskUpdate{Status: &status, Result: &result, ExecutedAt: &now})
		return nil
	})
	return err
}

// executeReady performs the action for a task the sweep promoted past its
// deadline or watch window. The scheduler timer is the usual execution
// path; this one covers tasks whose timer was never armed (a deadline that
// passed while the process was down) or whose timer lost the promotion
// race. The sweep's completed transition is the execution claim, so a
// concurrent timer fire finds the task resolved and backs off.
func (b *Bot) executeReady(t tasks.Task) {
	b.scheduler.CancelTask(t.ID)

	now := time.Now()
	if err := b.executor.Execute(context.Background(), t); err != nil {
		log.Printf("[ERR] Failed to execute ready task %s: %v", t.ID, err)
		status := tasks.StatusFailed
		errStr := err.Error()
		b.tasks.UpdateTask(t.ID, tasks.TaskUpdate{Status: &status, Error: &errStr, ExecutedAt: &now})
		return
	}

	result := "Action executed"
	b.tasks.UpdateTask(t.ID, tasks.TaskUpdate{Result: &result, ExecutedAt: &now})
}

// resumeTasks re-arms timers for tasks that survived a restart. Past
// deadlines execute immediately via the scheduler's own short-circuit.
func (b *Bot) resumeTasks() {
	active := b.tasks.MonitoringTasks("")
	rearmed := 0
	for _, t := range active {
		if t.ExecuteAt == nil {
			continue
		}
		log.Printf("[INFO] Found persisted task — Action: %s | Guild: %s | Target: %s", t.Action.Kind, t.GuildID, t.Target.UserID)
		if err := b.armTask(t); err != nil {
			log.Printf("[ERR] Failed to re-arm task %s: %v", t.ID, err)
			continue
		}
		rearmed++
	}
	if rearmed > 0 {
		log.Printf("[INFO] Re-armed %d persisted task(s)", rearmed)
	}
}
