package moderate

import (
	"fmt"
	"strings"
	"time"

	"server-warden/internal/core"
	"server-warden/internal/tasks"
	"server-warden/internal/temporal"
	"server-warden/pkg/util"

	"github.com/bwmarrin/discordgo"
)

type TasksCommand struct{}

func (c *TasksCommand) Name() string        { return "tasks" }
func (c *TasksCommand) Description() string { return "List or cancel scheduled moderation tasks" }
func (c *TasksCommand) Category() string    { return "🛡️ Moderation" }
func (c *TasksCommand) RequireAdmin() bool  { return true }

func (c *TasksCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "Show tasks still waiting on their timer",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "cancel",
				Description: "Cancel a scheduled task",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "id",
						Description: "Task id from /tasks list",
						Required:    true,
					},
				},
			},
		},
	}
}

func (c *TasksCommand) Run(ctx interface{}) error {
	context, ok := ctx.(*core.SlashInteractionContext)
	if !ok {
		return nil
	}

	session := context.Session
	event := context.Event
	deps := context.Deps

	if len(event.ApplicationCommandData().Options) == 0 {
		return core.RespondEphemeral(session, event, "No subcommand provided.")
	}

	sub := event.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "list":
		return runList(session, event, deps)
	case "cancel":
		return runCancel(session, event, deps, sub)
	default:
		return core.RespondEphemeral(session, event, "Unknown subcommand.")
	}
}

func runList(s *discordgo.Session, e *discordgo.InteractionCreate, deps *core.Deps) error {
	active := deps.Tasks.MonitoringTasks(e.GuildID)
	if len(active) == 0 {
		return core.RespondEphemeral(s, e, "No active moderation tasks.")
	}

	var lines []string
	for _, t := range active {
		line := fmt.Sprintf("`%s` — **%s** <@%s> (%s)", t.ID, t.Action.Kind, t.Target.UserID, t.Status)
		if t.ExecuteAt != nil {
			line += fireLabel(*t.ExecuteAt)
		}
		if t.CancelCondition != nil {
			line += fmt.Sprintf(" — cancels on: %s", t.CancelCondition.Value)
		}
		lines = append(lines, line)
	}

	return core.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Title:       "Active moderation tasks",
		Description: strings.Join(lines, "\n"),
	})
}

// fireLabel renders a task deadline for the list view. A deadline that has
// already passed reads "overdue" instead of a negative countdown.
func fireLabel(executeAt time.Time) string {
	when := util.FormatDateTpl(executeAt.UnixMilli(), "YYYY-MM-DD hh:mm:ss")
	remaining := time.Until(executeAt)
	if remaining <= 0 {
		return fmt.Sprintf(" — fires %s (overdue)", when)
	}
	return fmt.Sprintf(" — fires %s (in %s)", when, temporal.FormatDuration(remaining))
}

func runCancel(s *discordgo.Session, e *discordgo.InteractionCreate, deps *core.Deps, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	var id string
	for _, opt := range sub.Options {
		if opt.Name == "id" {
			id = opt.StringValue()
		}
	}
	if id == "" {
		return core.RespondEphemeral(s, e, "Missing task id.")
	}

	task, ok := deps.Tasks.Task(id)
	if !ok || task.GuildID != e.GuildID {
		return core.RespondEphemeral(s, e, "No such task in this server.")
	}
	if task.Status.Terminal() {
		return core.RespondEphemeral(s, e, fmt.Sprintf("Task is already %s.", task.Status))
	}

	status := tasks.StatusCancelled
	result := fmt.Sprintf("Cancelled by moderator %s", e.Member.User.Username)
	deps.Tasks.UpdateTask(id, tasks.TaskUpdate{Status: &status, Result: &result})
	deps.Scheduler.CancelTask(id)

	return core.Respond(s, e, fmt.Sprintf("⏹️ Task `%s` cancelled. <@%s> lives to chat another day.", id, task.Target.UserID))
}

func init() {
	core.RegisterCommand(
		core.ApplyMiddlewares(
			&TasksCommand{},
			core.WithGuildOnly(),
			core.WithModeratorGate(),
			core.WithCommandLogger(),
		),
	)
}
