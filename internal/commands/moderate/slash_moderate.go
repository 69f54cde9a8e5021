package moderate

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"server-warden/internal/core"
	"server-warden/internal/intent"
	"server-warden/internal/tasks"
	"server-warden/internal/temporal"

	"github.com/bwmarrin/discordgo"
)

type ModerateCommand struct{}

func (c *ModerateCommand) Name() string { return "moderate" }
func (c *ModerateCommand) Description() string {
	return "Schedule a moderation action from a natural-language instruction"
}
func (c *ModerateCommand) Category() string   { return "🛡️ Moderation" }
func (c *ModerateCommand) RequireAdmin() bool { return true }

func (c *ModerateCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "instruction",
				Description: "e.g. \"timeout @user after 2 minutes, cancel if they apologize\"",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "target",
				Description: "Target user, if not mentioned in the instruction",
				Required:    false,
			},
		},
	}
}

var mentionPattern = regexp.MustCompile(`<@!?(\d+)>`)

func (c *ModerateCommand) Run(ctx interface{}) error {
	context, ok := ctx.(*core.SlashInteractionContext)
	if !ok {
		return nil
	}

	session := context.Session
	event := context.Event
	deps := context.Deps

	var instruction string
	var mentioned []intent.User
	for _, opt := range event.ApplicationCommandData().Options {
		switch opt.Name {
		case "instruction":
			instruction = opt.StringValue()
		case "target":
			user := opt.UserValue(session)
			if user != nil {
				mentioned = append(mentioned, intent.User{ID: user.ID, Name: user.Username})
			}
		}
	}

	// Raw <@id> mentions inside the instruction text count as targets too.
	for _, m := range mentionPattern.FindAllStringSubmatch(instruction, -1) {
		if user, err := session.User(m[1]); err == nil {
			mentioned = append(mentioned, intent.User{ID: user.ID, Name: user.Username})
		}
	}

	ci, ok := deps.Intent.Parse(instruction, mentioned)
	if !ok {
		if intent.IsComplexIntent(instruction) {
			return core.RespondEphemeral(session, event,
				"I see scheduling words but no moderation action. Start with timeout, mute, ban, kick or warn.")
		}
		return core.RespondEphemeral(session, event,
			"I couldn't find a moderation action in that instruction. Try something like `timeout @user for 10 minutes`.")
	}
	if ci.Target == nil {
		return core.RespondEphemeral(session, event,
			"I understood the action but not who it's for. Mention the target or use the `target` option.")
	}

	now := time.Now()
	input := buildTaskInput(ci, event, now)

	task, err := deps.Tasks.CreateTask(input)
	if err != nil {
		log.Printf("[ERR] failed to create task: %v", err)
		return core.RespondEphemeral(session, event, fmt.Sprintf("Failed to save the task: ```%v```", err))
	}

	if err := deps.Arm(task); err != nil {
		log.Printf("[ERR] failed to arm task %s: %v", task.ID, err)
		return core.RespondEphemeral(session, event, fmt.Sprintf("Saved the task but couldn't schedule it: ```%v```", err))
	}

	return core.RespondEmbed(session, event, confirmationEmbed(ci, task))
}

// buildTaskInput translates the parsed intent into the durable task shape.
func buildTaskInput(ci *intent.ComplexIntent, event *discordgo.InteractionCreate, now time.Time) tasks.CreateTaskInput {
	action := tasks.Action{
		Kind:      string(ci.PrimaryAction),
		Reason:    ci.Raw,
		ChannelID: event.ChannelID,
	}
	// A bare "for N minutes" with no watch keyword is the action's own
	// length (e.g. the timeout duration), not a monitoring window.
	if ci.Time != nil && ci.Time.HasDuration && ci.Monitoring == nil {
		action.Duration = ci.Time.Duration
	}

	var monitoring *tasks.Monitoring
	if ci.Monitoring != nil {
		monitoring = &tasks.Monitoring{Duration: ci.Monitoring.Duration}
	}

	executeAt := now
	switch {
	case ci.Time != nil && ci.Time.HasDelay:
		executeAt = ci.Time.ExecuteAt
	case monitoring != nil:
		executeAt = now.Add(monitoring.Duration)
	case len(ci.CancelTriggers) > 0:
		// A cancellation condition needs a window in which it can be heard;
		// firing at once would make the trigger unreachable.
		executeAt = now.Add(intent.DefaultMonitorWindow)
	}

	taskType := tasks.TypeImmediate
	switch {
	case monitoring != nil || len(ci.CancelTriggers) > 0 || len(ci.Conditions) > 0:
		taskType = tasks.TypeConditional
	case ci.Time != nil && ci.Time.HasDelay:
		taskType = tasks.TypeScheduled
	}

	var cancelCond *tasks.CancelCondition
	if len(ci.CancelTriggers) > 0 {
		cancelCond = toCancelCondition(ci.CancelTriggers[0])
	}

	var condition string
	if len(ci.Conditions) > 0 {
		condition = ci.Conditions[0].Check
	}

	input := tasks.CreateTaskInput{
		Type:    taskType,
		Action:  action,
		Target:  tasks.Actor{UserID: ci.Target.ID, UserName: ci.Target.Name},
		GuildID: event.GuildID,
		CreatedBy: tasks.Actor{
			UserID:   event.Member.User.ID,
			UserName: event.Member.User.Username,
		},
		Condition:       condition,
		ExecuteAt:       &executeAt,
		CancelCondition: cancelCond,
		Monitoring:      monitoring,
	}
	return input
}

// toCancelCondition maps a trigger phrase onto the task's single predicate.
// Anything that reads like an apology collapses to the "apology" category,
// which matches a fixed set of phrases rather than the literal text.
func toCancelCondition(trigger intent.CancelTrigger) *tasks.CancelCondition {
	lower := strings.ToLower(trigger.Pattern)
	if strings.Contains(lower, "apolog") || strings.Contains(lower, "sorry") {
		return &tasks.CancelCondition{Type: "user_action", Value: "apology"}
	}
	return &tasks.CancelCondition{Type: "message", Value: trigger.Pattern}
}

func confirmationEmbed(ci *intent.ComplexIntent, task tasks.Task) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Action", Value: string(ci.PrimaryAction), Inline: true},
		{Name: "Target", Value: fmt.Sprintf("<@%s>", task.Target.UserID), Inline: true},
		{Name: "Confidence", Value: fmt.Sprintf("%d%%", ci.Confidence), Inline: true},
	}

	if ci.Time != nil && ci.Time.HasDelay {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Fires in",
			Value: temporal.FormatDuration(ci.Time.Delay),
		})
	}
	if task.Monitoring != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Watching",
			Value: fmt.Sprintf("%s for %s", ci.Monitoring.WatchFor, temporal.FormatDuration(task.Monitoring.Duration)),
		})
	}
	if task.CancelCondition != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Cancels if",
			Value: task.CancelCondition.Value,
		})
	}

	return &discordgo.MessageEmbed{
		Title:       "Moderation task scheduled",
		Description: fmt.Sprintf("`%s`", task.ID),
		Fields:      fields,
	}
}

func init() {
	core.RegisterCommand(
		core.ApplyMiddlewares(
			&ModerateCommand{},
			core.WithGuildOnly(),
			core.WithModeratorGate(),
			core.WithCommandLogger(),
		),
	)
}
