package core

import (
	"server-warden/internal/config"
	"server-warden/internal/intent"
	"server-warden/internal/storage"
	"server-warden/internal/tasks"

	"github.com/bwmarrin/discordgo"
)

type Command interface {
	Name() string
	Description() string
	Category() string
	RequireAdmin() bool
	Run(ctx interface{}) error
}

// SlashProvider - how this command should be registered with Discord.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// Deps bundles the services commands run against. The bot builds one per
// event instead of commands reaching for ambient singletons.
type Deps struct {
	Storage   *storage.Storage
	Tasks     *tasks.Manager
	Scheduler *tasks.Scheduler
	Intent    *intent.Parser
	Config    *config.Config

	// Arm hands a created task to the bot's scheduler wiring, which runs the
	// real moderation action when the timer wins the race.
	Arm func(t tasks.Task) error
}

// Contexts - what runtime hands you when executing a command.
type SlashInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Deps    *Deps
}

type MessageContext struct {
	Session *discordgo.Session
	Event   *discordgo.MessageCreate
	Deps    *Deps
}
