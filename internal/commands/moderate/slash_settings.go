package moderate

import (
	"fmt"
	"strings"

	"server-warden/internal/core"
	"server-warden/pkg/util"

	"github.com/bwmarrin/discordgo"
)

const historyDisplayLimit = 15

type SettingsCommand struct{}

func (c *SettingsCommand) Name() string        { return "settings" }
func (c *SettingsCommand) Description() string { return "Configure the bot for this server" }
func (c *SettingsCommand) Category() string    { return "⚙️ Settings" }
func (c *SettingsCommand) RequireAdmin() bool  { return true }

func (c *SettingsCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "modrole",
				Description: "Set the role allowed to run moderation commands",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionRole,
						Name:        "role",
						Description: "Select a role from the server",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "log",
				Description: "Review recently issued commands",
			},
		},
	}
}

func (c *SettingsCommand) Run(ctx interface{}) error {
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
	case "modrole":
		return runModRole(session, event, deps, sub)
	case "log":
		return runLog(session, event, deps)
	default:
		return core.RespondEphemeral(session, event, "Unknown subcommand.")
	}
}

func runModRole(s *discordgo.Session, e *discordgo.InteractionCreate, deps *core.Deps, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	var roleID string
	for _, opt := range sub.Options {
		if opt.Name == "role" {
			roleID = opt.RoleValue(s, e.GuildID).ID
		}
	}
	if roleID == "" {
		return core.RespondEphemeral(s, e, "Missing role.")
	}

	if err := deps.Storage.SetModRole(e.GuildID, "moderator", roleID); err != nil {
		return core.RespondEphemeral(s, e, fmt.Sprintf("Failed to save the role: ```%v```", err))
	}

	return core.RespondEphemeral(s, e, fmt.Sprintf("✅ Members with <@&%s> can now run moderation commands.", roleID))
}

func runLog(s *discordgo.Session, e *discordgo.InteractionCreate, deps *core.Deps) error {
	history, err := deps.Storage.FetchCommandHistory(e.GuildID)
	if err != nil {
		return core.RespondEphemeral(s, e, fmt.Sprintf("Failed to fetch the log: ```%v```", err))
	}
	if len(history) == 0 {
		return core.RespondEphemeral(s, e, "No commands on record yet.")
	}

	if len(history) > historyDisplayLimit {
		history = history[len(history)-historyDisplayLimit:]
	}

	var lines []string
	for _, h := range history {
		lines = append(lines, fmt.Sprintf("`%s` **/%s** by %s",
			util.FormatDateTpl(h.Datetime.UnixMilli(), "YYYY-MM-DD hh:mm:ss"), h.Command, h.Username))
	}

	return core.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Title:       "Recent commands",
		Description: strings.Join(lines, "\n"),
	})
}

func init() {
	core.RegisterCommand(
		core.ApplyMiddlewares(
			&SettingsCommand{},
			core.WithGuildOnly(),
			core.WithAdminCheck(),
			core.WithCommandLogger(),
		),
	)
}
