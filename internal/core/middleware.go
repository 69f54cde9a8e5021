package core

import (
	"log"

	st "server-warden/internal/storagetypes"

	"github.com/bwmarrin/discordgo"
)

type Middleware func(Command) Command

type wrappedCommand struct {
	Command
	wrap func(ctx interface{}) error
}

func (w *wrappedCommand) Run(ctx interface{}) error {
	if w.wrap != nil {
		return w.wrap(ctx)
	}
	return w.Command.Run(ctx)
}

func (w *wrappedCommand) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := w.Command.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

func WithGuildOnly() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				if v, ok := ctx.(*SlashInteractionContext); ok && v.Event.GuildID == "" {
					return RespondEphemeral(v.Session, v.Event, "This command only works inside a server.")
				}
				if v, ok := ctx.(*MessageContext); ok && v.Event.GuildID == "" {
					return nil
				}
				return cmd.Run(ctx)
			},
		}
	}
}

func WithAdminCheck() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				v, ok := ctx.(*SlashInteractionContext)
				if !ok || !cmd.RequireAdmin() {
					return cmd.Run(ctx)
				}
				if v.Event.Member == nil || !IsAdministrator(v.Session, v.Event.GuildID, v.Event.Member, v.Deps.Config.DeveloperID) {
					return RespondEphemeral(v.Session, v.Event, "You must be an administrator to use this command.")
				}
				return cmd.Run(ctx)
			},
		}
	}
}

// WithModeratorGate admits administrators and members carrying the guild's
// configured moderator role (set via /settings modrole).
func WithModeratorGate() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				v, ok := ctx.(*SlashInteractionContext)
				if !ok || !cmd.RequireAdmin() {
					return cmd.Run(ctx)
				}
				if v.Event.Member == nil {
					return RespondEphemeral(v.Session, v.Event, "You must be an administrator or moderator to use this command.")
				}
				if IsAdministrator(v.Session, v.Event.GuildID, v.Event.Member, v.Deps.Config.DeveloperID) {
					return cmd.Run(ctx)
				}
				if roleID, err := v.Deps.Storage.GetModRole(v.Event.GuildID, "moderator"); err == nil {
					for _, r := range v.Event.Member.Roles {
						if r == roleID {
							return cmd.Run(ctx)
						}
					}
				}
				return RespondEphemeral(v.Session, v.Event, "You must be an administrator or moderator to use this command.")
			},
		}
	}
}

func WithCommandLogger() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				if v, ok := ctx.(*SlashInteractionContext); ok && v.Event.Member != nil {
					entry := st.CommandHistory{
						ChannelID: v.Event.ChannelID,
						UserID:    v.Event.Member.User.ID,
						Username:  v.Event.Member.User.Username,
						Command:   cmd.Name(),
					}
					if err := v.Deps.Storage.AppendCommandToHistory(v.Event.GuildID, entry); err != nil {
						log.Printf("[WARN] failed to log command %s: %v", cmd.Name(), err)
					}
				}
				return cmd.Run(ctx)
			},
		}
	}
}

func ApplyMiddlewares(cmd Command, mws ...Middleware) Command {
	for _, mw := range mws {
		cmd = mw(cmd)
	}
	return cmd
}
