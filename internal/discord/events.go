package discord

import (
	"fmt"
	"log"

	"server-warden/internal/core"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("[INFO] Logged in as %s#%s", r.User.Username, r.User.Discriminator)

	var defs []*discordgo.ApplicationCommand
	for _, cmd := range core.AllCommands() {
		if sp, ok := cmd.(core.SlashProvider); ok {
			if def := sp.SlashDefinition(); def != nil {
				defs = append(defs, def)
			}
		}
	}

	if _, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, "", defs); err != nil {
		log.Printf("[ERR] Failed to register slash commands: %v", err)
		return
	}
	log.Printf("[INFO] Registered %d slash command(s)", len(defs))
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	cmd, ok := core.GetCommand(name)
	if !ok {
		return
	}

	ctx := &core.SlashInteractionContext{
		Session: s,
		Event:   i,
		Deps:    b.deps(),
	}
	if err := cmd.Run(ctx); err != nil {
		log.Printf("[ERR] Error running command %s: %v", name, err)
		_ = core.RespondEphemeral(s, i, fmt.Sprintf("Error running command: %v", err))
	}
}

// onMessageCreate evaluates every inbound message against the cancel
// predicates of the author's live tasks. A match cancels both the durable
// task and the armed timer.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	for _, t := range b.tasks.MonitoringTasks(m.GuildID) {
		if t.Target.UserID != m.Author.ID {
			continue
		}
		if !b.tasks.CheckCancelCondition(t.ID, m.Content, m.Author.ID) {
			continue
		}

		b.scheduler.CancelTask(t.ID)
		log.Printf("[INFO] Task %s cancelled by message from %s", t.ID, m.Author.ID)
		_, _ = s.ChannelMessageSend(m.ChannelID,
			fmt.Sprintf("⏹️ Scheduled %s for <@%s> called off. Wise words arrived just in time.", t.Action.Kind, t.Target.UserID))
	}
}
