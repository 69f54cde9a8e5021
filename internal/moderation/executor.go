package moderation

import (
	"context"
	"fmt"
	"log"
	"time"

	"server-warden/internal/tasks"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// Action payload kinds the executor understands.
const (
	KindTimeout = "timeout"
	KindBan     = "ban"
	KindKick    = "kick"
	KindWarn    = "warn"
)

const defaultTimeoutLength = 10 * time.Minute

// Executor performs the real moderation action against the Discord API.
// From the task engine's point of view it is an opaque callback; the
// shared limiter keeps bursts of expiring tasks inside the API budget.
type Executor struct {
	session *discordgo.Session
	limiter *rate.Limiter
}

func NewExecutor(session *discordgo.Session, rps float64) *Executor {
	if rps <= 0 {
		rps = 5
	}
	return &Executor{
		session: session,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Execute interprets the task's action payload and calls the matching
// Discord endpoint.
func (e *Executor) Execute(ctx context.Context, t tasks.Task) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	log.Printf("[INFO] executing %s against %s in guild %s", t.Action.Kind, t.Target.UserID, t.GuildID)

	switch t.Action.Kind {
	case KindTimeout:
		length := t.Action.Duration
		if length <= 0 {
			length = defaultTimeoutLength
		}
		until := time.Now().Add(length)
		if err := e.session.GuildMemberTimeout(t.GuildID, t.Target.UserID, &until); err != nil {
			return fmt.Errorf("failed to timeout %s: %w", t.Target.UserID, err)
		}

	case KindBan:
		if err := e.session.GuildBanCreateWithReason(t.GuildID, t.Target.UserID, t.Action.Reason, 0); err != nil {
			return fmt.Errorf("failed to ban %s: %w", t.Target.UserID, err)
		}

	case KindKick:
		if err := e.session.GuildMemberDeleteWithReason(t.GuildID, t.Target.UserID, t.Action.Reason); err != nil {
			return fmt.Errorf("failed to kick %s: %w", t.Target.UserID, err)
		}

	case KindWarn:
		msg := fmt.Sprintf("⚠️ <@%s> consider this a warning.", t.Target.UserID)
		if t.Action.Reason != "" {
			msg = fmt.Sprintf("⚠️ <@%s> consider this a warning: %s", t.Target.UserID, t.Action.Reason)
		}
		if _, err := e.session.ChannelMessageSend(t.Action.ChannelID, msg); err != nil {
			return fmt.Errorf("failed to warn %s: %w", t.Target.UserID, err)
		}

	default:
		return fmt.Errorf("unknown action kind '%s'", t.Action.Kind)
	}

	return nil
}
