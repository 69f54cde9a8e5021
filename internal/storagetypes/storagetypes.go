package storagetypes

import (
	"time"

	"server-warden/internal/tasks"
)

type CommandHistory struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Datetime    time.Time `json:"datetime"`
}

// Record is everything persisted for one guild. The moderation task table
// is keyed by task id; Date-typed fields inside tasks come back from JSON
// as RFC 3339 and round-trip without extra handling.
type Record struct {
	ModRoles        map[string]string     `json:"mod_roles"`
	ModTasks        map[string]tasks.Task `json:"mod_tasks"`
	CommandsHistory []CommandHistory      `json:"commands_history"`
}
