package moderate

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server-warden/internal/intent"
	"server-warden/internal/tasks"
	"server-warden/internal/temporal"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testParser() *intent.Parser {
	return intent.NewParser(temporal.NewParserWithNow(func() time.Time { return fixedNow }))
}

func testEvent() *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			GuildID:   "g-1",
			ChannelID: "c-1",
			Member:    &discordgo.Member{User: &discordgo.User{ID: "u-mod", Username: "mod"}},
		},
	}
}

var bob = []intent.User{{ID: "u-bob", Name: "bob"}}

func TestBuildTaskInputCancelTriggerGetsDwellWindow(t *testing.T) {
	ci, ok := testParser().Parse("timeout @bob, cancel if he apologizes", bob)
	require.True(t, ok)
	require.NotEmpty(t, ci.CancelTriggers)
	require.Nil(t, ci.Time)

	in := buildTaskInput(ci, testEvent(), fixedNow)

	assert.Equal(t, tasks.TypeConditional, in.Type)
	require.NotNil(t, in.ExecuteAt)
	assert.Equal(t, fixedNow.Add(intent.DefaultMonitorWindow), *in.ExecuteAt,
		"a cancellation condition needs a window to be heard in")
	require.NotNil(t, in.CancelCondition)
	assert.Equal(t, "user_action", in.CancelCondition.Type)
	assert.Equal(t, "apology", in.CancelCondition.Value)
}

func TestBuildTaskInputDelayed(t *testing.T) {
	ci, ok := testParser().Parse("timeout @bob after 2 minutes", bob)
	require.True(t, ok)

	in := buildTaskInput(ci, testEvent(), fixedNow)

	assert.Equal(t, tasks.TypeScheduled, in.Type)
	require.NotNil(t, in.ExecuteAt)
	assert.Equal(t, fixedNow.Add(2*time.Minute), *in.ExecuteAt)
	assert.Nil(t, in.CancelCondition)
	assert.Nil(t, in.Monitoring)
	assert.Equal(t, "u-bob", in.Target.UserID)
	assert.Equal(t, "u-mod", in.CreatedBy.UserID)
	assert.Equal(t, "g-1", in.GuildID)
}

func TestBuildTaskInputDelayWinsOverTriggerWindow(t *testing.T) {
	ci, ok := testParser().Parse("ban @bob in 1 hour, cancel if he deletes it", bob)
	require.True(t, ok)
	require.NotEmpty(t, ci.CancelTriggers)

	in := buildTaskInput(ci, testEvent(), fixedNow)

	require.NotNil(t, in.ExecuteAt)
	assert.Equal(t, fixedNow.Add(time.Hour), *in.ExecuteAt)
	require.NotNil(t, in.CancelCondition)
	assert.Equal(t, "message", in.CancelCondition.Type)
	assert.Equal(t, "he deletes it", in.CancelCondition.Value)
}

func TestBuildTaskInputBareDurationIsActionLength(t *testing.T) {
	ci, ok := testParser().Parse("timeout @bob for 10 minutes", bob)
	require.True(t, ok)

	in := buildTaskInput(ci, testEvent(), fixedNow)

	assert.Equal(t, tasks.TypeImmediate, in.Type)
	assert.Equal(t, 10*time.Minute, in.Action.Duration)
	require.NotNil(t, in.ExecuteAt)
	assert.Equal(t, fixedNow, *in.ExecuteAt)
}

func TestBuildTaskInputMonitoringWindow(t *testing.T) {
	ci, ok := testParser().Parse("timeout @bob and watch him for 10 minutes", bob)
	require.True(t, ok)

	in := buildTaskInput(ci, testEvent(), fixedNow)

	assert.Equal(t, tasks.TypeConditional, in.Type)
	require.NotNil(t, in.Monitoring)
	assert.Equal(t, 10*time.Minute, in.Monitoring.Duration)
	assert.Zero(t, in.Action.Duration, "the span is the watch window, not the timeout length")
	require.NotNil(t, in.ExecuteAt)
	assert.Equal(t, fixedNow.Add(10*time.Minute), *in.ExecuteAt)
}
