package temporal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeExpression is the temporal structure extracted from a free-text
// moderation instruction. Delay answers "when to start", Duration answers
// "how long to watch or wait". A phrase may carry either, both, or neither.
type TimeExpression struct {
	Delay       time.Duration
	HasDelay    bool
	Duration    time.Duration
	HasDuration bool
	ExecuteAt   time.Time // now + Delay, set only when HasDelay
	Raw         string
}

const unitPattern = `(seconds?|secs?|minutes?|mins?|hours?|hrs?|days?|[smhd])`

// Delay phrases: "after N unit", "in N unit", "wait (for) N unit".
// First matching pattern wins, no attempt to resolve overlapping phrases.
var delayPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bafter\s+(\d+)\s*` + unitPattern + `\b`),
	regexp.MustCompile(`(?i)\bin\s+(\d+)\s*` + unitPattern + `\b`),
	regexp.MustCompile(`(?i)\bwait(?:ing)?(?:\s+for)?\s+(\d+)\s*` + unitPattern + `\b`),
}

// Duration phrases: "watch/monitor/observe/check (him) for N unit", "for N unit".
// The watch-family patterns come first so a bare "for" doesn't shadow them.
var durationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:watch|monitor|observe|check)(?:\s+\S+)?\s+for\s+(\d+)\s*` + unitPattern + `\b`),
	regexp.MustCompile(`(?i)\bfor\s+(\d+)\s*` + unitPattern + `\b`),
}

// Parser extracts delay and duration values from free text. It is a pure
// function of the input and the injected clock.
type Parser struct {
	now func() time.Time
}

func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// NewParserWithNow injects a clock, used by tests and by callers that need
// deterministic ExecuteAt values.
func NewParserWithNow(now func() time.Time) *Parser {
	return &Parser{now: now}
}

// Parse scans text against the delay and duration pattern families.
func (p *Parser) Parse(text string) TimeExpression {
	expr := TimeExpression{Raw: text}

	for _, re := range delayPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			expr.Delay = amount(m[1], m[2])
			expr.HasDelay = true
			expr.ExecuteAt = p.now().Add(expr.Delay)
			break
		}
	}

	for _, re := range durationPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			expr.Duration = amount(m[1], m[2])
			expr.HasDuration = true
			break
		}
	}

	return expr
}

// amount converts "10", "minutes" into a duration. Units are normalized by
// their first letter: s, m, h, d.
func amount(value, unit string) time.Duration {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	var per time.Duration
	switch strings.ToLower(unit)[0] {
	case 's':
		per = time.Second
	case 'm':
		per = time.Minute
	case 'h':
		per = time.Hour
	case 'd':
		per = 24 * time.Hour
	}
	return time.Duration(n) * per
}

// FormatDuration renders a duration using its largest unit only, for
// operator-facing confirmations: "2 minutes", "1 hour", "45 seconds".
func FormatDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day")
	case d >= time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
