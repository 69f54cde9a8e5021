package intent

import (
	"regexp"
	"strings"
	"time"

	"server-warden/internal/temporal"
)

// Action is the primary moderation action extracted from an instruction.
type Action string

const (
	ActionTimeout Action = "timeout"
	ActionBan     Action = "ban"
	ActionKick    Action = "kick"
	ActionWarn    Action = "warn"
)

// User is a mentioned guild member, resolved by the caller before parsing.
type User struct {
	ID   string
	Name string
}

// Condition is a literal "if"/"unless" clause attached to the instruction.
type Condition struct {
	Type   string // "if" or "unless"
	Check  string
	Action string // "execute" or "cancel"
}

// CancelTrigger aborts a scheduled action when its pattern is matched
// against the target's messages.
type CancelTrigger struct {
	Pattern string
	Type    string // "message"
}

// Monitoring describes a watch window during which cancel triggers are live.
type Monitoring struct {
	WatchFor string
	Duration time.Duration
}

// ComplexIntent is the structured form of a natural-language moderation
// instruction. Everything except PrimaryAction is optional.
type ComplexIntent struct {
	PrimaryAction  Action
	Target         *User
	Time           *temporal.TimeExpression
	Monitoring     *Monitoring
	Conditions     []Condition
	CancelTriggers []CancelTrigger
	Confidence     int // 0..100, additive over extracted fields
	Raw            string
}

// DefaultMonitorWindow is the monitoring duration fallback when neither a
// monitoring-specific duration nor a delay is stated.
const DefaultMonitorWindow = 5 * time.Minute

// Confidence weights. The score is a deterministic sum of which optional
// fields were successfully extracted, not a statistical value.
const (
	weightAction     = 30
	weightTarget     = 25
	weightTime       = 20
	weightMonitoring = 15
	weightConditions = 10
)

// actionTable maps keyword families to actions, checked in order.
var actionTable = []struct {
	action Action
	re     *regexp.Regexp
}{
	{ActionTimeout, regexp.MustCompile(`(?i)\b(timeout|time\s+out|mute|silence)\b`)},
	{ActionBan, regexp.MustCompile(`(?i)\bban\b`)},
	{ActionKick, regexp.MustCompile(`(?i)\b(kick|remove)\b`)},
	{ActionWarn, regexp.MustCompile(`(?i)\bwarn\b`)},
}

var monitorKeywords = []string{"watch", "monitor", "observe", "check if", "see if"}

// watchPatterns try to capture the phrase being watched for. On failure the
// watched phrase defaults to "any violation".
var watchPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:check|see)\s+if\s+(?:he|she|they|the\s+user|\S+)\s+(.+?)(?:[,.]|$)`),
	regexp.MustCompile(`(?i)\b(?:watch|monitor|observe)\s+(?:\S+\s+)?for\s+([a-z][a-z\s]*?)(?:\s+for\s+\d|[,.]|$)`),
}

var (
	ifPattern     = regexp.MustCompile(`(?i)\bif\s+(.+?)(?:\s+then\b|[,.]|$)`)
	unlessPattern = regexp.MustCompile(`(?i)\bunless\s+(.+?)(?:[,.]|$)`)
)

// Cancellation triggers come in two shapes: "if X(,) (then) cancel" and
// "cancel if/when X".
var cancelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bif\s+(.+?)[,\s]+(?:then\s+)?cancel\b`),
	regexp.MustCompile(`(?i)\bcancel\s+(?:it\s+)?(?:if|when)\s+(.+?)(?:[,.]|$)`),
}

var structuralKeywords = []string{
	"after ", "in ", " for ", "watch", "monitor", "observe",
	"check if", "see if", "if ", "unless ", "cancel", "wait", "then ",
}

// Parser turns moderator free text into a ComplexIntent. It owns no state
// beyond the injected temporal parser.
type Parser struct {
	temporal *temporal.Parser
}

func NewParser(tp *temporal.Parser) *Parser {
	return &Parser{temporal: tp}
}

// IsComplexIntent is a fast pre-filter: does the text carry any structural
// keyword worth running the full parser for?
func IsComplexIntent(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range structuralKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Parse extracts the structured intent. Returns false when no primary action
// keyword is found; the action is mandatory, everything else is optional.
func (p *Parser) Parse(text string, mentioned []User) (*ComplexIntent, bool) {
	ci := &ComplexIntent{Raw: text}

	found := false
	for _, entry := range actionTable {
		if entry.re.MatchString(text) {
			ci.PrimaryAction = entry.action
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}
	ci.Confidence = weightAction

	// A missing target is still a valid intent, it may be resolved later
	// from conversation context.
	if len(mentioned) > 0 {
		ci.Target = &User{ID: mentioned[0].ID, Name: mentioned[0].Name}
		ci.Confidence += weightTarget
	}

	expr := p.temporal.Parse(text)
	if expr.HasDelay || expr.HasDuration {
		ci.Time = &expr
		ci.Confidence += weightTime
	}

	if mon := p.extractMonitoring(text, ci.Time); mon != nil {
		ci.Monitoring = mon
		ci.Confidence += weightMonitoring
	}

	ci.Conditions = extractConditions(text)
	if len(ci.Conditions) > 0 {
		ci.Confidence += weightConditions
	}

	ci.CancelTriggers = extractCancelTriggers(text)

	return ci, true
}

func (p *Parser) extractMonitoring(text string, expr *temporal.TimeExpression) *Monitoring {
	lower := strings.ToLower(text)
	present := false
	for _, kw := range monitorKeywords {
		if strings.Contains(lower, kw) {
			present = true
			break
		}
	}
	if !present {
		return nil
	}

	mon := &Monitoring{WatchFor: "any violation", Duration: DefaultMonitorWindow}
	for _, re := range watchPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if phrase := strings.TrimSpace(m[1]); phrase != "" {
				mon.WatchFor = phrase
			}
			break
		}
	}
	if expr != nil {
		switch {
		case expr.HasDuration:
			mon.Duration = expr.Duration
		case expr.HasDelay:
			mon.Duration = expr.Delay
		}
	}
	return mon
}

// extractConditions picks at most one "if" and one "unless" clause, first
// match only.
func extractConditions(text string) []Condition {
	var conds []Condition
	if m := ifPattern.FindStringSubmatch(text); m != nil {
		conds = append(conds, Condition{Type: "if", Check: strings.TrimSpace(m[1]), Action: "execute"})
	}
	if m := unlessPattern.FindStringSubmatch(text); m != nil {
		conds = append(conds, Condition{Type: "unless", Check: strings.TrimSpace(m[1]), Action: "cancel"})
	}
	return conds
}

func extractCancelTriggers(text string) []CancelTrigger {
	var triggers []CancelTrigger
	for _, re := range cancelPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			pattern := strings.TrimSpace(m[1])
			if pattern == "" {
				continue
			}
			triggers = append(triggers, CancelTrigger{Pattern: pattern, Type: "message"})
		}
	}
	return triggers
}
