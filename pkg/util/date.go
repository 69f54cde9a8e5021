package util

import (
	"strings"
	"time"
)

// datePlaceholders maps template tokens onto Go's reference-time layout.
// Ordered so YYYY is rewritten before YY eats it.
var datePlaceholders = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"hh", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

// FormatDateTpl renders a millisecond Unix timestamp through a placeholder
// template, e.g. FormatDateTpl(ts, "YYYY-MM-DD hh:mm:ss"). A zero timestamp
// renders as an empty string.
func FormatDateTpl(ts int64, tpl string) string {
	if ts == 0 {
		return ""
	}

	layout := tpl
	for _, p := range datePlaceholders {
		layout = strings.ReplaceAll(layout, p.token, p.layout)
	}

	return time.UnixMilli(ts).Format(layout)
}
