package util

import (
	"time"
)

// humanTimeFormat is the layout for human-readable timestamps with timezone.
const humanTimeFormat = "2 Jan 2006 15:04 MST"

// HumanTime formats a timestamp in a human-readable local format.
func HumanTime(t time.Time) string {
	return t.Local().Format(humanTimeFormat)
}

// FormatHumanTime converts an RFC3339 timestamp string to the human-readable
// format. Unparseable input is returned as-is.
func FormatHumanTime(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return HumanTime(t)
}
