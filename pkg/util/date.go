package util

import (
	"fmt"
	"strings"
	"time"
)

// dateTokens maps template placeholders to Go layout elements. Longer
// tokens come first so YYYY is never read as two YY.
var dateTokens = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MM", "01",
	"DD", "02",
	"hh", "15",
	"mm", "04",
	"ss", "05",
)

// FormatDateTpl formats t in UTC using a template with placeholders.
//
// Supported placeholders:
// - YYYY: 4-digit year
// - YY: 2-digit year
// - MM: 2-digit month (01-12)
// - DD: 2-digit day (01-31)
// - hh: 2-digit hour (00-23)
// - mm: 2-digit minute (00-59)
// - ss: 2-digit second (00-59)
//
// An empty string is returned for the zero time.
//
// Example:
//
//	FormatDateTpl(t, "YYYY-MM-DD")       // "2023-11-10"
//	FormatDateTpl(t, "DD/MM/YYYY hh:mm") // "10/11/2023 00:00"
func FormatDateTpl(t time.Time, tpl string) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTokens.Replace(tpl))
}

// FormatUptime renders d as days, hours and minutes: "4d 12h 36m".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d / time.Minute)
	return fmt.Sprintf("%dd %dh %dm", minutes/(24*60), minutes/60%24, minutes%60)
}
