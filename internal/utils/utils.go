// Package utils holds small helpers shared by the HTTP handlers.
package utils

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode"
)

// TimeAgo converts a timestamp into a human-readable string like "5 mins ago"
func TimeAgo(t, now time.Time) string {
	duration := now.Sub(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return plural(int(duration.Minutes()), "min")
	case duration < 24*time.Hour:
		return plural(int(duration.Hours()), "hr")
	case duration < 7*24*time.Hour:
		return plural(int(duration.Hours()/24), "day")
	case duration < 30*24*time.Hour:
		return plural(int(duration.Hours()/(24*7)), "week")
	case duration < 365*24*time.Hour:
		return plural(int(duration.Hours()/(24*30)), "month")
	default:
		return plural(int(duration.Hours()/(24*365)), "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// TruncateContent keeps the first wordLimit words.
func TruncateContent(content string, wordLimit int) string {
	words := strings.Fields(content)
	if len(words) > wordLimit {
		return strings.Join(words[:wordLimit], " ") + "..."
	}
	return content
}

// Initials returns up to two uppercase initials for a display name.
func Initials(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-' || r == '.'
	})
	switch len(parts) {
	case 0:
		return "?"
	case 1:
		r := []rune(parts[0])
		if len(r) >= 2 {
			return strings.ToUpper(string(r[:2]))
		}
		return strings.ToUpper(string(r))
	default:
		first := []rune(parts[0])[0]
		last := []rune(parts[len(parts)-1])[0]
		return strings.ToUpper(string([]rune{first, last}))
	}
}

// AvatarColor picks a stable HSL colour for a username.
func AvatarColor(username string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return fmt.Sprintf("hsl(%d, 70%%, 60%%)", h.Sum32()%360)
}
