package view

import (
	"fmt"
	"strings"
	"time"

	"prawnik-web/internal/contextcache"
)

// RelativeTime formats a backend timestamp as Polish relative time.
func RelativeTime(value string, now time.Time) string {
	t, err := contextcache.ParseCreatedAt(value)
	if err != nil {
		return "Nieprawidłowa data"
	}

	diff := now.Sub(t)
	minutes := int(diff / time.Minute)
	hours := minutes / 60
	days := hours / 24

	switch {
	case days == 0 && minutes < 1:
		return "przed chwilą"
	case days == 0 && minutes < 60:
		return fmt.Sprintf("%d min. temu", minutes)
	case days == 0:
		return fmt.Sprintf("%d godz. temu", hours)
	case days == 1:
		return "wczoraj"
	case days < 7:
		return fmt.Sprintf("%d dni temu", days)
	case days/7 < 4:
		return fmt.Sprintf("%d tyg. temu", days/7)
	case days/30 < 12:
		return fmt.Sprintf("%d mies. temu", days/30)
	}
	return fmt.Sprintf("%d lat temu", days/365)
}

// Truncate shortens text to at most maxLen runes including the "..."
// suffix, cutting at a word boundary when one lies in the second half.
func Truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return strings.TrimSpace(text)
	}
	if maxLen < 4 {
		return string(runes[:maxLen])
	}

	available := maxLen - 3
	cut := []rune(strings.TrimSpace(text))[:available]
	for i := len(cut) - 1; i > available/2; i-- {
		if cut[i] == ' ' {
			return string(cut[:i]) + "..."
		}
	}
	return string(cut) + "..."
}
