package common

import (
	"fmt"
	"time"
)

// FormatTimeAgo renders an elapsed duration as a human-readable "ago"
// string for status reports.
func FormatTimeAgo(elapsed time.Duration) string {
	if elapsed < 0 {
		return "Future"
	}
	days := int(elapsed.Hours()) / 24
	hours := int(elapsed.Hours()) % 24
	minutes := int(elapsed.Minutes()) % 60

	switch {
	case days > 0 && hours > 0:
		return fmt.Sprintf("%d days %d hours ago", days, hours)
	case days > 0:
		return fmt.Sprintf("%d days ago", days)
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%d hours %d minutes ago", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%d hours ago", hours)
	case minutes > 0:
		return fmt.Sprintf("%d minutes ago", minutes)
	}
	return "Just now"
}

// FormatDuration renders a span between two events for status reports.
func FormatDuration(span time.Duration) string {
	if span <= 0 {
		return "N/A"
	}
	days := int(span.Hours()) / 24
	hours := int(span.Hours()) % 24
	minutes := int(span.Minutes()) % 60

	switch {
	case days > 0 && hours > 0:
		return fmt.Sprintf("%d days %d hours", days, hours)
	case days > 0:
		return fmt.Sprintf("%d days", days)
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%d hours %d minutes", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%d hours", hours)
	case minutes > 0:
		return fmt.Sprintf("%d minutes", minutes)
	}
	return "< 1 minute"
}
