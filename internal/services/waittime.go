package services

import (
	"fmt"
	"math"
)

// CalculateEstimatedWaitTime converts a queue position into estimated minutes
// until admission. The model assumes departures happen in batches of
// maxConcurrent every avgSessionMinutes; it trades accuracy for an estimate
// that never decreases as position grows.
func CalculateEstimatedWaitTime(position, activeCount, maxConcurrent int, avgSessionMinutes float64) float64 {
	if position <= 0 || maxConcurrent <= 0 {
		return 0
	}

	availableSlots := maxConcurrent - activeCount
	if availableSlots < 0 {
		availableSlots = 0
	}
	if position <= availableSlots {
		return 0
	}

	usersAhead := position - availableSlots
	groupsToWait := math.Ceil(float64(usersAhead) / float64(maxConcurrent))
	return groupsToWait * avgSessionMinutes
}

// FormatWaitTime renders an estimate as a human string, rounding harder the
// further out the estimate is so the figure looks stable between polls.
func FormatWaitTime(minutes float64) string {
	if minutes < 1 {
		return "Less than 1 minute"
	}

	if minutes >= 60 {
		hours := int(minutes) / 60
		remainder := minutes - float64(hours)*60
		rounded := int(math.Round(remainder/10)) * 10
		if rounded >= 60 {
			hours++
			rounded = 0
		}
		if rounded == 0 {
			if hours == 1 {
				return "About 1 hour"
			}
			return fmt.Sprintf("About %d hours", hours)
		}
		if hours == 1 {
			return fmt.Sprintf("About 1 hour and %d minutes", rounded)
		}
		return fmt.Sprintf("About %d hours and %d minutes", hours, rounded)
	}

	whole := int(math.Ceil(minutes))
	switch {
	case whole == 1:
		return "About 1 minute"
	case whole <= 4:
		return fmt.Sprintf("About %d minutes", whole)
	case whole < 10:
		rounded := int(math.Round(float64(whole)/5)) * 5
		if rounded < 5 {
			rounded = 5
		}
		return fmt.Sprintf("About %d minutes", rounded)
	default:
		rounded := int(math.Round(float64(whole)/10)) * 10
		if rounded >= 60 {
			return "About 1 hour"
		}
		return fmt.Sprintf("About %d minutes", rounded)
	}
}

// GetQueueProgressPercentage maps a position to a 0-100 progress value where
// the front of the queue reads 100.
func GetQueueProgressPercentage(position, total int) int {
	if position == 0 || total == 0 {
		return 100
	}

	percent := int(math.Round(float64(total-position+1) / float64(total) * 100))
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// FormatQueuePosition renders n as an English ordinal ("1st", "22nd", "113th").
func FormatQueuePosition(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
		// 11th, 12th, 13th and every ...11/...12/...13
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
