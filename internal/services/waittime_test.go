package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateEstimatedWaitTime_AdmittedIsAlwaysZero(t *testing.T) {
	for _, active := range []int{0, 5, 10, 50} {
		assert.Zero(t, CalculateEstimatedWaitTime(0, active, 10, 5))
	}
}

func TestCalculateEstimatedWaitTime_BatchModel(t *testing.T) {
	tests := []struct {
		position      int
		activeCount   int
		maxConcurrent int
		avgMinutes    float64
		expected      float64
	}{
		// Within free capacity: admitted on the next cycle
		{1, 5, 10, 5, 0},
		{5, 5, 10, 5, 0},
		// One departure batch away
		{6, 5, 10, 5, 5},
		{1, 10, 10, 5, 5},
		// Two batches
		{16, 5, 10, 5, 10},
		// Full house, three batches ahead
		{21, 10, 10, 5, 15},
		// Overfull active count clamps available slots to zero
		{1, 15, 10, 5, 5},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("pos=%d active=%d", tt.position, tt.activeCount), func(t *testing.T) {
			got := CalculateEstimatedWaitTime(tt.position, tt.activeCount, tt.maxConcurrent, tt.avgMinutes)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCalculateEstimatedWaitTime_MonotonicInPosition(t *testing.T) {
	prev := 0.0
	for position := 1; position <= 100; position++ {
		got := CalculateEstimatedWaitTime(position, 10, 10, 5)
		assert.GreaterOrEqual(t, got, prev, "estimate decreased at position %d", position)
		prev = got
	}
}

func TestFormatWaitTime(t *testing.T) {
	tests := []struct {
		minutes  float64
		expected string
	}{
		{0, "Less than 1 minute"},
		{0.5, "Less than 1 minute"},
		{1, "About 1 minute"},
		{2, "About 2 minutes"},
		{3.5, "About 4 minutes"},
		{4, "About 4 minutes"},
		{5, "About 5 minutes"},
		{6, "About 5 minutes"},
		{7, "About 5 minutes"},
		{8, "About 10 minutes"},
		{9, "About 10 minutes"},
		{10, "About 10 minutes"},
		{14, "About 10 minutes"},
		{15, "About 20 minutes"},
		{44, "About 40 minutes"},
		{57, "About 1 hour"},
		{60, "About 1 hour"},
		{64, "About 1 hour"},
		{70, "About 1 hour and 10 minutes"},
		{85, "About 1 hour and 30 minutes"},
		{115, "About 2 hours"},
		{120, "About 2 hours"},
		{130, "About 2 hours and 10 minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatWaitTime(tt.minutes))
		})
	}
}

func TestGetQueueProgressPercentage(t *testing.T) {
	tests := []struct {
		position int
		total    int
		expected int
	}{
		{0, 10, 100},
		{5, 0, 100},
		{1, 10, 100},
		{5, 10, 60},
		{10, 10, 10},
		{1, 1, 100},
		{3, 4, 50},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, GetQueueProgressPercentage(tt.position, tt.total),
			"position %d of %d", tt.position, tt.total)
	}
}

func TestFormatQueuePosition(t *testing.T) {
	tests := map[int]string{
		1:   "1st",
		2:   "2nd",
		3:   "3rd",
		4:   "4th",
		10:  "10th",
		11:  "11th",
		12:  "12th",
		13:  "13th",
		21:  "21st",
		22:  "22nd",
		23:  "23rd",
		101: "101st",
		111: "111th",
		112: "112th",
		113: "113th",
		121: "121st",
	}

	for n, expected := range tests {
		assert.Equal(t, expected, FormatQueuePosition(n))
	}
}
