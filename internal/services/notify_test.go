package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifier_NilClientDropsSilently(t *testing.T) {
	n := NewNotifier(nil)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		n.NotifyPosition(ctx, "session_abc", "onsale-1", 3, 10, "About 5 minutes")
		n.NotifyAdmitted(ctx, "session_abc", "onsale-1")
		n.NotifyExpired(ctx, "session_abc", "onsale-1")
	})
}

func TestShouldNotifyPositionChange(t *testing.T) {
	tests := []struct {
		oldPos   int
		newPos   int
		expected bool
	}{
		// Reaching the front always notifies, even repeatedly
		{5, 0, true},
		{0, 0, true},
		{1, 0, true},
		// No movement never notifies
		{7, 7, false},
		{15, 15, false},
		{42, 42, false},
		// Front of the queue: every change
		{2, 1, true},
		{11, 10, true},
		{10, 9, true},
		{9, 10, true},
		// Middle: only 3-position bucket crossings
		{20, 19, false},
		{18, 17, true},
		{20, 17, true},
		{14, 13, false},
		{12, 11, true},
		// Back: only 5-position bucket crossings
		{28, 27, false},
		{30, 25, true},
		{24, 23, false},
		{25, 24, true},
		{26, 24, true},
		{100, 99, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d->%d", tt.oldPos, tt.newPos), func(t *testing.T) {
			assert.Equal(t, tt.expected, ShouldNotifyPositionChange(tt.oldPos, tt.newPos))
		})
	}
}

func TestShouldNotifyPositionChange_OncePerBucketCrossing(t *testing.T) {
	// Walking forward one position at a time from 30 to 21 crosses exactly
	// two 5-position buckets (at 29 and at 24).
	notified := 0
	last := 30
	for pos := 29; pos >= 21; pos-- {
		if ShouldNotifyPositionChange(last, pos) {
			notified++
			last = pos
		}
	}
	assert.Equal(t, 2, notified)
}
