package security

import (
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_SuspiciousUserAgent(t *testing.T) {
	db, _ := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 30, time.Minute)

	tests := []struct {
		userAgent  string
		suspicious bool
	}{
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)", false},
		{"Googlebot/2.1", true},
		{"my-crawler/1.0", true},
		{"SpiderMonkey", true},
		{"price-scraper", true},
		{"curl/8.4.0", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.userAgent, func(t *testing.T) {
			assert.Equal(t, tt.suspicious, limiter.isSuspiciousUserAgent(tt.userAgent))
		})
	}
}
