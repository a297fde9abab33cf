package metrics

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const (
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		device  DeviceType
		os      string
		browser string
	}{
		{"windows chrome", desktopUA, Desktop, "Windows", "Chrome"},
		{"windows edge", desktopUA + " Edg/120.0.0.0", Desktop, "Windows", "Edge"},
		{"mac firefox", "Mozilla/5.0 (Macintosh; Intel Mac OS X 14.1; rv:121.0) Gecko/20100101 Firefox/121.0", Desktop, "Mac", "Firefox"},
		{"iphone safari", iphoneUA, Mobile, "iOS", "Safari"},
		{"ipad safari", "Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1", Tablet, "iOS", "Safari"},
		{"android chrome", "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36", Mobile, "Android", "Chrome"},
		{"linux opera", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 OPR/106.0.0.0", Desktop, "Linux", "Opera"},
		{"curl", "curl/8.4.0", Desktop, Unknown, Unknown},
		{"empty", "", Desktop, Unknown, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.ua)
			assert.Equal(t, tt.device, got.DeviceType)
			assert.Equal(t, tt.os, got.OS)
			assert.Equal(t, tt.browser, got.Browser)
			assert.Equal(t, tt.ua, got.UserAgent)
		})
	}
}

func TestGenerateTipID(t *testing.T) {
	now := time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	re := regexp.MustCompile(`^tip_20240302_\d{3}$`)
	for i := 0; i < 50; i++ {
		assert.Regexp(t, re, GenerateTipID(now))
	}
}

func TestStampUsesUTC(t *testing.T) {
	var e Event
	e.stamp(time.Date(2024, 3, 1, 22, 15, 0, 123456789, time.FixedZone("UTC-3", -3*3600)))

	assert.Equal(t, "2024-03-02", e.Date)
	assert.Equal(t, 1, e.Hour)
	assert.Equal(t, time.UTC, e.Timestamp.Location())
	assert.Equal(t, 123000000, e.Timestamp.Nanosecond())
}

func TestInteractionTypeValid(t *testing.T) {
	assert.True(t, View.Valid())
	assert.True(t, Click.Valid())
	assert.True(t, TimeSpent.Valid())
	assert.False(t, InteractionType("scroll").Valid())
}
