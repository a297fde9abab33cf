// Package metrics records landing-page interactions (views, clicks, time on
// page) into an append-only SQLite event log and answers the dashboard's
// windowed aggregate queries.
package metrics

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// InteractionType is the kind of tracked interaction.
type InteractionType string

const (
	View      InteractionType = "view"
	Click     InteractionType = "click"
	TimeSpent InteractionType = "time_spent"
)

// Valid reports whether t is one of the known interaction types.
func (t InteractionType) Valid() bool {
	switch t {
	case View, Click, TimeSpent:
		return true
	}
	return false
}

// DeviceType is the coarse device class derived from the User-Agent.
type DeviceType string

const (
	Mobile  DeviceType = "mobile"
	Desktop DeviceType = "desktop"
	Tablet  DeviceType = "tablet"
)

// Unknown is reported for an OS or browser no rule matched.
const Unknown = "Unknown"

// DeviceInfo is the classification stored with every event.
type DeviceInfo struct {
	DeviceType DeviceType `json:"deviceType"`
	OS         string     `json:"os"`
	Browser    string     `json:"browser"`
	UserAgent  string     `json:"userAgent"`
}

// Event is one immutable row of the interaction log.
type Event struct {
	ID          string          `json:"id"`
	TipID       string          `json:"tipId"`
	SessionID   string          `json:"sessionId"`
	UserID      *string         `json:"userId"`
	IPAddress   string          `json:"-"`
	Type        InteractionType `json:"interactionType"`
	Device      DeviceInfo      `json:"deviceInfo"`
	Timestamp   time.Time       `json:"timestamp"`
	TimeSpentMs int64           `json:"timeSpentMs,omitempty"`
	ClickURL    string          `json:"clickUrl,omitempty"`
	ClickTarget string          `json:"clickTarget,omitempty"`
	Referrer    string          `json:"referrer,omitempty"`
	PageURL     string          `json:"pageUrl,omitempty"`
	Date        string          `json:"date"`
	Hour        int             `json:"hour"`
}

// stamp sets Timestamp and the derived UTC Date and Hour fields.
func (e *Event) stamp(ts time.Time) {
	ts = ts.UTC().Truncate(time.Millisecond)
	e.Timestamp = ts
	e.Date = ts.Format(dateLayout)
	e.Hour = ts.Hour()
}

const dateLayout = "2006-01-02"

// GenerateTipID returns an id of the form tip_YYYYMMDD_NNN for the UTC date
// of now, NNN being a zero-padded random number in [0, 999].
func GenerateTipID(now time.Time) string {
	return fmt.Sprintf("tip_%s_%03d", now.UTC().Format("20060102"), rand.IntN(1000))
}

// rule maps any of its lowercase substrings to a classification value.
type rule[T any] struct {
	markers []string
	value   T
}

// Rules are evaluated top to bottom; the first match wins. Tablet markers
// precede mobile ones because iPad agents also contain "mobile".
var deviceRules = []rule[DeviceType]{
	{[]string{"ipad", "tablet", "kindle", "silk/", "playbook"}, Tablet},
	{[]string{"mobile", "android", "iphone", "ipod", "blackberry", "windows phone"}, Mobile},
}

// Android agents contain "linux" and iOS agents contain "mac os x".
var osRules = []rule[string]{
	{[]string{"android"}, "Android"},
	{[]string{"iphone", "ipad", "ipod"}, "iOS"},
	{[]string{"windows"}, "Windows"},
	{[]string{"macintosh", "mac os x"}, "Mac"},
	{[]string{"linux"}, "Linux"},
}

// Edge and Opera agents also contain "chrome"; Chrome agents contain "safari".
var browserRules = []rule[string]{
	{[]string{"edg/", "edge/", "edga/", "edgios/"}, "Edge"},
	{[]string{"opr/", "opera"}, "Opera"},
	{[]string{"firefox", "fxios"}, "Firefox"},
	{[]string{"chrome", "crios"}, "Chrome"},
	{[]string{"safari"}, "Safari"},
}

func match[T any](ua string, rules []rule[T], fallback T) T {
	for _, r := range rules {
		for _, m := range r.markers {
			if strings.Contains(ua, m) {
				return r.value
			}
		}
	}
	return fallback
}

// Classify derives device type, OS and browser from a User-Agent string.
func Classify(userAgent string) DeviceInfo {
	ua := strings.ToLower(userAgent)
	return DeviceInfo{
		DeviceType: match(ua, deviceRules, Desktop),
		OS:         match(ua, osRules, Unknown),
		Browser:    match(ua, browserRules, Unknown),
		UserAgent:  userAgent,
	}
}
