package games

import (
	"net/url"
	"time"

	"github.com/eringen/luckyreel/rotation"
)

// DailyVideo returns the highlight video id for the day containing now, or
// "" when no videos are configured. It rotates through ids like the reels do.
func DailyVideo(ids []string, now time.Time) string {
	pick := rotation.SelectDaily(ids, 1, now)
	if len(pick) == 0 {
		return ""
	}
	return pick[0]
}

// EmbedURL returns the youtube-nocookie embed URL for a video id.
func EmbedURL(id string) string {
	return "https://www.youtube-nocookie.com/embed/" + url.PathEscape(id) + "?rel=0&modestbranding=1"
}
