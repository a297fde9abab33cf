package views

import (
	"bytes"
	"context"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/luckyreel/games"
	"github.com/eringen/luckyreel/metrics"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestHomeEscapesContent(t *testing.T) {
	out := render(t, Home(HomePage{
		SiteName: "LuckyReel",
		SiteURL:  "http://localhost:3000/",
		Games: []games.Entry{{
			ID:        "fortune dragon",
			Title:     `<script>alert("x")</script>`,
			RecentWin: games.RecentWin{Amount: "$18,750", Player: "Fortune***King", Comment: "Dragon blessed me"},
		}},
		VideoURL: games.EmbedURL("E7He8psjoJ8"),
		Winners:  []WinnerRow{{Name: "Ann", Amount: "$500", Game: "777 Coins", TimeAgo: "5 mins ago"}},
		Year:     2024,
	}))

	assert.NotContains(t, out, "<script>alert")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, `/games/fortune%20dragon/thumb`)
	assert.Contains(t, out, "https://www.youtube-nocookie.com/embed/E7He8psjoJ8?rel=0&amp;modestbranding=1")
	assert.Contains(t, out, "Fortune***King")
	assert.Contains(t, out, "5 mins ago")
	assert.Contains(t, out, `<script src="/public/tracker.js" defer></script>`)
}

func TestHomeSanitizesURLs(t *testing.T) {
	out := render(t, Home(HomePage{SiteName: "LuckyReel", SiteURL: "javascript:alert(1)"}))
	assert.NotContains(t, out, "javascript:")
	assert.Contains(t, out, "about:invalid")
}

func TestHomeWithoutVideoOrWinners(t *testing.T) {
	out := render(t, Home(HomePage{SiteName: "LuckyReel"}))
	assert.NotContains(t, out, "<iframe")
	assert.NotContains(t, out, "Recent winners")
}

func TestAdminLogin(t *testing.T) {
	out := render(t, AdminLogin(true, "tok\"en"))
	assert.Contains(t, out, "Invalid password.")
	assert.Contains(t, out, `value="tok&#34;en"`)
	assert.NotContains(t, render(t, AdminLogin(false, "x")), "Invalid password.")
}

func TestAdminDashboard(t *testing.T) {
	out := render(t, AdminDashboard(Dashboard{
		SiteName: "LuckyReel",
		Overview: &metrics.Overview{
			TotalViews:       metrics.Metric{Value: 12, Change: 50},
			ClickThroughRate: metrics.Metric{Value: 33.3, Change: -10},
		},
		Tips:    []metrics.TipPerformance{{TipID: "tip_20240301_001", Views: 3, Clicks: 1, CTR: 33.3, AvgTimeSeconds: 4}},
		Winners: []WinnerRow{{ID: "w1", Name: "Ann", Active: true}},
		Games:   games.Status{TotalGames: 5, DailyCount: 3, DayIndex: 7, StartIndex: 2},
	}))
	assert.Contains(t, out, "+50.0%")
	assert.Contains(t, out, "33.3%")
	assert.Contains(t, out, "-10.0%")
	assert.Contains(t, out, "tip_20240301_001")
	assert.Contains(t, out, `data-id="w1"`)

	failed := render(t, AdminDashboard(Dashboard{SiteName: "LuckyReel", MetricsError: "Metrics are unavailable right now."}))
	assert.Contains(t, failed, "Metrics are unavailable right now.")
	assert.Contains(t, failed, "No views yet.")
}

func TestErrorPages(t *testing.T) {
	assert.Contains(t, render(t, NotFound()), "404")
	assert.Contains(t, render(t, ServerError()), "500")
}
