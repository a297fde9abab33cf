// Package views holds the page components and the view models they render.
// View models mirror the root package types to avoid import cycles.
package views

import (
	"github.com/eringen/luckyreel/games"
	"github.com/eringen/luckyreel/metrics"
)

// HomePage is everything the landing page shows.
type HomePage struct {
	SiteName string
	SiteURL  string
	Games    []games.Entry
	VideoURL string // empty hides the highlight section
	Winners  []WinnerRow
	Year     int
}

// WinnerRow is one line of the winners ticker or the admin table.
type WinnerRow struct {
	ID      string
	Name    string
	Amount  string
	Game    string
	TimeAgo string
	Active  bool
}

// Dashboard is the admin overview page.
type Dashboard struct {
	SiteName     string
	CSRFToken    string
	Overview     *metrics.Overview
	MetricsError string
	Tips         []metrics.TipPerformance
	Winners      []WinnerRow
	Games        games.Status
}
