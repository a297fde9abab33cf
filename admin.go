package luckyreel

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/luckyreel/views"
)

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, views.AdminLogin(false, CsrfToken(c)))
	}
	return a.renderAdminDashboard(c)
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ok, err := a.checkPassword(c, c.FormValue("password"))
	if err != nil {
		return err
	}
	if !ok {
		return RenderStatus(c, http.StatusUnauthorized, views.AdminLogin(true, CsrfToken(c)))
	}
	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

// renderAdminDashboard shows today's overview. A failing metrics query is
// reported on the page rather than failing the whole request.
func (a *App) renderAdminDashboard(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), a.Config.Metrics.QueryTimeout)
	defer cancel()

	winners, err := a.Store.ListWinners(ctx)
	if err != nil {
		return err
	}
	page := views.Dashboard{
		SiteName:  a.Config.Name,
		CSRFToken: CsrfToken(c),
		Winners:   toWinnerRows(winners),
		Games:     a.gamesStatus(),
	}
	overview, err := a.aggregator.Overview(ctx, 1)
	if err != nil {
		log.Error().Err(err).Msg("admin overview")
		page.MetricsError = "Metrics are unavailable right now."
	} else {
		page.Overview = &overview
	}
	tips, err := a.aggregator.TipPerformance(ctx, a.aggregator.Window(1))
	if err != nil {
		log.Error().Err(err).Msg("admin tip performance")
	}
	page.Tips = tips
	return Render(c, views.AdminDashboard(page))
}

func toWinnerRows(winners []Winner) []views.WinnerRow {
	rows := make([]views.WinnerRow, 0, len(winners))
	for _, w := range winners {
		rows = append(rows, views.WinnerRow{
			ID: w.ID, Name: w.Name, Amount: w.Amount, Game: w.Game, TimeAgo: w.TimeAgo, Active: w.Active,
		})
	}
	return rows
}
