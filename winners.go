package luckyreel

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/luckyreel/validate"
)

func (a *App) handleActiveWinners(c echo.Context) error {
	winners, err := a.Winners.Active(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("active winners")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get winners")
	}
	return c.JSON(http.StatusOK, winners)
}

func (a *App) handleListWinners(c echo.Context) error {
	winners, err := a.Store.ListWinners(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("list winners")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get winners")
	}
	return c.JSON(http.StatusOK, winners)
}

func (a *App) handleCreateWinner(c echo.Context) error {
	var in WinnerInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	w, err := a.Store.CreateWinner(c.Request().Context(), in)
	if err != nil {
		log.Error().Err(err).Msg("create winner")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create winner")
	}
	a.Winners.Invalidate()
	return c.JSON(http.StatusCreated, w)
}

func (a *App) handleUpdateWinner(c echo.Context) error {
	var p WinnerPatch
	if err := validate.Bind(c, &p); err != nil {
		return err
	}
	w, err := a.Store.UpdateWinner(c.Request().Context(), c.Param("id"), p)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Winner not found")
	}
	if err != nil {
		log.Error().Err(err).Str("id", c.Param("id")).Msg("update winner")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update winner")
	}
	a.Winners.Invalidate()
	return c.JSON(http.StatusOK, w)
}

func (a *App) handleDeleteWinner(c echo.Context) error {
	err := a.Store.DeleteWinner(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Winner not found")
	}
	if err != nil {
		log.Error().Err(err).Str("id", c.Param("id")).Msg("delete winner")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete winner")
	}
	a.Winners.Invalidate()
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "Winner deleted"})
}
