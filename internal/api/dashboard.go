package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"medical-book/internal/models"
)

const dashboardItems = 3

func (h *Handler) Stats(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	stats, err := h.store.UserStats(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "stats": stats})
}

type dashboardResponse struct {
	Success  bool                 `json:"success"`
	Stats    *models.UserStats    `json:"stats"`
	Recent   []models.Analysis    `json:"recent_analyses"`
	Upcoming []models.Appointment `json:"upcoming_appointments"`
}

// Dashboard bundles the stats with the latest analyses and the next
// scheduled visits.
func (h *Handler) Dashboard(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	resp := dashboardResponse{Success: true}
	if resp.Stats, err = h.store.UserStats(ctx, uid); err != nil {
		return err
	}
	if resp.Recent, err = h.store.RecentAnalyses(ctx, uid, dashboardItems); err != nil {
		return err
	}
	if resp.Upcoming, err = h.store.UpcomingAppointments(ctx, uid, dashboardItems); err != nil {
		return err
	}
	if resp.Recent == nil {
		resp.Recent = []models.Analysis{}
	}
	if resp.Upcoming == nil {
		resp.Upcoming = []models.Appointment{}
	}
	return c.JSON(http.StatusOK, resp)
}
