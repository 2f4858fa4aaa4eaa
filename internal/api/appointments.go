package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"medical-book/internal/models"
	"medical-book/internal/storage"
)

type appointmentRequest struct {
	Title     *string                   `json:"title"`
	StartTime FlexTime                  `json:"start_time"`
	EndTime   FlexTime                  `json:"end_time"`
	Doctor    *string                   `json:"doctor"`
	Specialty *string                   `json:"specialty"`
	Location  *string                   `json:"location"`
	Status    *models.AppointmentStatus `json:"status"`
	Notes     *string                   `json:"notes"`
}

func (r appointmentRequest) input() models.AppointmentInput {
	in := models.AppointmentInput{
		Title:     deref(r.Title),
		StartTime: r.StartTime.Value(),
		EndTime:   r.EndTime.Value(),
		Doctor:    optional(r.Doctor),
		Specialty: optional(r.Specialty),
		Location:  optional(r.Location),
		Notes:     optional(r.Notes),
	}
	if r.Status != nil {
		in.Status = *r.Status
	}
	return in
}

func (r appointmentRequest) patch() models.AppointmentPatch {
	return models.AppointmentPatch{
		Title:     r.Title,
		StartTime: r.StartTime.Ptr(),
		EndTime:   r.EndTime.Ptr(),
		Doctor:    r.Doctor,
		Specialty: r.Specialty,
		Location:  r.Location,
		Status:    r.Status,
		Notes:     r.Notes,
	}
}

func (h *Handler) ListAppointments(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	page, err := parsePage(c)
	if err != nil {
		return err
	}
	list, err := h.store.ListAppointments(c.Request().Context(), uid, page)
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.Appointment{}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "appointments": list})
}

func (h *Handler) UpcomingAppointments(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	limit := storage.DefaultRecentLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return &storage.ValidationError{Field: "limit", Message: "must be a positive integer"}
		}
		limit = n
	}
	list, err := h.store.UpcomingAppointments(c.Request().Context(), uid, limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.Appointment{}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "appointments": list})
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req appointmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	a, err := h.store.CreateAppointment(c.Request().Context(), uid, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "appointment created", "appointment": a})
}

func (h *Handler) GetAppointment(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	a, err := h.store.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if a.UserID != uid {
		return storage.ErrNotFound
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "appointment": a})
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req appointmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	a, err := h.store.UpdateAppointment(c.Request().Context(), id, uid, req.patch())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "appointment updated", "appointment": a})
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	deleted, err := h.store.DeleteAppointment(c.Request().Context(), id, uid)
	if err != nil {
		return err
	}
	if !deleted {
		return storage.ErrNotFound
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "appointment deleted"})
}
