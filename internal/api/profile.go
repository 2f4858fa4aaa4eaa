package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"medical-book/internal/models"
)

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) GetProfile(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.store.GetUserByID(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": user.Public()})
}

// UpdateProfile changes the name and medical profile. The email is fixed.
func (h *Handler) UpdateProfile(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var patch models.UserPatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	user, err := h.store.UpdateUser(c.Request().Context(), uid, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "profile updated", "user": user.Public()})
}

func (h *Handler) ChangePassword(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req passwordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.store.ChangePassword(c.Request().Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "password changed"})
}
