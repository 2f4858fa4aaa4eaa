package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"medical-book/internal/models"
)

type RegisterRequest struct {
	Email            string  `json:"email"`
	Password         string  `json:"password"`
	Name             string  `json:"name"`
	BirthDate        *string `json:"birth_date"`
	BloodType        *string `json:"blood_type"`
	Allergies        *string `json:"allergies"`
	ChronicDiseases  *string `json:"chronic_diseases"`
	EmergencyContact *string `json:"emergency_contact"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type SessionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	*Session
}

// Handler serves the sign-up and sign-in endpoints. Domain errors are
// returned as is and rendered by the server's error handler.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group, limit ...echo.MiddlewareFunc) {
	g.POST("/register", h.Register, limit...)
	g.POST("/login", h.Login, limit...)
	g.POST("/refresh", h.Refresh)
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	session, err := h.svc.Register(c.Request().Context(), models.NewUser{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Profile: models.Profile{
			BirthDate:        req.BirthDate,
			BloodType:        req.BloodType,
			Allergies:        req.Allergies,
			ChronicDiseases:  req.ChronicDiseases,
			EmergencyContact: req.EmergencyContact,
		},
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, SessionResponse{Success: true, Message: "registration successful", Session: session})
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	session, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SessionResponse{Success: true, Message: "login successful", Session: session})
}

func (h *Handler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	session, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SessionResponse{Success: true, Session: session})
}
