package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"medical-book/internal/auth"
	"medical-book/internal/config"
	"medical-book/internal/models"
)

// Store is the part of the data access layer the handlers use.
type Store interface {
	Ping(ctx context.Context) error

	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, p models.UserPatch) (*models.User, error)
	ChangePassword(ctx context.Context, id int64, current, next string) error

	CreateAnalysis(ctx context.Context, userID int64, in models.AnalysisInput) (*models.Analysis, error)
	GetAnalysis(ctx context.Context, id int64) (*models.Analysis, error)
	ListAnalyses(ctx context.Context, userID int64, p models.Page) ([]models.Analysis, error)
	RecentAnalyses(ctx context.Context, userID int64, limit int) ([]models.Analysis, error)
	UpdateAnalysis(ctx context.Context, id, userID int64, p models.AnalysisPatch) (*models.Analysis, error)
	DeleteAnalysis(ctx context.Context, id, userID int64) (bool, error)

	CreateAppointment(ctx context.Context, userID int64, in models.AppointmentInput) (*models.Appointment, error)
	GetAppointment(ctx context.Context, id int64) (*models.Appointment, error)
	ListAppointments(ctx context.Context, userID int64, p models.Page) ([]models.Appointment, error)
	UpcomingAppointments(ctx context.Context, userID int64, limit int) ([]models.Appointment, error)
	UpdateAppointment(ctx context.Context, id, userID int64, p models.AppointmentPatch) (*models.Appointment, error)
	DeleteAppointment(ctx context.Context, id, userID int64) (bool, error)

	UserStats(ctx context.Context, userID int64) (*models.UserStats, error)
}

type Handler struct {
	store  Store
	logger zerolog.Logger
}

func NewHandler(store Store, logger zerolog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes mounts the record endpoints on a group that already
// requires an access token.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.POST("/profile/password", h.ChangePassword)

	g.GET("/analyses", h.ListAnalyses)
	g.POST("/analyses", h.CreateAnalysis)
	g.GET("/analyses/:id", h.GetAnalysis)
	g.PUT("/analyses/:id", h.UpdateAnalysis)
	g.DELETE("/analyses/:id", h.DeleteAnalysis)

	g.GET("/appointments", h.ListAppointments)
	g.POST("/appointments", h.CreateAppointment)
	g.GET("/appointments/upcoming", h.UpcomingAppointments)
	g.GET("/appointments/:id", h.GetAppointment)
	g.PUT("/appointments/:id", h.UpdateAppointment)
	g.DELETE("/appointments/:id", h.DeleteAppointment)

	g.GET("/stats", h.Stats)
	g.GET("/dashboard", h.Dashboard)
}

func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error().Err(err).Msg("health check failed")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"success": false, "status": "unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "status": "ok"})
}

func currentUser(c echo.Context) (int64, error) {
	id, ok := auth.UserIDFromContext(c)
	if !ok {
		return 0, auth.ErrInvalidToken
	}
	return id, nil
}

// NewServer assembles the HTTP API.
func NewServer(cfg *config.Config, store Store, svc *auth.Service, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(logger)
	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 15 * time.Second

	e.Use(Recovery(logger))
	e.Use(RequestID())
	e.Use(Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
	}))
	e.Use(echomw.BodyLimit("1M"))

	h := NewHandler(store, logger)
	e.GET("/health", h.Health)

	api := e.Group("/api")
	auth.NewHandler(svc).RegisterRoutes(api.Group("/auth"), RateLimit(cfg.AuthRateLimitRPS))
	h.RegisterRoutes(api.Group("", auth.JWTMiddleware(svc)))

	return e
}
