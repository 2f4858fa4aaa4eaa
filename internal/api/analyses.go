package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"medical-book/internal/models"
	"medical-book/internal/storage"
)

type analysisRequest struct {
	Type    *string    `json:"type"`
	Date    FlexTime   `json:"date"`
	Result  FlexString `json:"result"`
	Unit    *string    `json:"unit"`
	NormMin FlexFloat  `json:"norm_min"`
	NormMax FlexFloat  `json:"norm_max"`
	Doctor  *string    `json:"doctor"`
	Notes   *string    `json:"notes"`
}

func (r analysisRequest) input() models.AnalysisInput {
	return models.AnalysisInput{
		Type:    deref(r.Type),
		Date:    r.Date.Value(),
		Result:  r.Result.Value(),
		Unit:    optional(r.Unit),
		NormMin: r.NormMin.Ptr(),
		NormMax: r.NormMax.Ptr(),
		Doctor:  optional(r.Doctor),
		Notes:   optional(r.Notes),
	}
}

func (r analysisRequest) patch() models.AnalysisPatch {
	return models.AnalysisPatch{
		Type:    r.Type,
		Date:    r.Date.Ptr(),
		Result:  r.Result.Ptr(),
		Unit:    r.Unit,
		NormMin: r.NormMin.Ptr(),
		NormMax: r.NormMax.Ptr(),
		Doctor:  r.Doctor,
		Notes:   r.Notes,
	}
}

func (h *Handler) ListAnalyses(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	page, err := parsePage(c)
	if err != nil {
		return err
	}
	list, err := h.store.ListAnalyses(c.Request().Context(), uid, page)
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.Analysis{}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "analyses": list})
}

func (h *Handler) CreateAnalysis(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req analysisRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	a, err := h.store.CreateAnalysis(c.Request().Context(), uid, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "analysis saved", "id": a.ID, "analysis": a})
}

// ownAnalysis loads analysis id for user uid. Someone else's record is
// reported as missing.
func (h *Handler) ownAnalysis(c echo.Context, uid int64) (*models.Analysis, error) {
	id, err := pathID(c)
	if err != nil {
		return nil, err
	}
	a, err := h.store.GetAnalysis(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if a.UserID != uid {
		return nil, storage.ErrNotFound
	}
	return a, nil
}

func (h *Handler) GetAnalysis(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	a, err := h.ownAnalysis(c, uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "analysis": a})
}

func (h *Handler) UpdateAnalysis(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req analysisRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	a, err := h.store.UpdateAnalysis(c.Request().Context(), id, uid, req.patch())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "analysis updated", "analysis": a})
}

func (h *Handler) DeleteAnalysis(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	deleted, err := h.store.DeleteAnalysis(c.Request().Context(), id, uid)
	if err != nil {
		return err
	}
	if !deleted {
		return storage.ErrNotFound
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "analysis deleted"})
}
