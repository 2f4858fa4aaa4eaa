package storage

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"medical-book/internal/models"
)

const DefaultRecentLimit = 5

func validPage(p models.Page) error {
	if p.Limit < 0 {
		return invalid("limit", "must not be negative")
	}
	if p.Offset < 0 {
		return invalid("offset", "must not be negative")
	}
	return nil
}

func paginate(q *gorm.DB, p models.Page) *gorm.DB {
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	return q
}

func checkRange(normMin, normMax *float64) error {
	if normMin != nil && normMax != nil && *normMin > *normMax {
		return invalid("norm_min", "must not exceed norm_max")
	}
	return nil
}

func validateAnalysis(in models.AnalysisInput) error {
	if strings.TrimSpace(in.Type) == "" {
		return invalid("type", "is required")
	}
	if in.Date.IsZero() {
		return invalid("date", "is required")
	}
	if strings.TrimSpace(in.Result) == "" {
		return invalid("result", "is required")
	}
	return checkRange(in.NormMin, in.NormMax)
}

func (s *Store) CreateAnalysis(ctx context.Context, userID int64, in models.AnalysisInput) (*models.Analysis, error) {
	if err := validateAnalysis(in); err != nil {
		return nil, err
	}

	a := &models.Analysis{
		UserID:  userID,
		Type:    in.Type,
		Date:    in.Date.UTC(),
		Result:  in.Result,
		Unit:    in.Unit,
		NormMin: in.NormMin,
		NormMax: in.NormMax,
		Doctor:  in.Doctor,
		Notes:   in.Notes,
	}
	if err := s.orm.WithContext(ctx).Create(a).Error; err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, s.translate("create analysis", err)
	}
	return s.GetAnalysis(ctx, a.ID)
}

// GetAnalysis loads an analysis by id alone. Callers acting for a user must
// compare UserID themselves.
func (s *Store) GetAnalysis(ctx context.Context, id int64) (*models.Analysis, error) {
	var a models.Analysis
	if err := s.orm.WithContext(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		return nil, s.translate("get analysis", err)
	}
	return &a, nil
}

// ListAnalyses returns the user's analyses newest date first, ties broken by
// descending id.
func (s *Store) ListAnalyses(ctx context.Context, userID int64, p models.Page) ([]models.Analysis, error) {
	if err := validPage(p); err != nil {
		return nil, err
	}

	out := make([]models.Analysis, 0)
	q := s.orm.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC").
		Order("id DESC")
	if err := paginate(q, p).Find(&out).Error; err != nil {
		return nil, s.translate("list analyses", err)
	}
	return out, nil
}

func (s *Store) RecentAnalyses(ctx context.Context, userID int64, limit int) ([]models.Analysis, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return s.ListAnalyses(ctx, userID, models.Page{Limit: limit})
}

func analysisColumns(p models.AnalysisPatch) (map[string]interface{}, error) {
	cols := make(map[string]interface{})
	if p.Type != nil {
		if strings.TrimSpace(*p.Type) == "" {
			return nil, invalid("type", "must not be empty")
		}
		cols["type"] = *p.Type
	}
	if p.Date != nil {
		if p.Date.IsZero() {
			return nil, invalid("date", "must not be empty")
		}
		cols["date"] = p.Date.UTC()
	}
	if p.Result != nil {
		if strings.TrimSpace(*p.Result) == "" {
			return nil, invalid("result", "must not be empty")
		}
		cols["result"] = *p.Result
	}
	if p.Unit != nil {
		cols["unit"] = *p.Unit
	}
	if p.NormMin != nil {
		cols["norm_min"] = *p.NormMin
	}
	if p.NormMax != nil {
		cols["norm_max"] = *p.NormMax
	}
	if p.Doctor != nil {
		cols["doctor"] = *p.Doctor
	}
	if p.Notes != nil {
		cols["notes"] = *p.Notes
	}
	return cols, nil
}

// UpdateAnalysis applies p to analysis id if it belongs to userID. An
// analysis of another user is reported as ErrNotFound.
func (s *Store) UpdateAnalysis(ctx context.Context, id, userID int64, p models.AnalysisPatch) (*models.Analysis, error) {
	cols, err := analysisColumns(p)
	if err != nil {
		return nil, err
	}

	var a models.Analysis
	err = s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := func() *gorm.DB { return tx.Where("id = ? AND user_id = ?", id, userID) }

		if err := owned().Take(&a).Error; err != nil {
			return err
		}
		normMin, normMax := a.NormMin, a.NormMax
		if p.NormMin != nil {
			normMin = p.NormMin
		}
		if p.NormMax != nil {
			normMax = p.NormMax
		}
		if err := checkRange(normMin, normMax); err != nil {
			return err
		}
		if len(cols) == 0 {
			return nil
		}

		if err := owned().Model(&models.Analysis{}).Updates(cols).Error; err != nil {
			return err
		}
		a = models.Analysis{}
		return owned().Take(&a).Error
	})
	if err != nil {
		return nil, s.translate("update analysis", err)
	}
	return &a, nil
}

// DeleteAnalysis removes analysis id if it belongs to userID and reports
// whether a row was removed.
func (s *Store) DeleteAnalysis(ctx context.Context, id, userID int64) (bool, error) {
	res := s.orm.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Analysis{})
	if res.Error != nil {
		return false, s.translate("delete analysis", res.Error)
	}
	return res.RowsAffected > 0, nil
}
