package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"medical-book/internal/models"
	"medical-book/internal/rangecheck"
)

type rangeRow struct {
	ID      int64
	Result  string
	NormMin *float64
	NormMax *float64
}

// UserStats counts the user's analyses and appointments. Analyses whose
// result is not a number are never counted as abnormal.
func (s *Store) UserStats(ctx context.Context, userID int64) (*models.UserStats, error) {
	var st models.UserStats
	now := s.now().UTC()

	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Analysis{}).
			Where("user_id = ?", userID).
			Count(&st.TotalAnalyses).Error; err != nil {
			return err
		}

		var rows []rangeRow
		if err := tx.Model(&models.Analysis{}).
			Select("id", "result", "norm_min", "norm_max").
			Where("user_id = ?", userID).
			Find(&rows).Error; err != nil {
			return err
		}
		for _, r := range rows {
			abnormal, err := s.rule.Abnormal(r.Result, r.NormMin, r.NormMax)
			if errors.Is(err, rangecheck.ErrNonNumeric) {
				s.log.Debug().Int64("analysis_id", r.ID).Str("result", r.Result).Msg("non-numeric result skipped")
				continue
			}
			if err != nil {
				s.log.Warn().Err(err).Int64("analysis_id", r.ID).Msg("range rule failed")
				continue
			}
			if abnormal {
				st.AbnormalAnalyses++
			}
		}

		if err := tx.Model(&models.Appointment{}).
			Where("user_id = ?", userID).
			Count(&st.TotalAppointments).Error; err != nil {
			return err
		}
		return tx.Model(&models.Appointment{}).
			Where("user_id = ? AND status = ? AND start_time > ?", userID, models.StatusScheduled, now).
			Count(&st.UpcomingAppointments).Error
	})
	if err != nil {
		return nil, s.translate("user stats", err)
	}
	return &st, nil
}
