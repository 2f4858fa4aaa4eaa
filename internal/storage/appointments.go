package storage

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"medical-book/internal/models"
)

func checkSchedule(start, end time.Time) error {
	if end.Before(start) {
		return invalid("end_time", "must not be before start_time")
	}
	return nil
}

func validateAppointment(in *models.AppointmentInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title", "is required")
	}
	if in.StartTime.IsZero() {
		return invalid("start_time", "is required")
	}
	if in.EndTime.IsZero() {
		return invalid("end_time", "is required")
	}
	if in.Status == "" {
		in.Status = models.StatusScheduled
	}
	if !in.Status.Valid() {
		return invalid("status", "must be one of scheduled, completed, canceled")
	}
	return checkSchedule(in.StartTime, in.EndTime)
}

func (s *Store) CreateAppointment(ctx context.Context, userID int64, in models.AppointmentInput) (*models.Appointment, error) {
	if err := validateAppointment(&in); err != nil {
		return nil, err
	}

	a := &models.Appointment{
		UserID:    userID,
		Title:     in.Title,
		StartTime: in.StartTime.UTC(),
		EndTime:   in.EndTime.UTC(),
		Doctor:    in.Doctor,
		Specialty: in.Specialty,
		Location:  in.Location,
		Status:    in.Status,
		Notes:     in.Notes,
	}
	if err := s.orm.WithContext(ctx).Create(a).Error; err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, s.translate("create appointment", err)
	}
	return s.GetAppointment(ctx, a.ID)
}

// GetAppointment loads an appointment by id alone. Callers acting for a user
// must compare UserID themselves.
func (s *Store) GetAppointment(ctx context.Context, id int64) (*models.Appointment, error) {
	var a models.Appointment
	if err := s.orm.WithContext(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		return nil, s.translate("get appointment", err)
	}
	return &a, nil
}

// ListAppointments returns the user's appointments latest start first, ties
// broken by descending id.
func (s *Store) ListAppointments(ctx context.Context, userID int64, p models.Page) ([]models.Appointment, error) {
	if err := validPage(p); err != nil {
		return nil, err
	}

	out := make([]models.Appointment, 0)
	q := s.orm.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_time DESC").
		Order("id DESC")
	if err := paginate(q, p).Find(&out).Error; err != nil {
		return nil, s.translate("list appointments", err)
	}
	return out, nil
}

// UpcomingAppointments returns scheduled appointments starting after now,
// soonest first.
func (s *Store) UpcomingAppointments(ctx context.Context, userID int64, limit int) ([]models.Appointment, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	out := make([]models.Appointment, 0)
	err := s.orm.WithContext(ctx).
		Where("user_id = ? AND status = ? AND start_time > ?", userID, models.StatusScheduled, s.now().UTC()).
		Order("start_time ASC").
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, s.translate("upcoming appointments", err)
	}
	return out, nil
}

func appointmentColumns(p models.AppointmentPatch) (map[string]interface{}, error) {
	cols := make(map[string]interface{})
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, invalid("title", "must not be empty")
		}
		cols["title"] = *p.Title
	}
	if p.StartTime != nil {
		if p.StartTime.IsZero() {
			return nil, invalid("start_time", "must not be empty")
		}
		cols["start_time"] = p.StartTime.UTC()
	}
	if p.EndTime != nil {
		if p.EndTime.IsZero() {
			return nil, invalid("end_time", "must not be empty")
		}
		cols["end_time"] = p.EndTime.UTC()
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, invalid("status", "must be one of scheduled, completed, canceled")
		}
		cols["status"] = *p.Status
	}
	if p.Doctor != nil {
		cols["doctor"] = *p.Doctor
	}
	if p.Specialty != nil {
		cols["specialty"] = *p.Specialty
	}
	if p.Location != nil {
		cols["location"] = *p.Location
	}
	if p.Notes != nil {
		cols["notes"] = *p.Notes
	}
	return cols, nil
}

// UpdateAppointment applies p to appointment id if it belongs to userID. An
// appointment of another user is reported as ErrNotFound.
func (s *Store) UpdateAppointment(ctx context.Context, id, userID int64, p models.AppointmentPatch) (*models.Appointment, error) {
	cols, err := appointmentColumns(p)
	if err != nil {
		return nil, err
	}

	var a models.Appointment
	err = s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := func() *gorm.DB { return tx.Where("id = ? AND user_id = ?", id, userID) }

		if err := owned().Take(&a).Error; err != nil {
			return err
		}
		start, end := a.StartTime, a.EndTime
		if p.StartTime != nil {
			start = *p.StartTime
		}
		if p.EndTime != nil {
			end = *p.EndTime
		}
		if err := checkSchedule(start, end); err != nil {
			return err
		}
		if len(cols) == 0 {
			return nil
		}

		if err := owned().Model(&models.Appointment{}).Updates(cols).Error; err != nil {
			return err
		}
		a = models.Appointment{}
		return owned().Take(&a).Error
	})
	if err != nil {
		return nil, s.translate("update appointment", err)
	}
	return &a, nil
}

// DeleteAppointment removes appointment id if it belongs to userID and
// reports whether a row was removed.
func (s *Store) DeleteAppointment(ctx context.Context, id, userID int64) (bool, error) {
	res := s.orm.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Appointment{})
	if res.Error != nil {
		return false, s.translate("delete appointment", res.Error)
	}
	return res.RowsAffected > 0, nil
}
