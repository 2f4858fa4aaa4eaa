package models

import "time"

type User struct {
	ID               int64     `json:"id" gorm:"primaryKey"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	Name             string    `json:"name"`
	BirthDate        *string   `json:"birth_date"`
	BloodType        *string   `json:"blood_type"`
	Allergies        *string   `json:"allergies"`
	ChronicDiseases  *string   `json:"chronic_diseases"`
	EmergencyContact *string   `json:"emergency_contact"`
	CreatedAt        time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

// PublicUser is the part of a user record that may leave the service.
type PublicUser struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	BirthDate        *string   `json:"birth_date"`
	BloodType        *string   `json:"blood_type"`
	Allergies        *string   `json:"allergies"`
	ChronicDiseases  *string   `json:"chronic_diseases"`
	EmergencyContact *string   `json:"emergency_contact"`
	CreatedAt        time.Time `json:"created_at"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		BirthDate:        u.BirthDate,
		BloodType:        u.BloodType,
		Allergies:        u.Allergies,
		ChronicDiseases:  u.ChronicDiseases,
		EmergencyContact: u.EmergencyContact,
		CreatedAt:        u.CreatedAt,
	}
}

type Profile struct {
	BirthDate        *string `json:"birth_date"`
	BloodType        *string `json:"blood_type"`
	Allergies        *string `json:"allergies"`
	ChronicDiseases  *string `json:"chronic_diseases"`
	EmergencyContact *string `json:"emergency_contact"`
}

type NewUser struct {
	Email    string
	Password string
	Name     string
	Profile
}

// UserPatch lists every profile column a user may change. Nil fields are
// left untouched.
type UserPatch struct {
	Name *string `json:"name"`
	Profile
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.BirthDate == nil && p.BloodType == nil &&
		p.Allergies == nil && p.ChronicDiseases == nil && p.EmergencyContact == nil
}

type Analysis struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	Date      time.Time `json:"date"`
	Result    string    `json:"result"`
	Unit      *string   `json:"unit"`
	NormMin   *float64  `json:"norm_min"`
	NormMax   *float64  `json:"norm_max"`
	Doctor    *string   `json:"doctor"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

func (Analysis) TableName() string { return "analyses" }

type AnalysisInput struct {
	Type    string
	Date    time.Time
	Result  string
	Unit    *string
	NormMin *float64
	NormMax *float64
	Doctor  *string
	Notes   *string
}

type AnalysisPatch struct {
	Type    *string
	Date    *time.Time
	Result  *string
	Unit    *string
	NormMin *float64
	NormMax *float64
	Doctor  *string
	Notes   *string
}

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCanceled  AppointmentStatus = "canceled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

type Appointment struct {
	ID        int64             `json:"id" gorm:"primaryKey"`
	UserID    int64             `json:"user_id"`
	Title     string            `json:"title"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Doctor    *string           `json:"doctor"`
	Specialty *string           `json:"specialty"`
	Location  *string           `json:"location"`
	Status    AppointmentStatus `json:"status"`
	Notes     *string           `json:"notes"`
	CreatedAt time.Time         `json:"created_at"`
}

func (Appointment) TableName() string { return "appointments" }

type AppointmentInput struct {
	Title     string
	StartTime time.Time
	EndTime   time.Time
	Doctor    *string
	Specialty *string
	Location  *string
	Status    AppointmentStatus
	Notes     *string
}

type AppointmentPatch struct {
	Title     *string
	StartTime *time.Time
	EndTime   *time.Time
	Doctor    *string
	Specialty *string
	Location  *string
	Status    *AppointmentStatus
	Notes     *string
}

// Page bounds a listing. Zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

type UserStats struct {
	TotalAnalyses        int64 `json:"total_analyses"`
	AbnormalAnalyses     int64 `json:"abnormal_analyses"`
	TotalAppointments    int64 `json:"total_appointments"`
	UpcomingAppointments int64 `json:"upcoming_appointments"`
}
