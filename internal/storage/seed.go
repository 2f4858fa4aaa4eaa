package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	DemoEmail    = "demo@example.com"
	DemoPassword = "demo123"
)

type demoAnalysis struct {
	typ, unit, doctor, notes string
	date                     time.Time
	result                   string
	normMin, normMax         float64
}

type demoAppointment struct {
	title, doctor, specialty, location, notes string
	start, end                                time.Time
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

var demoAnalyses = []demoAnalysis{
	{typ: "Complete blood count", date: day(2024, 1, 10), result: "5.2", unit: "mln/µL", normMin: 4.5, normMax: 5.5, doctor: "Ivanov I.I.", notes: "Within normal range"},
	{typ: "Glucose", date: day(2024, 1, 12), result: "5.8", unit: "mmol/L", normMin: 3.9, normMax: 6.1, doctor: "Petrova A.A.", notes: "Slightly elevated"},
	{typ: "Cholesterol", date: day(2024, 1, 15), result: "5.0", unit: "mmol/L", normMin: 3.0, normMax: 5.2, doctor: "Sidorov V.V.", notes: "Within normal range"},
}

var demoAppointments = []demoAppointment{
	{title: "General practitioner consultation", start: at(2024, 1, 20, 10), end: at(2024, 1, 20, 11), doctor: "Ivanov I.I.", specialty: "General practitioner", location: "Polyclinic No. 1", notes: "Annual check-up"},
	{title: "Abdominal ultrasound", start: at(2024, 1, 25, 14), end: at(2024, 1, 25, 15), doctor: "Petrova A.A.", specialty: "Ultrasound specialist", location: "Diagnostic center", notes: "On an empty stomach"},
}

// SeedDemo creates the demo account with its sample analyses and
// appointments unless an account with DemoEmail already exists. It reports
// whether anything was inserted.
func SeedDemo(ctx context.Context, db *sql.DB, cost int) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email = ?", DemoEmail).Scan(&n); err != nil {
		return false, fmt.Errorf("check demo user: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return false, fmt.Errorf("hash demo password: %w", err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
        INSERT INTO users (email, password_hash, name, birth_date, blood_type, allergies, emergency_contact, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		DemoEmail, string(hash), "Demo User", "1990-01-01", "A(II) Rh+", "None", "+7 (999) 123-45-67", now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert demo user: %w", err)
	}
	userID, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("demo user id: %w", err)
	}

	for _, a := range demoAnalyses {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO analyses (user_id, type, date, result, unit, norm_min, norm_max, doctor, notes, created_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, a.typ, a.date, a.result, a.unit, a.normMin, a.normMax, a.doctor, a.notes, now,
		); err != nil {
			return false, fmt.Errorf("insert demo analysis: %w", err)
		}
	}

	for _, a := range demoAppointments {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO appointments (user_id, title, start_time, end_time, doctor, specialty, location, status, notes, created_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, 'scheduled', ?, ?)`,
			userID, a.title, a.start, a.end, a.doctor, a.specialty, a.location, a.notes, now,
		); err != nil {
			return false, fmt.Errorf("insert demo appointment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seed: %w", err)
	}
	return true, nil
}
