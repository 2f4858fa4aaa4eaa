package storage

import (
	"context"
	"testing"
	"time"

	"medical-book/internal/models"
	"medical-book/internal/rangecheck"
)

func TestUserStats(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s := setupTestStore(t, WithClock(fixedClock(now)))
	ctx := context.Background()
	u := createTestUser(t, s, "a@example.com")

	inRange := models.AnalysisInput{Type: "RBC", Date: now, Result: "5.2", NormMin: num(4.5), NormMax: num(5.5)}
	outOfRange := models.AnalysisInput{Type: "Glucose", Date: now, Result: "7.0", NormMin: num(3.9), NormMax: num(6.1)}
	for _, in := range []models.AnalysisInput{inRange, outOfRange} {
		if _, err := s.CreateAnalysis(ctx, u.ID, in); err != nil {
			t.Fatalf("create analysis: %v", err)
		}
	}
	if _, err := s.CreateAppointment(ctx, u.ID, appointmentInput("Therapist", now.Add(48*time.Hour))); err != nil {
		t.Fatalf("create appointment: %v", err)
	}

	st, err := s.UserStats(ctx, u.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := models.UserStats{TotalAnalyses: 2, AbnormalAnalyses: 1, TotalAppointments: 1, UpcomingAppointments: 1}
	if *st != want {
		t.Fatalf("expected %+v, got %+v", want, *st)
	}
}

func TestUserStats_NonNumericResultIsNotAbnormal(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "a@example.com")

	in := models.AnalysisInput{Type: "COVID PCR", Date: time.Now(), Result: "negative", NormMin: num(1), NormMax: num(2)}
	if _, err := s.CreateAnalysis(ctx, u.ID, in); err != nil {
		t.Fatalf("create analysis: %v", err)
	}

	st, err := s.UserStats(ctx, u.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.TotalAnalyses != 1 || st.AbnormalAnalyses != 0 {
		t.Fatalf("expected 1 total and 0 abnormal, got %+v", st)
	}
}

func TestUserStats_PastAndCanceledAreNotUpcoming(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s := setupTestStore(t, WithClock(fixedClock(now)))
	ctx := context.Background()
	u := createTestUser(t, s, "a@example.com")

	past := appointmentInput("Past", now.Add(-24*time.Hour))
	canceled := appointmentInput("Canceled", now.Add(24*time.Hour))
	canceled.Status = models.StatusCanceled
	for _, in := range []models.AppointmentInput{past, canceled} {
		if _, err := s.CreateAppointment(ctx, u.ID, in); err != nil {
			t.Fatalf("create appointment: %v", err)
		}
	}

	st, err := s.UserStats(ctx, u.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.TotalAppointments != 2 || st.UpcomingAppointments != 0 {
		t.Fatalf("expected 2 total and 0 upcoming, got %+v", st)
	}
}

func TestUserStats_CustomRule(t *testing.T) {
	s := setupTestStore(t, WithRule(rangecheck.MustCompile("result > norm_max")))
	ctx := context.Background()
	u := createTestUser(t, s, "a@example.com")

	low := models.AnalysisInput{Type: "Iron", Date: time.Now(), Result: "1", NormMin: num(5), NormMax: num(10)}
	if _, err := s.CreateAnalysis(ctx, u.ID, low); err != nil {
		t.Fatalf("create analysis: %v", err)
	}

	st, err := s.UserStats(ctx, u.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.AbnormalAnalyses != 0 {
		t.Fatalf("expected low result to pass an upper-only rule, got %d abnormal", st.AbnormalAnalyses)
	}
}
