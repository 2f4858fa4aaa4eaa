package storage

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"medical-book/internal/models"
)

func setupTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	opts = append([]Option{WithBcryptCost(bcrypt.MinCost), WithDemoSeed(false)}, opts...)
	s, err := Open(context.Background(), MemoryPath, opts...)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Store, email string) *models.User {
	t.Helper()

	u, err := s.CreateUser(context.Background(), models.NewUser{
		Email:    email,
		Password: "secret123",
		Name:     "Test User",
	})
	if err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return u
}

func str(v string) *string { return &v }
func num(v float64) *float64 { return &v }

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}
