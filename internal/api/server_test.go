package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"medical-book/internal/auth"
	"medical-book/internal/config"
	"medical-book/internal/models"
	"medical-book/internal/storage"
)

type testEnv struct {
	e     *echo.Echo
	store *storage.Store
	svc   *auth.Service
}

func testConfig() *config.Config {
	return &config.Config{
		Env:          "development",
		JWTSecret:    "test-secret",
		JWTIssuer:    "medical-book-test",
		AccessTTL:    time.Hour,
		RefreshTTL:   24 * time.Hour,
		BcryptCost:   bcrypt.MinCost,
		CORSOrigins:  []string{"http://localhost:3000"},
		AbnormalRule: "",
	}
}

func setupTestServer(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()

	store, err := storage.Open(context.Background(), storage.MemoryPath,
		storage.WithBcryptCost(bcrypt.MinCost), storage.WithDemoSeed(false))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc, err := auth.NewService(store, cfg.AuthOptions())
	if err != nil {
		t.Fatalf("failed to create auth service: %v", err)
	}

	return &testEnv{
		e:     NewServer(cfg, store, svc, zerolog.Nop()),
		store: store,
		svc:   svc,
	}
}

func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// register signs up a user and returns its access token.
func (env *testEnv) register(t *testing.T, email string) string {
	t.Helper()

	session, err := env.svc.Register(context.Background(), models.NewUser{
		Email:    email,
		Password: "password123",
		Name:     "Test User",
	})
	if err != nil {
		t.Fatalf("failed to register %s: %v", email, err)
	}
	return session.AccessToken
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) map[string]interface{} {
	t.Helper()

	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
	return decode(t, rec)
}

func objectID(t *testing.T, body map[string]interface{}, key string) int64 {
	t.Helper()

	obj, ok := body[key].(map[string]interface{})
	if !ok {
		t.Fatalf("expected %q object in %v", key, body)
	}
	return int64(obj["id"].(float64))
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t, testConfig())

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	body := expectStatus(t, rec, http.StatusOK)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestProtectedRoutes_RequireAccessToken(t *testing.T) {
	env := setupTestServer(t, testConfig())
	session, err := env.svc.Register(context.Background(), models.NewUser{Email: "a@example.com", Password: "password123", Name: "A"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, token := range []string{"", "garbage", session.RefreshToken} {
		rec := env.do(t, http.MethodGet, "/api/analyses", token, nil)
		body := expectStatus(t, rec, http.StatusUnauthorized)
		if body["success"] != false || body["message"] != auth.ErrInvalidToken.Error() {
			t.Errorf("token %.10q: unexpected body %v", token, body)
		}
	}
}

func TestAuthEndpoints(t *testing.T) {
	env := setupTestServer(t, testConfig())

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "new@example.com", "password": "password123", "name": "New User", "blood_type": "A+",
	})
	body := expectStatus(t, rec, http.StatusCreated)
	if body["access_token"] == "" || body["refresh_token"] == "" {
		t.Fatalf("expected tokens, got %v", body)
	}
	user := body["user"].(map[string]interface{})
	if user["blood_type"] != "A+" {
		t.Errorf("expected profile on user, got %v", user)
	}
	if _, ok := user["password_hash"]; ok {
		t.Error("password hash leaked")
	}

	rec = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "new@example.com", "password": "password123", "name": "Again",
	})
	expectStatus(t, rec, http.StatusConflict)

	rec = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "other@example.com", "password": "password123",
	})
	body = expectStatus(t, rec, http.StatusBadRequest)
	if body["field"] != "name" {
		t.Errorf("expected field name, got %v", body)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "new@example.com", "password": "password123"})
	body = expectStatus(t, rec, http.StatusOK)
	refresh := body["refresh_token"].(string)

	wrong := expectStatus(t, env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "new@example.com", "password": "nope"}), http.StatusUnauthorized)
	unknown := expectStatus(t, env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "password123"}), http.StatusUnauthorized)
	if wrong["message"] != unknown["message"] {
		t.Errorf("login failures differ: %v vs %v", wrong, unknown)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": refresh})
	body = expectStatus(t, rec, http.StatusOK)
	access := body["access_token"].(string)

	expectStatus(t, env.do(t, http.MethodGet, "/api/profile", access, nil), http.StatusOK)

	expectStatus(t, env.do(t, http.MethodPost, "/api/auth/login", "", "{not json"), http.StatusBadRequest)
}

func TestAnalysesCRUD(t *testing.T) {
	env := setupTestServer(t, testConfig())
	token := env.register(t, "owner@example.com")

	rec := env.do(t, http.MethodPost, "/api/analyses", token, map[string]interface{}{
		"type":     "Glucose",
		"date":     "2024-01-15",
		"result":   5.8,
		"unit":     "mmol/L",
		"norm_min": "3.9",
		"norm_max": 6.1,
		"doctor":   "",
	})
	body := expectStatus(t, rec, http.StatusCreated)
	id := objectID(t, body, "analysis")
	created := body["analysis"].(map[string]interface{})
	if created["result"] != "5.8" || created["norm_min"] != 3.9 || created["doctor"] != nil {
		t.Errorf("unexpected stored analysis: %v", created)
	}
	if !strings.HasPrefix(created["date"].(string), "2024-01-15") {
		t.Errorf("unexpected date: %v", created["date"])
	}

	rec = env.do(t, http.MethodPost, "/api/analyses", token, map[string]interface{}{"type": "CBC", "date": "2024-01-10", "result": "4.9"})
	expectStatus(t, rec, http.StatusCreated)

	body = expectStatus(t, env.do(t, http.MethodGet, "/api/analyses", token, nil), http.StatusOK)
	list := body["analyses"].([]interface{})
	if len(list) != 2 || list[0].(map[string]interface{})["type"] != "Glucose" {
		t.Fatalf("expected newest first, got %v", list)
	}

	body = expectStatus(t, env.do(t, http.MethodGet, "/api/analyses?limit=1&offset=1", token, nil), http.StatusOK)
	list = body["analyses"].([]interface{})
	if len(list) != 1 || list[0].(map[string]interface{})["type"] != "CBC" {
		t.Fatalf("unexpected page: %v", list)
	}

	path := fmt.Sprintf("/api/analyses/%d", id)
	expectStatus(t, env.do(t, http.MethodGet, path, token, nil), http.StatusOK)

	body = expectStatus(t, env.do(t, http.MethodPut, path, token, map[string]interface{}{"notes": "fasting"}), http.StatusOK)
	updated := body["analysis"].(map[string]interface{})
	if updated["notes"] != "fasting" || updated["type"] != "Glucose" {
		t.Errorf("unexpected update: %v", updated)
	}

	body = expectStatus(t, env.do(t, http.MethodPut, path, token, map[string]interface{}{"norm_min": 10}), http.StatusBadRequest)
	if body["field"] != "norm_min" {
		t.Errorf("expected norm_min error, got %v", body)
	}

	expectStatus(t, env.do(t, http.MethodDelete, path, token, nil), http.StatusOK)
	body = expectStatus(t, env.do(t, http.MethodDelete, path, token, nil), http.StatusNotFound)
	if body["success"] != false {
		t.Errorf("expected success false, got %v", body)
	}
	expectStatus(t, env.do(t, http.MethodGet, path, token, nil), http.StatusNotFound)
}

func TestAnalyses_Validation(t *testing.T) {
	env := setupTestServer(t, testConfig())
	token := env.register(t, "owner@example.com")

	tests := []struct {
		name   string
		body   interface{}
		status int
		field  string
	}{
		{"missing type", map[string]string{"date": "2024-01-15", "result": "1"}, http.StatusBadRequest, "type"},
		{"missing date", map[string]string{"type": "CBC", "result": "1"}, http.StatusBadRequest, "date"},
		{"missing result", map[string]string{"type": "CBC", "date": "2024-01-15"}, http.StatusBadRequest, "result"},
		{"inverted range", map[string]interface{}{"type": "CBC", "date": "2024-01-15", "result": "1", "norm_min": 5, "norm_max": 1}, http.StatusBadRequest, "norm_min"},
		{"bad date", map[string]string{"type": "CBC", "date": "15/01/2024", "result": "1"}, http.StatusBadRequest, ""},
		{"bad number", map[string]string{"type": "CBC", "date": "2024-01-15", "result": "1", "norm_min": "low"}, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := expectStatus(t, env.do(t, http.MethodPost, "/api/analyses", token, tt.body), tt.status)
			if tt.field != "" && body["field"] != tt.field {
				t.Errorf("expected field %q, got %v", tt.field, body)
			}
		})
	}

	expectStatus(t, env.do(t, http.MethodGet, "/api/analyses?limit=-1", token, nil), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/api/analyses/abc", token, nil), http.StatusNotFound)
}

func TestRecords_OwnershipIsolation(t *testing.T) {
	env := setupTestServer(t, testConfig())
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")

	body := expectStatus(t, env.do(t, http.MethodPost, "/api/analyses", alice, map[string]string{"type": "CBC", "date": "2024-01-15", "result": "5.2"}), http.StatusCreated)
	analysis := fmt.Sprintf("/api/analyses/%d", objectID(t, body, "analysis"))

	body = expectStatus(t, env.do(t, http.MethodPost, "/api/appointments", alice, map[string]string{
		"title": "Therapist", "start_time": "2024-01-20 10:00", "end_time": "2024-01-20 10:30",
	}), http.StatusCreated)
	appointment := fmt.Sprintf("/api/appointments/%d", objectID(t, body, "appointment"))

	for _, path := range []string{analysis, appointment} {
		expectStatus(t, env.do(t, http.MethodGet, path, bob, nil), http.StatusNotFound)
		expectStatus(t, env.do(t, http.MethodPut, path, bob, map[string]string{"notes": "mine"}), http.StatusNotFound)
		expectStatus(t, env.do(t, http.MethodDelete, path, bob, nil), http.StatusNotFound)
		expectStatus(t, env.do(t, http.MethodGet, path, alice, nil), http.StatusOK)
	}

	body = expectStatus(t, env.do(t, http.MethodGet, "/api/analyses", bob, nil), http.StatusOK)
	if n := len(body["analyses"].([]interface{})); n != 0 {
		t.Errorf("expected bob to see no analyses, got %d", n)
	}
}

func TestAppointments(t *testing.T) {
	env := setupTestServer(t, testConfig())
	token := env.register(t, "patient@example.com")

	future := time.Now().UTC().AddDate(0, 0, 7)
	start := future.Format("2006-01-02T15:04")
	end := future.Add(30 * time.Minute).Format("2006-01-02T15:04")

	body := expectStatus(t, env.do(t, http.MethodPost, "/api/appointments", token, map[string]string{
		"title": "Cardiologist", "start_time": start, "end_time": end, "location": "Room 12",
	}), http.StatusCreated)
	created := body["appointment"].(map[string]interface{})
	if created["status"] != string(models.StatusScheduled) {
		t.Errorf("expected default status scheduled, got %v", created["status"])
	}
	path := fmt.Sprintf("/api/appointments/%d", objectID(t, body, "appointment"))

	expectStatus(t, env.do(t, http.MethodPost, "/api/appointments", token, map[string]string{
		"title": "Dentist", "start_time": "2024-01-25 14:00", "end_time": "2024-01-25 15:00", "status": "completed",
	}), http.StatusCreated)

	body = expectStatus(t, env.do(t, http.MethodGet, "/api/appointments/upcoming", token, nil), http.StatusOK)
	upcoming := body["appointments"].([]interface{})
	if len(upcoming) != 1 || upcoming[0].(map[string]interface{})["title"] != "Cardiologist" {
		t.Fatalf("unexpected upcoming: %v", upcoming)
	}

	body = expectStatus(t, env.do(t, http.MethodGet, "/api/appointments", token, nil), http.StatusOK)
	if n := len(body["appointments"].([]interface{})); n != 2 {
		t.Fatalf("expected 2 appointments, got %d", n)
	}

	body = expectStatus(t, env.do(t, http.MethodPut, path, token, map[string]string{"status": "canceled"}), http.StatusOK)
	if body["appointment"].(map[string]interface{})["status"] != "canceled" {
		t.Errorf("status not updated: %v", body)
	}
	body = expectStatus(t, env.do(t, http.MethodGet, "/api/appointments/upcoming", token, nil), http.StatusOK)
	if n := len(body["appointments"].([]interface{})); n != 0 {
		t.Errorf("canceled visit still upcoming")
	}

	body = expectStatus(t, env.do(t, http.MethodPut, path, token, map[string]string{"status": "postponed"}), http.StatusBadRequest)
	if body["field"] != "status" {
		t.Errorf("expected status error, got %v", body)
	}

	body = expectStatus(t, env.do(t, http.MethodPost, "/api/appointments", token, map[string]string{
		"title": "Backwards", "start_time": "2024-01-25 15:00", "end_time": "2024-01-25 14:00",
	}), http.StatusBadRequest)
	if body["field"] != "end_time" {
		t.Errorf("expected end_time error, got %v", body)
	}

	body = expectStatus(t, env.do(t, http.MethodPost, "/api/appointments", token, map[string]string{"title": "No time"}), http.StatusBadRequest)
	if body["field"] != "start_time" {
		t.Errorf("expected start_time error, got %v", body)
	}

	expectStatus(t, env.do(t, http.MethodDelete, path, token, nil), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodDelete, path, token, nil), http.StatusNotFound)
}

func TestStatsAndDashboard(t *testing.T) {
	env := setupTestServer(t, testConfig())
	token := env.register(t, "stats@example.com")

	for _, a := range []map[string]interface{}{
		{"type": "CBC", "date": "2024-01-15", "result": "5.2", "norm_min": 4.5, "norm_max": 5.5},
		{"type": "Glucose", "date": "2024-01-10", "result": "6.5", "norm_min": 3.9, "norm_max": 6.1},
		{"type": "Urine", "date": "2024-01-05", "result": "negative"},
		{"type": "Iron", "date": "2024-01-01", "result": "20"},
	} {
		expectStatus(t, env.do(t, http.MethodPost, "/api/analyses", token, a), http.StatusCreated)
	}

	future := time.Now().UTC().AddDate(0, 1, 0)
	expectStatus(t, env.do(t, http.MethodPost, "/api/appointments", token, map[string]string{
		"title": "Therapist", "start_time": future.Format(time.RFC3339), "end_time": future.Add(time.Hour).Format(time.RFC3339),
	}), http.StatusCreated)
	expectStatus(t, env.do(t, http.MethodPost, "/api/appointments", token, map[string]string{
		"title": "Past", "start_time": "2024-01-20 10:00", "end_time": "2024-01-20 11:00",
	}), http.StatusCreated)

	body := expectStatus(t, env.do(t, http.MethodGet, "/api/stats", token, nil), http.StatusOK)
	stats := body["stats"].(map[string]interface{})
	want := map[string]float64{"total_analyses": 4, "abnormal_analyses": 1, "total_appointments": 2, "upcoming_appointments": 1}
	for k, v := range want {
		if stats[k] != v {
			t.Errorf("%s: expected %v, got %v", k, v, stats[k])
		}
	}

	body = expectStatus(t, env.do(t, http.MethodGet, "/api/dashboard", token, nil), http.StatusOK)
	recent := body["recent_analyses"].([]interface{})
	if len(recent) != 3 || recent[0].(map[string]interface{})["type"] != "CBC" {
		t.Errorf("unexpected recent analyses: %v", recent)
	}
	if n := len(body["upcoming_appointments"].([]interface{})); n != 1 {
		t.Errorf("expected 1 upcoming appointment, got %d", n)
	}
}

func TestProfile(t *testing.T) {
	env := setupTestServer(t, testConfig())
	token := env.register(t, "me@example.com")

	body := expectStatus(t, env.do(t, http.MethodGet, "/api/profile", token, nil), http.StatusOK)
	if body["user"].(map[string]interface{})["email"] != "me@example.com" {
		t.Fatalf("unexpected profile: %v", body)
	}

	body = expectStatus(t, env.do(t, http.MethodPut, "/api/profile", token, map[string]string{
		"name": "Renamed", "allergies": "penicillin", "email": "hijack@example.com",
	}), http.StatusOK)
	user := body["user"].(map[string]interface{})
	if user["name"] != "Renamed" || user["allergies"] != "penicillin" || user["email"] != "me@example.com" {
		t.Errorf("unexpected profile after update: %v", user)
	}

	body = expectStatus(t, env.do(t, http.MethodPost, "/api/profile/password", token, map[string]string{
		"current_password": "wrong", "new_password": "newpassword",
	}), http.StatusBadRequest)
	if body["field"] != "current_password" {
		t.Errorf("expected current_password error, got %v", body)
	}

	body = expectStatus(t, env.do(t, http.MethodPost, "/api/profile/password", token, map[string]string{
		"current_password": "password123", "new_password": "abc",
	}), http.StatusBadRequest)
	if body["field"] != "new_password" {
		t.Errorf("expected new_password error, got %v", body)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/profile/password", token, map[string]string{
		"current_password": "password123", "new_password": "newpassword",
	}), http.StatusOK)

	if _, err := env.svc.Login(context.Background(), "me@example.com", "newpassword"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
}

func TestAuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.AuthRateLimitRPS = 1
	env := setupTestServer(t, cfg)

	creds := map[string]string{"email": "ghost@example.com", "password": "password123"}
	expectStatus(t, env.do(t, http.MethodPost, "/api/auth/login", "", creds), http.StatusUnauthorized)
	body := expectStatus(t, env.do(t, http.MethodPost, "/api/auth/login", "", creds), http.StatusTooManyRequests)
	if body["success"] != false {
		t.Errorf("expected envelope, got %v", body)
	}

	// Refresh is not limited
	expectStatus(t, env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": "x"}), http.StatusUnauthorized)
}
