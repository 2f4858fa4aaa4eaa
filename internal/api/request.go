package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"medical-book/internal/models"
	"medical-book/internal/storage"
)

// Layouts accepted for dates and times in request bodies. Values without a
// zone are taken as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

// FlexTime is a date or date-time given as a string. null and "" leave it
// unset.
type FlexTime struct {
	t   time.Time
	set bool
}

func (f *FlexTime) UnmarshalJSON(b []byte) error {
	*f = FlexTime{}
	if isNull(b) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid date %s", b)
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return err
	}
	f.t, f.set = t, true
	return nil
}

func (f FlexTime) Ptr() *time.Time {
	if !f.set {
		return nil
	}
	t := f.t
	return &t
}

func (f FlexTime) Value() time.Time { return f.t }

// FlexFloat accepts a JSON number or a numeric string. null and "" leave it
// unset.
type FlexFloat struct {
	v   float64
	set bool
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	*f = FlexFloat{}
	if isNull(b) {
		return nil
	}
	raw := string(bytes.TrimSpace(b))
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid number %s", b)
	}
	f.v, f.set = v, true
	return nil
}

func (f FlexFloat) Ptr() *float64 {
	if !f.set {
		return nil
	}
	v := f.v
	return &v
}

// FlexString accepts a string or a bare JSON number, kept as written.
type FlexString struct {
	s   string
	set bool
}

func (f *FlexString) UnmarshalJSON(b []byte) error {
	*f = FlexString{}
	if isNull(b) {
		return nil
	}
	raw := bytes.TrimSpace(b)
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &f.s); err != nil {
			return err
		}
		f.set = true
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("invalid value %s", b)
	}
	f.s, f.set = n.String(), true
	return nil
}

func (f FlexString) Ptr() *string {
	if !f.set {
		return nil
	}
	s := f.s
	return &s
}

func (f FlexString) Value() string { return f.s }

// optional drops blank strings, which forms send for untouched inputs.
func optional(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		msg := "invalid request body"
		if he, ok := err.(*echo.HTTPError); ok && he.Internal != nil {
			msg += ": " + he.Internal.Error()
		}
		return echo.NewHTTPError(http.StatusBadRequest, msg).SetInternal(err)
	}
	return nil
}

func parsePage(c echo.Context) (models.Page, error) {
	var p models.Page
	for _, q := range []struct {
		name string
		dst  *int
	}{{"limit", &p.Limit}, {"offset", &p.Offset}} {
		raw := c.QueryParam(q.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return models.Page{}, &storage.ValidationError{Field: q.name, Message: "must be a non-negative integer"}
		}
		*q.dst = n
	}
	return p, nil
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, storage.ErrNotFound
	}
	return id, nil
}
