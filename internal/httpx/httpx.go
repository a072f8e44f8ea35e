package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidPage  = errors.New("invalid page")
	ErrInvalidLimit = errors.New("invalid limit")
	ErrInvalidSort  = errors.New("invalid sort")
	ErrInvalidRange = errors.New("invalid date range")
)

func DecodeJSON(body io.Reader, v interface{}) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain a single JSON object")
	}
	return nil
}

func ValidationDetails(errs validator.ValidationErrors) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	details := make(map[string]string, len(errs))
	for _, err := range errs {
		details[err.Field()] = err.Tag()
	}
	return details
}

// Page is a 1-based page request.
type Page struct {
	Page  int64
	Limit int64
}

func (p Page) Skip() int64 {
	return (p.Page - 1) * p.Limit
}

func ParsePage(values url.Values, defaultLimit, maxLimit int64) (Page, error) {
	p := Page{Page: 1, Limit: defaultLimit}

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return Page{}, ErrInvalidPage
		}
		p.Page = parsed
	}

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return Page{}, ErrInvalidLimit
		}
		p.Limit = parsed
	}

	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p, nil
}

type Sort struct {
	Field string
	Desc  bool
}

// ParseSort reads "sort=field" or "sort=-field"; only allowed fields are accepted.
func ParseSort(values url.Values, allowed []string, fallback Sort) (Sort, error) {
	raw := strings.TrimSpace(values.Get("sort"))
	if raw == "" {
		return fallback, nil
	}
	s := Sort{Field: raw}
	if strings.HasPrefix(raw, "-") {
		s = Sort{Field: raw[1:], Desc: true}
	}
	for _, a := range allowed {
		if a == s.Field {
			return s, nil
		}
	}
	return Sort{}, ErrInvalidSort
}

// ParseTimeRange reads from/to as RFC3339 or YYYY-MM-DD. A bare "to" date covers the whole day.
func ParseTimeRange(values url.Values, loc *time.Location) (*time.Time, *time.Time, error) {
	from, err := parseInstant(values.Get("from"), loc, false)
	if err != nil {
		return nil, nil, ErrInvalidRange
	}
	to, err := parseInstant(values.Get("to"), loc, true)
	if err != nil {
		return nil, nil, ErrInvalidRange
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, ErrInvalidRange
	}
	return from, to, nil
}

func parseInstant(raw string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	d, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return &d, nil
}

// ParseList splits a comma separated query value such as fields=a,b or include=x.
func ParseList(values url.Values, key string) []string {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func Includes(values url.Values, name string) bool {
	for _, v := range ParseList(values, "include") {
		if v == name {
			return true
		}
	}
	return false
}

// PickFields re-encodes v through JSON and keeps only the requested keys; "id" is always kept.
func PickFields(v interface{}, fields []string) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var full map[string]interface{}
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(fields)+1)
	if id, ok := full["id"]; ok {
		out["id"] = id
	}
	for _, f := range fields {
		if val, ok := full[f]; ok {
			out[f] = val
		}
	}
	return out, nil
}
