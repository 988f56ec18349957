// Package transform reshapes raw login events into rows ready for the store.
package transform

import (
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/leshachaplin/loginpipe/internal/anonymize"
	"github.com/leshachaplin/loginpipe/internal/domain"
)

type Option func(*Transformer)

// WithClock replaces the clock used to stamp create_date.
func WithClock(now func() time.Time) Option {
	return func(t *Transformer) {
		t.now = now
	}
}

type Transformer struct {
	now func() time.Time
}

func New(opts ...Option) *Transformer {
	t := &Transformer{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform masks the identifying fields of raw, flattens it and stamps the
// UTC processing date. Callers check required key presence first.
func (t *Transformer) Transform(raw domain.RawEvent) (domain.NormalizedRow, error) {
	deviceID, err := stringField(raw, domain.FieldDeviceID)
	if err != nil {
		return domain.NormalizedRow{}, err
	}
	ip, err := stringField(raw, domain.FieldIP)
	if err != nil {
		return domain.NormalizedRow{}, err
	}
	version, err := stringField(raw, domain.FieldAppVersion)
	if err != nil {
		return domain.NormalizedRow{}, err
	}
	appVersion, err := FormatVersion(version)
	if err != nil {
		return domain.NormalizedRow{}, err
	}

	extra := Flatten(raw)
	delete(extra, domain.FieldDeviceID)
	delete(extra, domain.FieldIP)
	for _, c := range []string{
		domain.ColumnMaskedDeviceID,
		domain.ColumnMaskedIP,
		domain.ColumnAppVersion,
		domain.ColumnCreateDate,
	} {
		delete(extra, c)
	}

	return domain.NormalizedRow{
		MaskedDeviceID: anonymize.Mask(deviceID),
		MaskedIP:       anonymize.Mask(ip),
		AppVersion:     appVersion,
		CreateDate:     Date(t.now()),
		Extra:          extra,
	}, nil
}

// Date truncates ts to its UTC calendar date.
func Date(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatVersion removes the dots from a dotted-numeric version: "2.3.0" -> "230".
// The result stays a string so leading zeros survive.
func FormatVersion(version string) (string, error) {
	if version == "" {
		return "", &domain.MalformedEventError{Field: domain.FieldAppVersion, Reason: "empty version"}
	}
	for _, part := range strings.Split(version, ".") {
		if part == "" || strings.Trim(part, "0123456789") != "" {
			return "", &domain.MalformedEventError{
				Field:  domain.FieldAppVersion,
				Reason: fmt.Sprintf("%q is not a dotted-numeric version", version),
			}
		}
	}
	return strings.ReplaceAll(version, ".", ""), nil
}

// Flatten turns nested objects into dotted column names:
// {"location":{"city":"X"}} -> {"location.city":"X"}.
// Arrays are kept as their JSON text and numbers become int64 or float64.
func Flatten(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	flatten("", raw, out)
	return out
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = scalar(v)
	}
}

func scalar(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return val
	}
}

func stringField(raw domain.RawEvent, field string) (string, error) {
	v, ok := raw[field]
	if !ok || v == nil {
		return "", &domain.MalformedEventError{Field: field, Reason: "missing value"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &domain.MalformedEventError{Field: field, Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	return s, nil
}
