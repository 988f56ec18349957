package transform

import (
	"strconv"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leshachaplin/loginpipe/internal/anonymize"
	"github.com/leshachaplin/loginpipe/internal/domain"
)

var fixedNow = time.Date(2024, time.March, 9, 23, 30, 0, 0, time.FixedZone("PST", -8*3600))

func TestFormatVersion(t *testing.T) {
	cases := map[string]struct {
		in      string
		want    string
		wantErr bool
	}{
		"three parts":   {in: "2.3.0", want: "230"},
		"two digits":    {in: "1.2.10", want: "1210"},
		"leading zeros": {in: "0.0.1", want: "001"},
		"single part":   {in: "7", want: "7"},
		"empty":         {in: "", wantErr: true},
		"letters":       {in: "2.x.0", wantErr: true},
		"suffix":        {in: "2.3.0-beta", wantErr: true},
		"empty part":    {in: "2..0", wantErr: true},
		"trailing dot":  {in: "2.3.", wantErr: true},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := FormatVersion(tc.in)
			if tc.wantErr {
				var malformed *domain.MalformedEventError
				require.ErrorAs(t, err, &malformed)
				require.Equal(t, domain.FieldAppVersion, malformed.Field)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestTransformer_Transform(t *testing.T) {
	tr := New(WithClock(func() time.Time { return fixedNow }))

	row, err := tr.Transform(domain.RawEvent{
		"user_id":     "u-1",
		"device_id":   "dev-1",
		"ip":          "10.0.0.1",
		"app_version": "2.3.0",
		"locale":      "RU",
		"device_type": "android",
		"location": map[string]any{
			"city": "X",
			"geo":  map[string]any{"lat": json.Number("1.5")},
		},
		"attempts": json.Number("3"),
		"tags":     []any{"a", "b"},
		"trusted":  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "0388fb626ca89a127847443989334b8c29e17567bc03a7a2ed13effca701a4a1", row.MaskedDeviceID)
	assert.Equal(t, "f5047344122f0dee9974ba6761e61c6b8649e1f3968d13a635ebbf7be53a3a0d", row.MaskedIP)
	assert.Equal(t, "230", row.AppVersion)
	assert.Equal(t, time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC), row.CreateDate)

	assert.Equal(t, map[string]any{
		"user_id":          "u-1",
		"locale":           "RU",
		"device_type":      "android",
		"location.city":    "X",
		"location.geo.lat": 1.5,
		"attempts":         int64(3),
		"tags":             `["a","b"]`,
		"trusted":          true,
	}, row.Extra)
	assert.NotContains(t, row.Extra, domain.FieldDeviceID)
	assert.NotContains(t, row.Extra, domain.FieldIP)
}

func TestTransformer_Malformed(t *testing.T) {
	tr := New()

	cases := map[string]struct {
		raw   domain.RawEvent
		field string
	}{
		"missing app_version": {
			raw:   domain.RawEvent{"device_id": "d", "ip": "i"},
			field: domain.FieldAppVersion,
		},
		"null app_version": {
			raw:   domain.RawEvent{"device_id": "d", "ip": "i", "app_version": nil},
			field: domain.FieldAppVersion,
		},
		"numeric app_version": {
			raw:   domain.RawEvent{"device_id": "d", "ip": "i", "app_version": json.Number("2")},
			field: domain.FieldAppVersion,
		},
		"numeric device_id": {
			raw:   domain.RawEvent{"device_id": json.Number("42"), "ip": "i", "app_version": "1.0"},
			field: domain.FieldDeviceID,
		},
		"null ip": {
			raw:   domain.RawEvent{"device_id": "d", "ip": nil, "app_version": "1.0"},
			field: domain.FieldIP,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tr.Transform(tc.raw)
			var malformed *domain.MalformedEventError
			require.ErrorAs(t, err, &malformed)
			require.Equal(t, tc.field, malformed.Field)
		})
	}
}

func TestTransformer_SameEventTwice(t *testing.T) {
	day := fixedNow
	tr := New(WithClock(func() time.Time { return day }))
	raw := domain.RawEvent{"device_id": "d", "ip": "i", "app_version": "1.0"}

	first, err := tr.Transform(raw)
	require.NoError(t, err)
	day = day.Add(48 * time.Hour)
	second, err := tr.Transform(raw)
	require.NoError(t, err)

	require.Equal(t, first.MaskedDeviceID, second.MaskedDeviceID)
	require.Equal(t, first.MaskedIP, second.MaskedIP)
	require.NotEqual(t, first.CreateDate, second.CreateDate)
}

func TestProperty_Transform(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	tr := New(WithClock(func() time.Time { return fixedNow }))

	properties.Property("masked fields depend only on the raw field", prop.ForAll(
		func(deviceID, ip string) bool {
			row, err := tr.Transform(domain.RawEvent{
				"device_id":   deviceID,
				"ip":          ip,
				"app_version": "1.0.0",
			})
			if err != nil {
				return false
			}
			return row.MaskedDeviceID == anonymize.Mask(deviceID) && row.MaskedIP == anonymize.Mask(ip)
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("version formatting only removes dots", prop.ForAll(
		func(parts []uint16) bool {
			if len(parts) == 0 {
				return true
			}
			strs := make([]string, len(parts))
			for i, p := range parts {
				strs[i] = strconv.FormatUint(uint64(p), 10)
			}
			got, err := FormatVersion(strings.Join(strs, "."))
			return err == nil && got == strings.Join(strs, "")
		},
		gen.SliceOf(gen.UInt16()),
	))

	properties.TestingRun(t)
}
