package typecast

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cast(t *testing.T, r *Registry, v any, opts Options) any {
	t.Helper()
	out, err := r.Cast(v, opts)
	require.NoError(t, err)
	return out
}

func TestNumberCaster(t *testing.T) {
	r := New()
	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"nil", nil, nil},
		{"blank", "", nil},
		{"integer string", "4", 4.0},
		{"float string", "4.5", 4.5},
		{"garbage", "foo", 0.0},
		{"numeric prefix", "12abc", 12.0},
		{"int", 7, 7.0},
		{"json number", json.Number("2.25"), 2.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cast(t, r, tt.input, Options{Type: "number"}))
		})
	}
}

func TestNumberCasterMethods(t *testing.T) {
	r := New()
	out := cast(t, r, json.Number("12"), Options{Type: "number", Methods: []string{MethodInt64}})
	assert.Equal(t, int64(12), out)

	out = cast(t, r, "12", Options{Type: "float", Methods: []string{MethodFloat64}})
	assert.Equal(t, 12.0, out)
}

func TestIntegerCaster(t *testing.T) {
	r := New()
	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"blank", "", nil},
		{"string", "25", int64(25)},
		{"float string", "4.5", int64(4)},
		{"negative float string", "-4.5", int64(-4)},
		{"garbage", "foo", int64(0)},
		{"float", 0.5, int64(0)},
		{"int", 3, int64(3)},
		{"large string", "9007199254740993", int64(9007199254740993)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cast(t, r, tt.input, Options{Type: "integer"}))
		})
	}

	assert.Equal(t, int64(1700000000), cast(t, r, "1700000000", Options{Type: "epoch"}))
}

func TestIntegerCaster_OutOfRange(t *testing.T) {
	r := New()
	for _, in := range []any{"1e30", 1e30, -1e30, "99999999999999999999", float64(1 << 63), uint64(math.MaxUint64)} {
		t.Run(fmt.Sprint(in), func(t *testing.T) {
			out, err := r.Cast(in, Options{Type: "integer"})
			require.Error(t, err)
			assert.Nil(t, out)

			var ce *Error
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "integer", ce.Type)
		})
	}

	assert.Equal(t, int64(math.MinInt64), cast(t, r, float64(math.MinInt64), Options{Type: "integer"}))
}

func TestDecimalCaster(t *testing.T) {
	r := New()

	out := cast(t, r, "25.3", Options{Type: "decimal"})
	assert.True(t, decimal.RequireFromString("25.3").Equal(out.(decimal.Decimal)))

	out = cast(t, r, "foo", Options{Type: "decimal"})
	assert.True(t, decimal.Zero.Equal(out.(decimal.Decimal)))

	out = cast(t, r, 4, Options{Type: "big_decimal"})
	assert.True(t, decimal.NewFromInt(4).Equal(out.(decimal.Decimal)))

	assert.Nil(t, cast(t, r, "", Options{Type: "decimal"}))
}

func TestDecimalCaster_Fallback(t *testing.T) {
	r := New()
	big := uint64(math.MaxInt64) + 1

	tests := []struct {
		name  string
		input any
		want  decimal.Decimal
	}{
		{"time", time.Unix(1700000000, 0), decimal.NewFromInt(1700000000)},
		{"large uint", big, decimal.NewFromFloat(float64(big))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := cast(t, r, tt.input, Options{Type: "decimal"})
			d, ok := out.(decimal.Decimal)
			require.True(t, ok, "got %T", out)
			assert.True(t, tt.want.Equal(d), "got %s", d)

			again := cast(t, r, d, Options{Type: "decimal"})
			assert.Equal(t, d, again)
		})
	}
}

func TestStringCaster(t *testing.T) {
	r := New()
	assert.Equal(t, "foo", cast(t, r, "foo", Options{Type: "string"}))
	assert.Equal(t, "4.2", cast(t, r, 4.2, Options{Type: "string"}))
	assert.Equal(t, "", cast(t, r, "", Options{Type: "text"}))
	assert.Equal(t, "bytes", cast(t, r, []byte("bytes"), Options{Type: "string"}))
	assert.Nil(t, cast(t, r, nil, Options{Type: "string"}))
}

func TestBooleanCaster(t *testing.T) {
	r := New()
	tests := []struct {
		input any
		want  any
	}{
		{"yes", true},
		{"YES", true},
		{"true", true},
		{"True", true},
		{"1", true},
		{1, true},
		{"ok", true},
		{true, true},
		{"no", false},
		{"false", false},
		{"0", false},
		{0, false},
		{"", false},
		{false, false},
		{nil, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cast(t, r, tt.input, Options{Type: "boolean"}), "input %#v", tt.input)
	}
}

func TestDateCaster(t *testing.T) {
	r := New()
	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"date", "2022-12-22", Date{2022, time.December, 22}},
		{"datetime", "2023-05-05T10:00:30", Date{2023, time.May, 5}},
		{"offset keeps its own day", "2020-05-03 13:44:45 -0400", Date{2020, time.May, 3}},
		{"late offset", "2020-05-03 23:44:45 -0400", Date{2020, time.May, 3}},
		{"time value", time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC), Date{2021, time.January, 2}},
		{"false", false, nil},
		{"blank", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cast(t, r, tt.input, Options{Type: "date"}))
		})
	}
}

func TestDateCasterRejectsOutOfRange(t *testing.T) {
	r := New()
	_, err := r.Cast("2015-13-01", Options{Type: "date"})
	require.Error(t, err)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "date", ce.Type)
	assert.Contains(t, ce.Error(), "invalid date")
	assert.NotEmpty(t, ce.StackTrace())
}

func TestTimeCaster(t *testing.T) {
	r := New()

	out := cast(t, r, "2022-12-22T10:30:24.123456Z", Options{Type: "time"})
	assert.Equal(t, time.Date(2022, 12, 22, 10, 30, 24, 0, time.UTC), out)

	out = cast(t, r, "2022-12-22T10:30:24.123456Z", Options{Type: "time", Precision: PrecisionHigh})
	assert.Equal(t, time.Date(2022, 12, 22, 10, 30, 24, 123456000, time.UTC), out)

	out = cast(t, r, "2020-05-03 13:44:45 -0400", Options{Type: "datetime"})
	assert.Equal(t, time.Date(2020, 5, 3, 17, 44, 45, 0, time.UTC), out)

	loc := time.FixedZone("test", 3600)
	out = cast(t, r, time.Date(2020, 1, 1, 1, 0, 0, 500, loc), Options{Type: "timestamp"})
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), out)

	assert.Nil(t, cast(t, r, "", Options{Type: "time"}))

	_, err := r.Cast("not a time", Options{Type: "time"})
	assert.Error(t, err)
}

func TestTimeCasterPreservedPrecision(t *testing.T) {
	r := New(WithPreservedPrecision(true))
	assert.True(t, r.PreservesPrecision())

	out := cast(t, r, "2022-12-22T10:30:24.5Z", Options{Type: "time"})
	assert.Equal(t, time.Date(2022, 12, 22, 10, 30, 24, 500000000, time.UTC), out)
}

func TestISOCasters(t *testing.T) {
	r := New()

	assert.Equal(t, "2022-12-22", cast(t, r, "2022-12-22T10:30:24Z", Options{Type: "iso_date"}))
	assert.Equal(t, "2022-12-22T10:30:24.000Z", cast(t, r, "2022-12-22T10:30:24Z", Options{Type: "iso_time"}))
	assert.Equal(t, "2022-12-22T10:30:24.123Z", cast(t, r, "2022-12-22T10:30:24.123456Z", Options{Type: "iso_time"}))
	assert.Equal(t, "2022-12-22T14:30:24.000Z", cast(t, r, "2022-12-22T10:30:24-04:00", Options{Type: "iso_time"}))
	assert.Nil(t, cast(t, r, "", Options{Type: "iso_time"}))
}

type fakeEnvelope map[string]any

func (e fakeEnvelope) UnsafeMap() map[string]any { return e }

func TestHashCaster(t *testing.T) {
	r := New()
	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"map", map[string]any{"foo": "bar"}, map[string]any{"foo": "bar"}},
		{"blank", "", map[string]any{}},
		{"false", false, map[string]any{}},
		{"pairs", []any{[]any{"a", "b"}}, map[string]any{"a": "b"}},
		{"int keys", map[int]string{1: "one"}, map[string]any{"1": "one"}},
		{"scalar", 4, map[string]any{}},
		{
			"envelope",
			fakeEnvelope{"outer": fakeEnvelope{"inner": 1}},
			map[string]any{"outer": map[string]any{"inner": 1}},
		},
		{
			"nested envelope",
			map[string]any{"outer": fakeEnvelope{"inner": 1}},
			map[string]any{"outer": map[string]any{"inner": 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cast(t, r, tt.input, Options{Type: "hash"}))
		})
	}
}

func TestArrayCaster(t *testing.T) {
	r := New()
	tests := []struct {
		name  string
		input any
		opts  Options
		want  any
	}{
		{"blank", "", Options{}, []any{}},
		{"scalar", "foo", Options{}, []any{"foo"}},
		{"slice", []any{"foo", 1}, Options{}, []any{"foo", 1}},
		{"typed slice", []string{"a", "b"}, Options{}, []any{"a", "b"}},
		{"map", map[string]any{"a": 1}, Options{}, []any{map[string]any{"a": 1}}},
		{"of integer scalar", "3", Options{Of: "integer"}, []any{int64(3)}},
		{"of integer slice", []any{"3.4", 7}, Options{Of: "integer"}, []any{int64(3), int64(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Type = "array"
			assert.Equal(t, tt.want, cast(t, r, tt.input, tt.opts))
		})
	}
}

func TestForeignKeyCaster(t *testing.T) {
	r := New()

	assert.Equal(t, int64(19402), cast(t, r, "19402.0", Options{Type: "foreign_key", Name: "owner_id"}))
	assert.Equal(t, "foo@bar.com", cast(t, r, "foo@bar.com", Options{Type: "foreign_key", ForeignKeyType: "string", Name: "email"}))
	assert.Equal(t, "abc", cast(t, r, "abc", Options{Type: "foreign_key", Name: "slug"}))
	assert.Nil(t, cast(t, r, "", Options{Type: "foreign_key", Name: "owner_id"}))

	called := 0
	out := cast(t, r, 12, Options{
		Type: "foreign_key",
		Name: "owner_id",
		ForeignKeyTypeFunc: func() string {
			called++
			return "string"
		},
	})
	assert.Equal(t, "12", out)
	assert.Equal(t, 1, called)
}

func TestFileCaster(t *testing.T) {
	r := New()

	out := cast(t, r, "some contents", Options{Type: "file"})
	f, ok := out.(*os.File)
	require.True(t, ok)
	t.Cleanup(func() { f.Close(); os.Remove(f.Name()) })

	b, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "some contents", string(b))

	assert.Same(t, f, cast(t, r, f, Options{Type: "file"}))

	encoded := base64.StdEncoding.EncodeToString([]byte("decoded"))
	out = cast(t, r, encoded, Options{Type: "file", Base64: true})
	g := out.(*os.File)
	t.Cleanup(func() { g.Close(); os.Remove(g.Name()) })
	b, err = io.ReadAll(g)
	require.NoError(t, err)
	assert.Equal(t, "decoded", string(b))

	assert.Nil(t, cast(t, r, "", Options{Type: "file"}))
}

func TestUUIDCaster(t *testing.T) {
	r := New()
	id := uuid.New()

	assert.Equal(t, id, cast(t, r, id.String(), Options{Type: "uuid"}))
	assert.Equal(t, id, cast(t, r, id, Options{Type: "uuid"}))

	_, err := r.Cast("nope", Options{Type: "uuid"})
	assert.Error(t, err)
}

func TestDurationCaster(t *testing.T) {
	r := New()

	assert.Equal(t, 90*time.Second, cast(t, r, "1m30s", Options{Type: "duration"}))
	assert.Equal(t, 2*time.Second, cast(t, r, 2, Options{Type: "duration"}))
	assert.Equal(t, 1500*time.Millisecond, cast(t, r, "1.5", Options{Type: "duration"}))

	_, err := r.Cast("soon", Options{Type: "duration"})
	assert.Error(t, err)
}

func TestCastIsIdempotent(t *testing.T) {
	r := New()
	inputs := map[string][]any{
		"number":      {"4.5", 3, "foo"},
		"integer":     {"4.5", 3, "foo"},
		"decimal":     {"1.25", "foo", 3},
		"string":      {4.2, "x"},
		"boolean":     {"yes", "no", 1},
		"date":        {"2022-12-22", "2020-05-03 13:44:45 -0400"},
		"time":        {"2022-12-22T10:30:24.5Z"},
		"iso_date":    {"2022-12-22T10:30:24Z"},
		"iso_time":    {"2022-12-22T10:30:24.123456Z"},
		"hash":        {[]any{[]any{"a", 1}}, ""},
		"array":       {"foo", []any{1, 2}},
		"foreign_key": {"12.0"},
		"uuid":        {"6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		"duration":    {"1m"},
	}
	for tag, values := range inputs {
		for _, v := range values {
			opts := Options{Type: tag, Name: "owner_id"}
			once := cast(t, r, v, opts)
			twice := cast(t, r, once, opts)
			if d, ok := once.(decimal.Decimal); ok {
				assert.True(t, d.Equal(twice.(decimal.Decimal)), "%s(%v)", tag, v)
				continue
			}
			assert.Equal(t, once, twice, "%s(%v)", tag, v)
		}
	}
}
