package typecast

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Extraction methods understood by the number caster.
const (
	MethodInt64   = "int64"
	MethodFloat64 = "float64"
)

// ISOTimeLayout is the rendering used by the iso_time caster.
const ISOTimeLayout = "2006-01-02T15:04:05.000Z07:00"

var truthy = map[string]bool{"yes": true, "true": true, "1": true, "ok": true}

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// timeLayouts are tried in order. time.Parse accepts a fractional second after
// the seconds field even when the layout omits it.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RFC822Z,
	time.ANSIC,
	time.UnixDate,
	"January 2, 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

func registerBuiltins(r *Registry) {
	r.Register(castNumber, "number", "float")
	r.Register(castInteger, "integer", "int", "epoch")
	r.Register(castDecimal, "decimal", "big_decimal")
	r.Register(castString, "string", "text")
	r.Register(castBoolean, "boolean", "bool")
	r.Register(castDate, "date")
	r.Register(r.castTime, "time", "timestamp", "datetime")
	r.Register(castISODate, "iso_date")
	r.Register(castISOTime, "iso_time")
	r.Register(castHash, "hash", "object", "hashmap", "dict")
	r.Register(r.castArray, "array")
	r.Register(r.castForeignKey, "foreign_key")
	r.Register(castFile, "file")
	r.Register(castUUID, "uuid")
	r.Register(castDuration, "duration")
}

func castNumber(v any, opts Options) (any, error) {
	if IsBlank(v) {
		return nil, nil
	}
	for _, m := range opts.Methods {
		if out, ok := extract(v, m); ok {
			return out, nil
		}
	}
	return toFloat(v)
}

func castInteger(v any, _ Options) (any, error) {
	n, err := castNumber(v, Options{Methods: []string{MethodInt64}})
	if err != nil || n == nil {
		return n, err
	}
	switch t := n.(type) {
	case int64:
		return t, nil
	case float64:
		// 2^63 is exact as a float64; MinInt64 is -2^63
		if math.IsNaN(t) || math.IsInf(t, 0) || t >= 1<<63 || t < -(1<<63) {
			return nil, errors.Errorf("cannot convert %v to integer", t)
		}
		return int64(t), nil
	}
	return nil, errors.Errorf("cannot convert %T to integer", n)
}

func extract(v any, method string) (any, bool) {
	switch method {
	case MethodInt64:
		switch t := v.(type) {
		case int:
			return int64(t), true
		case int8:
			return int64(t), true
		case int16:
			return int64(t), true
		case int32:
			return int64(t), true
		case int64:
			return t, true
		case uint8:
			return int64(t), true
		case uint16:
			return int64(t), true
		case uint32:
			return int64(t), true
		case uint:
			if t <= math.MaxInt64 {
				return int64(t), true
			}
		case uint64:
			if t <= math.MaxInt64 {
				return int64(t), true
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
				return n, true
			}
		case interface{ Int64() (int64, error) }:
			if n, err := t.Int64(); err == nil {
				return n, true
			}
		}
	case MethodFloat64:
		if f, ok := v.(interface{ Float64() (float64, error) }); ok {
			if n, err := f.Float64(); err == nil {
				return n, true
			}
		}
	}
	return nil, false
}

func toFloat(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int8:
		return float64(t), nil
	case int16:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint:
		return float64(t), nil
	case uint8:
		return float64(t), nil
	case uint16:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case string:
		return parseFloatPrefix(t), nil
	case []byte:
		return parseFloatPrefix(string(t)), nil
	case decimal.Decimal:
		return t.InexactFloat64(), nil
	case time.Time:
		return float64(t.UnixNano()) / 1e9, nil
	case interface{ Float64() (float64, error) }:
		return t.Float64()
	}
	return nil, errors.Errorf("cannot convert %T to number", v)
}

// parseFloatPrefix reads the leading numeric portion of s; text with none is zero.
func parseFloatPrefix(s string) float64 {
	m := numericPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return f
}

func castDecimal(v any, _ Options) (any, error) {
	if IsBlank(v) {
		return nil, nil
	}
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case string:
		return parseDecimalPrefix(t), nil
	case []byte:
		return parseDecimalPrefix(string(t)), nil
	case json.Number:
		return parseDecimalPrefix(t.String()), nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	}
	if n, ok := extract(v, MethodInt64); ok {
		return decimal.NewFromInt(n.(int64)), nil
	}
	f, err := toFloat(v)
	if err != nil {
		return nil, err
	}
	return decimal.NewFromFloat(f.(float64)), nil
}

func parseDecimalPrefix(s string) decimal.Decimal {
	m := numericPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func castString(v any, _ Options) (any, error) {
	return stringify(v), nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	}
	return fmt.Sprint(v)
}

func castBoolean(v any, _ Options) (any, error) {
	return Truthy(v), nil
}

// Truthy reports whether v reads as true the way the boolean caster reads it.
func Truthy(v any) bool {
	return truthy[strings.ToLower(strings.TrimSpace(stringify(v)))]
}

func castDate(v any, _ Options) (any, error) {
	if IsBlank(v) {
		return nil, nil
	}
	return toDate(v)
}

func toDate(v any) (Date, error) {
	switch t := v.(type) {
	case Date:
		return t, nil
	case time.Time:
		return DateOf(t), nil
	}
	t, err := parseTime(stringify(v))
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (r *Registry) castTime(v any, opts Options) (any, error) {
	if IsBlank(v) {
		return nil, nil
	}
	t, err := toTime(v)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	if opts.Precision != PrecisionHigh && !r.preservePrecision {
		t = t.Truncate(time.Second)
	}
	return t, nil
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case Date:
		return t.Time(), nil
	case int, int32, int64, float32, float64:
		f, _ := toFloat(t)
		sec, frac := math.Modf(f.(float64))
		return time.Unix(int64(sec), int64(frac*1e9)), nil
	}
	return parseTime(stringify(v))
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("invalid date %q", s)
}

func castISODate(v any, _ Options) (any, error) {
	if IsBlank(v) {
		return nil, nil
	}
	d, err := toDate(v)
	if err != nil {
		return nil, err
	}
	return d.String(), nil
}

func castISOTime(v any, _ Options) (any, error) {
	if IsBlank(v) {
		return nil, nil
	}
	t, err := toTime(v)
	if err != nil {
		return nil, err
	}
	return t.UTC().Format(ISOTimeLayout), nil
}

func castHash(v any, _ Options) (any, error) {
	switch t := v.(type) {
	case Envelope:
		return unwrapMap(t.UnsafeMap()), nil
	case map[string]any:
		for _, e := range t {
			if _, ok := e.(Envelope); ok {
				return unwrapMap(t), nil
			}
		}
		return t, nil
	}
	if IsBlank(v) {
		return map[string]any{}, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if out, ok := pairsToMap(rv); ok {
			return out, nil
		}
	}
	return map[string]any{}, nil
}

func pairsToMap(rv reflect.Value) (map[string]any, bool) {
	out := make(map[string]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		pair := reflect.ValueOf(rv.Index(i).Interface())
		if (pair.Kind() != reflect.Slice && pair.Kind() != reflect.Array) || pair.Len() != 2 {
			return nil, false
		}
		out[fmt.Sprint(pair.Index(0).Interface())] = pair.Index(1).Interface()
	}
	return out, true
}

func (r *Registry) castArray(v any, opts Options) (any, error) {
	if IsBlank(v) {
		return []any{}, nil
	}

	var out []any
	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8,
		rv.Kind() == reflect.Array:
		out = make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
	default:
		out = []any{v}
	}

	if opts.Of == "" {
		return out, nil
	}
	for i, e := range out {
		cast, err := r.Cast(e, Options{Type: opts.Of})
		if err != nil {
			return nil, err
		}
		out[i] = cast
	}
	return out, nil
}

func (r *Registry) castForeignKey(v any, opts Options) (any, error) {
	if IsBlank(v) {
		return nil, nil
	}

	keyType := opts.ForeignKeyType
	if opts.ForeignKeyTypeFunc != nil {
		keyType = opts.ForeignKeyTypeFunc()
	}
	if keyType != "" {
		return r.Cast(v, Options{Type: keyType})
	}
	if strings.HasSuffix(opts.Name, "_id") {
		return r.Cast(v, Options{Type: "integer"})
	}
	return v, nil
}

func castFile(v any, opts Options) (any, error) {
	if IsBlank(v) {
		return nil, nil
	}

	var content []byte
	switch t := v.(type) {
	case *os.File:
		return t, nil
	case []byte:
		content = t
	case io.Reader:
		b, err := io.ReadAll(t)
		if err != nil {
			return nil, errors.Wrap(err, "read file input")
		}
		content = b
	default:
		content = []byte(stringify(v))
	}

	if opts.Base64 {
		decoded, err := base64.StdEncoding.DecodeString(string(content))
		if err != nil {
			return nil, errors.Wrap(err, "decode base64 file input")
		}
		content = decoded
	}

	f, err := os.CreateTemp("", uuid.NewString())
	if err != nil {
		return nil, errors.Wrap(err, "create temp file")
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "write temp file")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "rewind temp file")
	}
	return f, nil
}

func castUUID(v any, _ Options) (any, error) {
	if IsBlank(v) {
		return nil, nil
	}
	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case [16]byte:
		return uuid.UUID(t), nil
	}
	id, err := uuid.Parse(strings.TrimSpace(stringify(v)))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid uuid %q", stringify(v))
	}
	return id, nil
}

func castDuration(v any, _ Options) (any, error) {
	if IsBlank(v) {
		return nil, nil
	}
	if d, ok := v.(time.Duration); ok {
		return d, nil
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
		if !numericPrefix.MatchString(s) {
			return nil, errors.Errorf("invalid duration %q", s)
		}
	}
	f, err := toFloat(v)
	if err != nil {
		return nil, err
	}
	return time.Duration(f.(float64) * float64(time.Second)), nil
}
