/*
Package typecast coerces untrusted input values to declared field types.

A Registry maps type tags to coercion functions. Casting is lenient by design of the
built-in tags: it normalizes shape and never validates content, so validations
run against the cast values rather than the raw inputs.

# Built-in Tags

  - number, float:                  float64 (blank -> nil, garbage text -> 0)
  - integer, int, epoch:            int64, truncated toward zero
  - decimal, big_decimal:           decimal.Decimal (invalid text -> 0)
  - string, text:                   string
  - boolean, bool:                  true for yes/true/1/ok (case-insensitive)
  - date:                           Date
  - time, timestamp, datetime:      time.Time in UTC, second precision unless preserved
  - iso_date, iso_time:             ISO-8601 strings
  - hash, object, hashmap, dict:    map[string]any
  - array:                          []any, optionally cast element-wise via Options.Of
  - foreign_key:                    key cast by the target's key type, or integer for *_id
  - file:                           *os.File
  - uuid:                           uuid.UUID
  - duration:                       time.Duration

A nil value, or Options without a Type, is always returned unchanged.

# Registering Casters

	reg := typecast.New()
	reg.Register(func(v any, _ typecast.Options) (any, error) {
		return strings.ToLower(fmt.Sprint(v)), nil
	}, "lowercase")

	out, err := reg.Cast("ABC", typecast.Options{Type: "lowercase"})
*/
package typecast
