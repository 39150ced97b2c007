package internal

import "strconv"

// Scalar is the set of types Param and Query can decode.
type Scalar interface {
	~string | ~int | ~int64 | ~float64 | ~bool
}

// ContextValue returns the value stored under key, or the zero T.
func ContextValue[T any](c Context, key any) T {
	v, _ := c.Get(key).(T)
	return v
}

// Param decodes a URL parameter. Missing or malformed values yield the zero T.
func Param[T Scalar](c Context, name string) T {
	v, _ := parseScalar[T](c.Param(name))
	return v
}

// Query decodes a query parameter. Missing or malformed values yield the zero T.
func Query[T Scalar](c Context, name string) T {
	v, _ := parseScalar[T](c.Query(name))
	return v
}

// QueryDefault is Query with a fallback for missing or malformed values.
func QueryDefault[T Scalar](c Context, name string, def T) T {
	if v, ok := parseScalar[T](c.Query(name)); ok {
		return v
	}
	return def
}

func parseScalar[T Scalar](raw string) (T, bool) {
	var out T
	if raw == "" {
		return out, false
	}
	var (
		v   any
		err error
	)
	switch any(out).(type) {
	case string:
		v = raw
	case int:
		v, err = strconv.Atoi(raw)
	case int64:
		v, err = strconv.ParseInt(raw, 10, 64)
	case float64:
		v, err = strconv.ParseFloat(raw, 64)
	case bool:
		v, err = strconv.ParseBool(raw)
	default:
		return out, false
	}
	if err != nil {
		return out, false
	}
	out, ok := v.(T)
	return out, ok
}
