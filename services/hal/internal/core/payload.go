package core

import (
	"hcsr04-go/errcode"
	"hcsr04-go/services/hal/internal/util"
)

// As[T] asserts a payload to the concrete value type T.
// Pointers are not accepted. A nil payload is treated as the zero value of T.
func As[T any](v any) (T, errcode.Code) {
	var zero T
	if v == nil {
		return zero, ""
	}
	t, ok := v.(T)
	if !ok {
		return zero, errcode.InvalidPayload
	}
	return t, ""
}

// DecodeParams accepts device params either as T itself (set in code) or as
// the JSON-shaped value decoded from a config file (map, []byte, string).
func DecodeParams[T any](v any) (T, error) {
	if t, code := As[T](v); code == "" {
		return t, nil
	}
	var t T
	if err := util.DecodeJSON(v, &t); err != nil {
		return t, &errcode.E{C: errcode.InvalidParams, Op: "decode_params", Err: err}
	}
	return t, nil
}
