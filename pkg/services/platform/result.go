package platform

import (
	"context"

	"github.com/rs/zerolog"
)

// Result is the outcome of one sub-fetch of a comprehensive record.
type Result[T any] struct {
	Value T
	Err   error
}

func Fetch[T any](ctx context.Context, fn func(context.Context) (T, error)) Result[T] {
	v, err := fn(ctx)
	return Result[T]{Value: v, Err: err}
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

func (r Result[T]) OrDefault(def T) T {
	if r.Err != nil {
		return def
	}
	return r.Value
}

// Absorb logs a failed secondary fetch and returns the fallback value. The
// second return value is false when the fallback was used.
func Absorb[T any](ctx context.Context, what string, r Result[T], def T) (T, bool) {
	if r.Err == nil {
		return r.Value, true
	}
	zerolog.Ctx(ctx).Warn().Err(r.Err).Str("fetch", what).Msg("secondary fetch failed, using fallback")
	return def, false
}
