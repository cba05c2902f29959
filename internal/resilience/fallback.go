package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned when every provider in a [FallbackGroup]
// failed or had an open breaker.
var ErrExhausted = errors.New("resilience: all providers failed")

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// FallbackGroup chains a primary provider with zero or more fallbacks of
// the same type. Each member gets its own [Breaker]; members are tried
// in registration order and open-breaker members are skipped.
//
// FallbackGroup is safe for concurrent use once built.
type FallbackGroup[T any] struct {
	members []member[T]
	opts    []BreakerOption
}

// NewFallbackGroup creates a group with primary as the first member.
// The breaker options apply to every member.
func NewFallbackGroup[T any](name string, primary T, opts ...BreakerOption) *FallbackGroup[T] {
	g := &FallbackGroup[T]{opts: opts}
	g.Add(name, primary)
	return g
}

// Add appends a fallback, tried after every member added before it.
func (g *FallbackGroup[T]) Add(name string, v T) {
	g.members = append(g.members, member[T]{
		name:    name,
		value:   v,
		breaker: NewBreaker(name, g.opts...),
	})
}

// Do tries fn against each member in order until one succeeds. If every
// member fails, the last error is wrapped in [ErrExhausted].
func (g *FallbackGroup[T]) Do(fn func(T) error) error {
	var lastErr error
	for i := range g.members {
		m := &g.members[i]
		err := m.breaker.Do(func() error { return fn(m.value) })
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("skipping provider with open breaker", "provider", m.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", m.name, "error", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

// Call tries fn against each member of g until one succeeds, returning
// its result. A package-level function because methods cannot introduce
// type parameters.
func Call[T, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var zero R
	var lastErr error
	for i := range g.members {
		m := &g.members[i]
		var result R
		err := m.breaker.Do(func() error {
			var err error
			result, err = fn(m.value)
			return err
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("skipping provider with open breaker", "provider", m.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", m.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}
