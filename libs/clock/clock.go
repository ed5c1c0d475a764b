// Package clock provides the wall-clock capability injected into scheduling code.
// Only cmd/ entry points should construct a Real clock; everything else receives a
// Clock so tests can pin "now".
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fixed always reports the same instant.
type Fixed struct {
	T time.Time
}

func (c Fixed) Now() time.Time { return c.T }

func NewFixed(t time.Time) Clock { return Fixed{T: t} }

// Func adapts a function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }
