// Package clock abstracts time for scheduling decisions.
package clock

import (
	"time"

	"go.uber.org/fx"
)

// Module provides the system clock.
var Module = fx.Provide(NewSystemClock)

// Clock supplies the current time. All due-ness decisions go through it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func NewSystemClock() Clock { return &SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC() }
