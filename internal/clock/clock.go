// Package clock abstracts time so billing and retry logic stay testable.
package clock

import (
	"time"

	"go.uber.org/fx"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns the real clock.
func System() Clock { return systemClock{} }

var Module = fx.Module("clock",
	fx.Provide(func() Clock { return System() }),
)
