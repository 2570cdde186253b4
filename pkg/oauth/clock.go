package oauth

import "time"

// Clock abstracts the current time so that expiry can be tested without
// waiting for real time to pass.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}
