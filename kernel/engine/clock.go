package engine

import "time"

// Clock is the time source of the elapsed tracker.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{Ticker: time.NewTicker(d)}
}

type systemTicker struct {
	*time.Ticker
}

func (t *systemTicker) Chan() <-chan time.Time {
	return t.C
}
