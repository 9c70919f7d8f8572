package mon

import "time"

// Thunk is a timing monitor for one call site. The zero value is ready
// to use.
type Thunk struct {
	his Histogram
}

// Start begins a timing and returns the Timer that stops it.
func (t *Thunk) Start() Timer {
	t.his.start()
	return Timer{
		his:   &t.his,
		begin: time.Now(),
	}
}

// Histogram returns the histogram the thunk records into.
func (t *Thunk) Histogram() *Histogram { return &t.his }

// Timer is an in-progress timing.
type Timer struct {
	his   *Histogram
	begin time.Time
}

// Stop records the duration since Start.
func (t Timer) Stop() { t.his.done(time.Since(t.begin).Nanoseconds()) }
