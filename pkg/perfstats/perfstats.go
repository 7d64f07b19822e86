package perfstats

import "time"

// Accumulate samples of how long something took, along with the extremes
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
	Min     time.Duration
	Max     time.Duration
}

func (a *TimeAccumulator) Reset() {
	*a = TimeAccumulator{}
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	if a.Samples == 0 || v < a.Min {
		a.Min = v
	}
	if v > a.Max {
		a.Max = v
	}
	a.Samples++
	a.Total += v
}

// Time the duration since 'start' and add it as a sample
func (a *TimeAccumulator) AddSince(start time.Time) {
	a.AddSample(time.Since(start))
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}

// Counter counts events, of which some failed
type Counter struct {
	Total  int64
	Failed int64
}

func (c *Counter) Add(ok bool) {
	c.Total++
	if !ok {
		c.Failed++
	}
}

// FailureRate returns the fraction of events that failed
func (c *Counter) FailureRate() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Failed) / float64(c.Total)
}
