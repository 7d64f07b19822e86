package drivenet

import (
	"github.com/bmharper/ringbuffer"
)

const (
	brake5HistoryLen = 5
	brake3HistoryLen = 3
	brake5LowTierLen = 2 // The oldest samples of the 5 m/s² history are compared against the low threshold
)

// Forward collision warning thresholds
type FCWThresholds struct {
	Brake5Low  float32 // Two oldest samples of the 5 m/s² series must exceed this
	Brake5High float32 // Three newest samples of the 5 m/s² series must exceed this
	Brake3     float32 // All samples of the 3 m/s² series must exceed this
}

func DefaultFCWThresholds() FCWThresholds {
	return FCWThresholds{
		Brake5Low:  0.05,
		Brake5High: 0.15,
		Brake3:     0.7,
	}
}

// BrakeHistory remembers the most recent hard braking probabilities, so that a forward collision
// warning is only raised after the model has been consistently predicting a hard brake.
// It is not safe for concurrent use.
type BrakeHistory struct {
	thresholds FCWThresholds
	brake5     ringbuffer.RingP[float32]
	brake3     ringbuffer.RingP[float32]
}

func NewBrakeHistory(thresholds FCWThresholds) *BrakeHistory {
	h := &BrakeHistory{
		thresholds: thresholds,
	}
	h.Reset()
	return h
}

// Reset forgets all history
func (h *BrakeHistory) Reset() {
	h.brake5 = newHistoryRing(brake5HistoryLen)
	h.brake3 = newHistoryRing(brake3HistoryLen)
}

// Update appends the latest probability of braking harder than 5 m/s² and 3 m/s²
// (the first interval of each series), evicting the oldest samples.
// Returns true if every retained sample is above its threshold.
// Until the history is full, the result is false.
func (h *BrakeHistory) Update(brake5, brake3 float32) bool {
	push(&h.brake5, brake5, brake5HistoryLen)
	push(&h.brake3, brake3, brake3HistoryLen)
	return h.AboveThreshold()
}

// AboveThreshold returns true if the history is full and every sample is above its threshold
func (h *BrakeHistory) AboveThreshold() bool {
	if h.brake5.Len() < brake5HistoryLen || h.brake3.Len() < brake3HistoryLen {
		return false
	}
	for i := 0; i < brake5HistoryLen; i++ {
		threshold := h.thresholds.Brake5High
		if i < brake5LowTierLen {
			threshold = h.thresholds.Brake5Low
		}
		// Written so that NaN fails
		if !(h.brake5.Peek(i) > threshold) {
			return false
		}
	}
	for i := 0; i < brake3HistoryLen; i++ {
		if !(h.brake3.Peek(i) > h.thresholds.Brake3) {
			return false
		}
	}
	return true
}

// Samples returns copies of the 5 m/s² and 3 m/s² histories, oldest first
func (h *BrakeHistory) Samples() (brake5, brake3 []float32) {
	return ringToSlice(&h.brake5), ringToSlice(&h.brake3)
}

// A RingP of size s holds at most s-1 elements
func newHistoryRing(n int) ringbuffer.RingP[float32] {
	return ringbuffer.NewRingP[float32](nextPowerOf2(n + 1))
}

func push(r *ringbuffer.RingP[float32], v float32, maxLen int) {
	for r.Len() >= maxLen {
		r.Next()
	}
	r.Add(v)
}

func ringToSlice(r *ringbuffer.RingP[float32]) []float32 {
	out := make([]float32, r.Len())
	for i := range out {
		out[i] = r.Peek(i)
	}
	return out
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
