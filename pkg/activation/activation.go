// Package activation holds the scalar and elementwise activations that turn raw
// network outputs (logits, log-stds) into probabilities and standard deviations.
// All functions operate on float32, which is what the model emits.
package activation

import (
	"github.com/chewxy/math32"
)

// MaxExpArg is the largest argument we'll pass to exp. exp(88) is still a finite float32.
const MaxExpArg = 88

// Max returns the largest element of x.
// NaN elements are skipped unless x[0] is NaN. Panics if x is empty.
func Max(x []float32) float32 {
	if len(x) == 0 {
		panic("activation.Max of empty slice")
	}
	m := x[0]
	for _, v := range x[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Softmax writes the normalized exponentials of x into out.
// out may alias x. len(out) must be at least len(x).
//
// The numerator and the denominator are both shifted by max(x), so large logits don't overflow.
// If any element is +Inf, the mass is shared equally between the +Inf elements.
// If every element is -Inf, the result is uniform.
// A NaN anywhere in x produces NaN output.
func Softmax(x, out []float32) {
	if len(out) < len(x) {
		panic("activation.Softmax output too small")
	}
	if len(x) == 0 {
		return
	}
	m := Max(x)
	if math32.IsInf(m, 1) {
		nInf := 0
		for _, v := range x {
			if math32.IsInf(v, 1) {
				nInf++
			}
		}
		share := 1 / float32(nInf)
		for i, v := range x {
			if math32.IsInf(v, 1) {
				out[i] = share
			} else {
				out[i] = 0
			}
		}
		return
	}
	if math32.IsInf(m, -1) {
		uniform := 1 / float32(len(x))
		for i := range x {
			out[i] = uniform
		}
		return
	}
	sum := float32(0)
	for i, v := range x {
		e := math32.Exp(v - m)
		out[i] = e
		sum += e
	}
	for i := range x {
		out[i] /= sum
	}
}

// Sigmoid returns 1 / (1 + exp(-x)).
// In float32 the result saturates to exactly 0 or 1 once |x| exceeds about 17.
func Sigmoid(x float32) float32 {
	if x >= 0 {
		return 1 / (1 + math32.Exp(-x))
	}
	// Avoid exp(-x) overflowing for large negative x
	e := math32.Exp(x)
	return e / (1 + e)
}

// SigmoidInto applies Sigmoid elementwise. out may alias x.
func SigmoidInto(x, out []float32) {
	for i, v := range x {
		out[i] = Sigmoid(v)
	}
}

// Softplus returns log(1 + exp(x)), computed as log1p(exp(-|x|)) + max(x, 0)
func Softplus(x float32) float32 {
	return math32.Log1p(math32.Exp(-math32.Abs(x))) + max(x, 0)
}

// SoftplusInto applies Softplus elementwise. out may alias x.
func SoftplusInto(x, out []float32) {
	for i, v := range x {
		out[i] = Softplus(v)
	}
}

// Exp returns exp(x), with x clamped to MaxExpArg so that the result is always finite (unless x is NaN).
// This is used to decode log-std outputs.
func Exp(x float32) float32 {
	return math32.Exp(min(x, MaxExpArg))
}
