package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Series accumulates samples of one decoded quantity across ticks
type Series struct {
	Name    string
	samples []float64
}

type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Median float64
	P95    float64
	Max    float64
}

func NewSeries(name string) *Series {
	return &Series{Name: name}
}

// Add a sample. NaN and Inf are ignored.
func (s *Series) Add(v float32) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return
	}
	s.samples = append(s.samples, f)
}

func (s *Series) Len() int {
	return len(s.samples)
}

// Summary computes statistics over all samples so far. All values are zero if there are no samples.
func (s *Series) Summary() Summary {
	if len(s.samples) == 0 {
		return Summary{}
	}
	sorted := append([]float64{}, s.samples...)
	sort.Float64s(sorted)
	sum := Summary{
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    floats.Max(sorted),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		sum.Mean, sum.StdDev = stat.MeanStdDev(sorted, nil)
	} else {
		sum.Mean = sorted[0]
	}
	return sum
}

func (s *Series) String() string {
	sum := s.Summary()
	return fmt.Sprintf("%v: n=%v mean=%.3f std=%.3f min=%.3f median=%.3f p95=%.3f max=%.3f",
		s.Name, sum.Count, sum.Mean, sum.StdDev, sum.Min, sum.Median, sum.P95, sum.Max)
}

// Returns the mode and count of the most frequent element in the given samples.
// Ties go to the element that appears first.
func Mode[T comparable](src []T) (mode T, count int) {
	counts := make(map[T]int)
	for _, v := range src {
		counts[v]++
	}
	for _, v := range src {
		if counts[v] > count {
			mode = v
			count = counts[v]
		}
	}
	return
}
