package drivenet

import (
	"fmt"

	"github.com/chewxy/math32"
)

// SelectBest picks the winning hypothesis out of a multi-hypothesis prediction.
// data holds 'hypotheses' contiguous blocks of 'groupSize' floats. The score of block i lives at
// data[(i+1)*groupSize - 1 + scoreOffset], so a scoreOffset of zero means "the last value of the block".
// Returns a view of the winning block (not a copy), and its index.
// Ties go to the lowest index. NaN scores never win, unless every score is NaN, in which case block 0 wins.
func SelectBest(data []float32, hypotheses, groupSize, scoreOffset int) ([]float32, int) {
	if hypotheses < 1 || groupSize < 1 || scoreOffset > 0 || scoreOffset <= -groupSize {
		panic(fmt.Sprintf("SelectBest: invalid layout hypotheses=%v groupSize=%v scoreOffset=%v", hypotheses, groupSize, scoreOffset))
	}
	if len(data) < hypotheses*groupSize {
		panic(fmt.Sprintf("SelectBest: %v floats is too small for %v x %v", len(data), hypotheses, groupSize))
	}
	scoreIdx := groupSize - 1 + scoreOffset
	best := -1
	bestScore := float32(0)
	for i := 0; i < hypotheses; i++ {
		score := data[i*groupSize+scoreIdx]
		if math32.IsNaN(score) {
			continue
		}
		if best == -1 || score > bestScore {
			best = i
			bestScore = score
		}
	}
	best = max(best, 0)
	start := best * groupSize
	end := start + groupSize
	return data[start:end:end], best
}

// SelectBestInto is SelectBest, but copies the winning block into dst
func SelectBestInto(dst, data []float32, hypotheses, groupSize, scoreOffset int) int {
	block, idx := SelectBest(data, hypotheses, groupSize, scoreOffset)
	if len(dst) < len(block) {
		panic("SelectBestInto: dst too small")
	}
	copy(dst, block)
	return idx
}
