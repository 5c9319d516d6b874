// Package postprocess reduces raw model output scores to a class
// decision.
package postprocess

import "math"

// Softmax turns raw scores into a probability distribution. The maximum
// score is subtracted from every entry before exponentiating, which
// leaves the result unchanged mathematically but avoids overflow for
// large magnitudes and underflow for very negative ones.
func Softmax(scores []float32) []float32 {
	if len(scores) == 0 {
		return nil
	}
	maxVal := scores[0]
	for _, s := range scores[1:] {
		if s > maxVal {
			maxVal = s
		}
	}

	probs := make([]float32, len(scores))
	var sum float32
	for i, s := range scores {
		probs[i] = float32(math.Exp(float64(s - maxVal)))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// Argmax returns the index of the maximum value, or -1 for an empty
// slice. The scan only replaces the running maximum on a strictly
// greater value, so ties resolve to the lowest index.
func Argmax(values []float32) int {
	if len(values) == 0 {
		return -1
	}
	maxIdx := 0
	maxVal := values[0]
	for i, v := range values[1:] {
		if v > maxVal {
			maxVal = v
			maxIdx = i + 1
		}
	}
	return maxIdx
}
