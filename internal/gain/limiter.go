package gain

import "math"

// DefaultLimitThreshold is the knee as a fraction of full scale.
const DefaultLimitThreshold = 0.98

// SoftLimit passes |sample| <= threshold unchanged and compresses the excess
// above it into (0, 1). Output magnitude approaches threshold+1 for unbounded
// input, so callers still hard-clamp to the representable range.
func SoftLimit(sample, threshold float64) float64 {
	abs := math.Abs(sample)
	if abs <= threshold {
		return sample
	}
	excess := abs - threshold
	return math.Copysign(threshold+excess/(1+excess), sample)
}

// ApplyGainAndLimit scales frame in place by gainLin, soft-limits at
// threshold (fraction of full scale) and clamps to [-1, 1]. It returns the
// number of samples that hit the limiter knee.
func ApplyGainAndLimit(frame []float32, gainLin, threshold float64) int {
	limited := 0
	for i, s := range frame {
		v := float64(s) * gainLin
		if math.Abs(v) > threshold {
			limited++
			v = SoftLimit(v, threshold)
		}
		frame[i] = float32(clampUnit(v))
	}
	return limited
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
