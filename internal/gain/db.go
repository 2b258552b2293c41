// Package gain holds the gain computation core: dB conversions, the
// noise-to-gain mapper, the attack/release smoother and the soft limiter.
package gain

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// linFloor keeps LinearToDB finite for zero or denormal input.
const linFloor = 1e-12

// DBToLinear converts a gain in dB to a linear amplitude factor.
func DBToLinear(db float64) float64 {
	return core.DBToLinear(db)
}

// LinearToDB converts a linear amplitude factor to dB.
// The sign is ignored and values below 1e-12 are floored.
func LinearToDB(lin float64) float64 {
	return core.LinearToDB(math.Max(math.Abs(lin), linFloor))
}
