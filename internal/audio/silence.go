package audio

import (
	"time"

	"github.com/Dissssy/NeonCircle-sub001/internal/config"
)

// GapSamples converts a wall-clock gap between packets into the number of
// zero samples to insert so buffered audio stays time-proportional to
// speech. Gaps at or below the jitter allowance are normal packet pacing and
// produce nothing. The count is always even: samples interleave two channels
// and an odd insert would swap them for the rest of the buffer.
func GapSamples(gap, allowance, offset time.Duration) int {
	if gap <= allowance {
		return 0
	}
	padded := gap - offset
	if padded <= 0 {
		return 0
	}
	n := int(padded.Seconds() * float64(config.SampleRate*config.Channels))
	return n / 2 * 2
}

// Silence returns n zero-valued samples.
func Silence(n int) []int16 {
	return make([]int16, n)
}
