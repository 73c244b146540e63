// Package activity derives per-participant talk levels from live audio.
package activity

import "math"

// Level computes the normalized RMS energy of a PCM frame, 0.0 (silence)
// to 1.0 (full scale). Used on the local capture path where raw samples
// are available.
func Level(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		f := float64(s) / math.MaxInt16
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(pcm)))
}

// levelFromDBov converts an RFC 6464 audio level (0 dBov loudest, 127
// silence) to a normalized linear scale.
func levelFromDBov(dbov uint8) float64 {
	if dbov >= 127 {
		return 0
	}
	return math.Pow(10, -float64(dbov)/20)
}

// IsActive reports whether a level counts as speech.
func IsActive(level, threshold float64) bool {
	return level >= threshold
}
