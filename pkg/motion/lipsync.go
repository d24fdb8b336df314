package motion

import "math"

// MouthAmplitude turns time-domain samples into a mouth-open value:
// round(sqrt(mean(x^2) * 20), 1). An empty buffer yields 0.
func MouthAmplitude(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}

	v := math.Sqrt(sum / float64(len(samples)) * 20)
	return math.Round(v*10) / 10
}
