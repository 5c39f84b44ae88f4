package speedprobe

import (
	"math"
	"time"
)

func getMean(series []float64) float64 {
	ret := float64(0)
	nSamplesF64 := float64(len(series))

	for _, element := range series {
		ret += element / nSamplesF64
	}

	return ret
}

// getRMSDeviation returns the root-mean-square deviation of the series from
// the given mean, i.e. the jitter of a round-trip sample set.
func getRMSDeviation(series []float64, mean float64) float64 {
	ret := float64(0)
	nSamplesF64 := float64(len(series))

	for _, element := range series {
		deviation := element - mean
		ret += deviation * deviation / nSamplesF64
	}

	return math.Sqrt(ret)
}

func getDurationMSSamples(durations []time.Duration) []float64 {
	samples := []float64{}

	for _, duration := range durations {
		durationMSF64 := float64(duration.Microseconds()) / 1000
		samples = append(samples, durationMSF64)
	}

	return samples
}
