package math

import (
	gomath "math"
)

// Scale maps a ratio in [0,1] onto [0,max], rounded half away from zero
func Scale(ratio float64, max float64) int {
	return int(gomath.Round(ratio * max))
}

// Round rounds a value to the given number of decimal places
func Round(value float64, places int) float64 {
	factor := gomath.Pow(10, float64(places))
	return gomath.Round(value*factor) / factor
}

// Mean calculates the arithmetic mean, zero for an empty input
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// ImpactPercent calculates the relative change from baseline to final in percent,
// zero when the baseline is zero
func ImpactPercent(baseline, final float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (final - baseline) / baseline * 100
}
