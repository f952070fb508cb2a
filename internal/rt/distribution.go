package rt

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// Fixed epidemiological priors. Both are published SARS-CoV-2 distributions,
// not estimated from the data:
//
//   - serial interval: Gamma with mean 4.6 days, sd 2.9 (Nishiura et al. 2020,
//     as used by epyestim's standard SI distribution);
//   - infection-to-reporting delay: Gamma with mean 10.3 days, sd 4.3
//     (incubation period convolved with onset-to-reporting delay, Brauner
//     et al. 2020).
const (
	serialIntervalMean = 4.6
	serialIntervalSD   = 2.9

	reportingDelayMean = 10.3
	reportingDelaySD   = 4.3

	// distributionDays is where the discretized tails are truncated; beyond
	// four weeks both densities are negligible.
	distributionDays = 28
)

// discretizeGamma turns a continuous Gamma, parameterized by mean and
// standard deviation, into a daily probability mass function over lags
// 0..days. Mass at lag 0 is forced to zero (an infector cannot generate a
// secondary case on the day of its own infection) and the remainder is
// renormalized to sum to one.
func discretizeGamma(mean, sd float64, days int) []float64 {
	shape := (mean / sd) * (mean / sd)
	rate := mean / (sd * sd)
	dist := distuv.Gamma{Alpha: shape, Beta: rate}

	pmf := make([]float64, days+1)
	total := 0.0
	for k := 1; k <= days; k++ {
		pmf[k] = dist.CDF(float64(k)+0.5) - dist.CDF(float64(k)-0.5)
		total += pmf[k]
	}
	for k := 1; k <= days; k++ {
		pmf[k] /= total
	}
	return pmf
}

// serialInterval returns the discretized serial-interval distribution.
func serialInterval() []float64 {
	return discretizeGamma(serialIntervalMean, serialIntervalSD, distributionDays)
}

// reportingDelayShift returns the whole-day shift applied to estimates so
// that R(t) is indexed by infection date rather than reporting date.
func reportingDelayShift() int {
	mean := float64(reportingDelayMean)
	return int(mean + 0.5)
}
