package domain

// Dataset names one of the two upstream payloads.
type Dataset string

const (
	// DatasetTimeseries is the full per-region daily time series.
	DatasetTimeseries Dataset = "timeseries"
	// DatasetDaily is the current-day snapshot with per-region metadata,
	// including population.
	DatasetDaily Dataset = "daily"
)
