package domain

import "errors"

// Error kinds surfaced by the data layer. Callers branch with errors.Is;
// none of these are ever converted to default or empty results.
var (
	// ErrNotFound covers unknown region codes and missing files.
	ErrNotFound = errors.New("not found")

	// ErrStaleUnavailable means today's R(t) archive has not been computed
	// yet. Distinct from ErrNotFound: the caller should check back later,
	// and must not fall back to a prior day's archive.
	ErrStaleUnavailable = errors.New("not yet available")

	// ErrUpstream covers network fetch failures and malformed payloads.
	// Fatal, never retried automatically.
	ErrUpstream = errors.New("upstream failure")

	// ErrInvariant marks a data-integrity violation, such as a region
	// present in the timeseries but absent from the population snapshot.
	ErrInvariant = errors.New("data integrity violation")
)
