package dataset

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/covidmodeling/covid-data-service/internal/domain"
	"github.com/covidmodeling/covid-data-service/internal/store"
)

// populationFile is the undated snapshot of per-region populations, written
// once and reused across days.
const populationFile = "state-population.json"

// Populations maps region codes to population counts. The unknown-region
// sentinel carries -1 and must never reach normalized output.
type Populations map[string]int64

// dailyMeta is the slice of data.min.json we care about here.
type dailyMeta map[string]struct {
	Meta struct {
		Population int64 `json:"population"`
	} `json:"meta"`
}

// LoadPopulations returns the population snapshot, building it from the daily
// dataset's per-region metadata the first time it is needed. The snapshot has
// its own cache lifecycle, independent of the dated timeseries entries.
func LoadPopulations(ctx context.Context, cache *store.DailyCache, fetch store.FetchFunc) (Populations, error) {
	body, _, err := cache.ReadOrCreate(populationFile, func() ([]byte, error) {
		payload, err := fetch(ctx, domain.DatasetDaily)
		if err != nil {
			return nil, err
		}

		var meta dailyMeta
		if err := json.Unmarshal(payload, &meta); err != nil {
			return nil, fmt.Errorf("%w: malformed daily payload: %v", domain.ErrUpstream, err)
		}

		pops := make(Populations, len(meta)+1)
		for code, entry := range meta {
			pops[code] = entry.Meta.Population
		}
		pops[domain.UnknownCode] = -1

		return json.Marshal(pops)
	})
	if err != nil {
		return nil, err
	}

	var pops Populations
	if err := json.Unmarshal(body, &pops); err != nil {
		return nil, fmt.Errorf("%w: malformed population snapshot: %v", domain.ErrUpstream, err)
	}
	return pops, nil
}
