package model

import (
	"time"

	"github.com/samber/lo"
	"gopkg.in/guregu/null.v3"
)

// Indicator tags an observation with the economic indicator its series
// belongs to. The tag is assigned after fetching, per source query; it is not
// part of the raw provider payload.
type Indicator string

const (
	IndicatorCLI Indicator = "CLI"
	IndicatorBCI Indicator = "BCI"
	IndicatorCCI Indicator = "CCI"
)

// Indicators lists all indicators in the fixed order their batches are
// fetched and concatenated.
var Indicators = []Indicator{IndicatorCLI, IndicatorBCI, IndicatorCCI}

func (i Indicator) Valid() bool {
	return i == IndicatorCLI || i == IndicatorBCI || i == IndicatorCCI
}

// Label returns the indicator's display name.
func (i Indicator) Label() string {
	switch i {
	case IndicatorCLI:
		return "Composite Leading Indicator (CLI)"
	case IndicatorBCI:
		return "Business Confidence Index (BCI)"
	case IndicatorCCI:
		return "Consumer Confidence Index (CCI)"
	}
	return string(i)
}

// RawObservation is one fetched provider row before sentinel filtering.
// Value is invalid when the provider published the NA sentinel for that
// period.
type RawObservation struct {
	ProviderCode string
	DatasetCode  string
	SeriesCode   string
	SeriesName   string
	Country      string
	Period       string
	Value        null.Float
}

// Observation is one row of the combined dataset: a filtered provider row
// tagged with its indicator.
type Observation struct {
	ProviderCode string    `json:"providerCode"`
	DatasetCode  string    `json:"datasetCode"`
	SeriesCode   string    `json:"seriesCode"`
	SeriesName   string    `json:"seriesName"`
	Country      string    `json:"country"`
	Period       string    `json:"period"`
	Value        float64   `json:"value"`
	Indicator    Indicator `json:"indicator"`
}

// CombinedDataset is the ordered concatenation of the three indicator
// batches. It is immutable once fetched; selections only derive views from it.
type CombinedDataset struct {
	Rows      []Observation `json:"rows"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// Countries returns the distinct country names present in the dataset, in
// first-appearance order.
func (d CombinedDataset) Countries() []string {
	return lo.Uniq(lo.Map(d.Rows, func(r Observation, _ int) string {
		return r.Country
	}))
}

// FilterCountries returns the rows whose country is in the selection,
// preserving dataset order. An empty selection yields zero rows.
func (d CombinedDataset) FilterCountries(selection []string) []Observation {
	selected := make(map[string]struct{}, len(selection))
	for _, c := range selection {
		selected[c] = struct{}{}
	}
	return lo.Filter(d.Rows, func(r Observation, _ int) bool {
		_, ok := selected[r.Country]
		return ok
	})
}
