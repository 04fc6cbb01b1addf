package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/meidash/backend/internal/app/appconfig"
	"github.com/meidash/backend/internal/model"
	"github.com/meidash/backend/internal/model/cache"
	"github.com/meidash/backend/internal/pkg/apperr"
	"github.com/meidash/backend/internal/repo"
)

// Series owns the fetch-filter-combine pipeline over the three indicator
// queries. The combined dataset is memoized process-wide; Invalidate is the
// explicit way to force a re-fetch.
type Series struct {
	DBnomicsRepo *repo.DBnomics

	conf    *appconfig.Config
	queries map[model.Indicator]repo.SeriesQuery
}

func NewSeries(dbnomicsRepo *repo.DBnomics, conf *appconfig.Config) *Series {
	query := func(mask string) repo.SeriesQuery {
		return repo.SeriesQuery{
			Provider: conf.DBnomicsProvider,
			Dataset:  conf.DBnomicsDataset,
			Mask:     mask,
			Limit:    conf.MaxSeries,
		}
	}
	return &Series{
		DBnomicsRepo: dbnomicsRepo,
		conf:         conf,
		queries: map[model.Indicator]repo.SeriesQuery{
			model.IndicatorCLI: query(conf.SeriesMaskCLI),
			model.IndicatorBCI: query(conf.SeriesMaskBCI),
			model.IndicatorCCI: query(conf.SeriesMaskCCI),
		},
	}
}

// FetchIndicator fetches one indicator batch and applies the two post-fetch
// filters: rows carrying the NA sentinel and rows preceding the period floor
// are dropped. Every surviving row is tagged with the indicator.
func (s *Series) FetchIndicator(ctx context.Context, indicator model.Indicator) ([]model.Observation, error) {
	q, ok := s.queries[indicator]
	if !ok {
		return nil, errors.Errorf("unknown indicator %s", indicator)
	}

	raw, err := s.DBnomicsRepo.FetchSeries(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s batch", indicator)
	}

	rows := make([]model.Observation, 0, len(raw))
	for _, r := range raw {
		if !r.Value.Valid {
			continue
		}
		if r.Period < s.conf.PeriodFloor {
			continue
		}
		rows = append(rows, model.Observation{
			ProviderCode: r.ProviderCode,
			DatasetCode:  r.DatasetCode,
			SeriesCode:   r.SeriesCode,
			SeriesName:   r.SeriesName,
			Country:      r.Country,
			Period:       r.Period,
			Value:        r.Value.Float64,
			Indicator:    indicator,
		})
	}
	return rows, nil
}

// Combined returns the memoized combined dataset, fetching and concatenating
// the three indicator batches on a cold cache. Concurrent cold callers are
// serialized so the upstream sees one fetch.
func (s *Series) Combined(ctx context.Context) (model.CombinedDataset, error) {
	return cache.CombinedDataset.MutexGetSet(func() (model.CombinedDataset, error) {
		return s.fetchCombined(ctx)
	}, s.conf.DatasetCacheTTL)
}

func (s *Series) fetchCombined(ctx context.Context) (model.CombinedDataset, error) {
	var rows []model.Observation
	for _, indicator := range model.Indicators {
		batch, err := s.FetchIndicator(ctx, indicator)
		if err != nil {
			// one bad batch fails the whole combine: a dataset silently
			// missing an indicator would be worse than an explicit error
			log.Error().Err(err).Str("indicator", string(indicator)).Msg("failed to fetch indicator batch")
			return model.CombinedDataset{}, apperr.ErrUpstream.
				Msg("failed to fetch %s series from %s", indicator, s.conf.DBnomicsProvider).
				WithExtras(apperr.Extras{"indicator": indicator})
		}
		rows = append(rows, batch...)
	}
	return model.CombinedDataset{
		Rows:      rows,
		FetchedAt: time.Now(),
	}, nil
}

// Countries returns the distinct country names of the combined dataset, in
// first-appearance order, for the selection control.
func (s *Series) Countries(ctx context.Context) ([]string, error) {
	dataset, err := s.Combined(ctx)
	if err != nil {
		return nil, err
	}
	return dataset.Countries(), nil
}

// Invalidate drops the memoized dataset so the next read re-fetches.
func (s *Series) Invalidate() {
	cache.CombinedDataset.Delete()
}
