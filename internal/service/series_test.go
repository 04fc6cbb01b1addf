package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meidash/backend/internal/app/appconfig"
	"github.com/meidash/backend/internal/model"
	"github.com/meidash/backend/internal/model/cache"
	"github.com/meidash/backend/internal/pkg/apperr"
	"github.com/meidash/backend/internal/repo"
)

const cliPayload = `{
	"provider": {"code": "OECD"},
	"dataset": {
		"code": "MEI_CLI",
		"dimensions_values_labels": {"LOCATION": {"USA": "United States", "DEU": "Germany"}}
	},
	"series": {"docs": [
		{
			"series_code": "LOLITOAA.USA.M",
			"series_name": "Amplitude adjusted (CLI) - United States - Monthly",
			"dimensions": {"LOCATION": "USA"},
			"period": ["2019-12", "2020-01", "2020-02"],
			"value": [99.0, 99.5, "NA"]
		},
		{
			"series_code": "LOLITOAA.DEU.M",
			"series_name": "Amplitude adjusted (CLI) - Germany - Monthly",
			"dimensions": {"LOCATION": "DEU"},
			"period": ["2020-01"],
			"value": [101.2]
		}
	]}
}`

const bciPayload = `{
	"provider": {"code": "OECD"},
	"dataset": {
		"code": "MEI_CLI",
		"dimensions_values_labels": {"LOCATION": {"USA": "United States", "DEU": "Germany"}}
	},
	"series": {"docs": [
		{
			"series_code": "BSCICP03.USA.M",
			"dimensions": {"LOCATION": "USA"},
			"period": ["2020-01"],
			"value": [100.4]
		},
		{
			"series_code": "BSCICP03.DEU.M",
			"dimensions": {"LOCATION": "DEU"},
			"period": ["2020-01"],
			"value": [99.2]
		}
	]}
}`

const cciPayload = `{
	"provider": {"code": "OECD"},
	"dataset": {
		"code": "MEI_CLI",
		"dimensions_values_labels": {"LOCATION": {"USA": "United States"}}
	},
	"series": {"docs": [
		{
			"series_code": "CSCICP03.USA.M",
			"dimensions": {"LOCATION": "USA"},
			"period": ["2020-01"],
			"value": [98.7]
		}
	]}
}`

func newTestConfig(baseURL string) *appconfig.Config {
	return &appconfig.Config{
		ConfigSpec: appconfig.ConfigSpec{
			DBnomicsBaseURL:       baseURL,
			DBnomicsProvider:      "OECD",
			DBnomicsDataset:       "MEI_CLI",
			DBnomicsTimeout:       5 * time.Second,
			DBnomicsRetryAttempts: 3,
			DBnomicsRetryDelay:    time.Millisecond,
			SeriesMaskCLI:         "LOLITOAA...M",
			SeriesMaskBCI:         "BSCICP03...M",
			SeriesMaskCCI:         "CSCICP03...M",
			MaxSeries:             55,
			PeriodFloor:           "2020",
			DefaultCountry:        "United States",
			DatasetCacheTTL:       time.Hour,
			ChartWidth:            640,
			ChartHeight:           240,
		},
	}
}

// newUpstream serves the canned payload matching the mask in the request
// path and counts hits.
func newUpstream(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		switch {
		case strings.Contains(r.URL.Path, "LOLITOAA"):
			fmt.Fprint(w, cliPayload)
		case strings.Contains(r.URL.Path, "BSCICP03"):
			fmt.Fprint(w, bciPayload)
		case strings.Contains(r.URL.Path, "CSCICP03"):
			fmt.Fprint(w, cciPayload)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestSeries(baseURL string) *Series {
	cache.Initialize()
	cache.Flush()
	conf := newTestConfig(baseURL)
	return NewSeries(repo.NewDBnomics(conf), conf)
}

func TestFetchIndicatorFilters(t *testing.T) {
	ts := newUpstream(t, nil)
	defer ts.Close()

	rows, err := newTestSeries(ts.URL).FetchIndicator(context.Background(), model.IndicatorCLI)
	require.NoError(t, err)

	// the NA sentinel row and the pre-floor 2019-12 row are gone
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, model.IndicatorCLI, r.Indicator)
		assert.GreaterOrEqual(t, r.Period, "2020")
	}
	assert.Equal(t, "United States", rows[0].Country)
	assert.Equal(t, 99.5, rows[0].Value)
	assert.Equal(t, "Germany", rows[1].Country)
}

func TestCombinedConcatenatesInFixedOrder(t *testing.T) {
	ts := newUpstream(t, nil)
	defer ts.Close()

	dataset, err := newTestSeries(ts.URL).Combined(context.Background())
	require.NoError(t, err)

	require.Len(t, dataset.Rows, 5)
	gotOrder := make([]model.Indicator, 0, len(dataset.Rows))
	for _, r := range dataset.Rows {
		gotOrder = append(gotOrder, r.Indicator)
	}
	assert.Equal(t, []model.Indicator{
		model.IndicatorCLI, model.IndicatorCLI,
		model.IndicatorBCI, model.IndicatorBCI,
		model.IndicatorCCI,
	}, gotOrder)
	assert.False(t, dataset.FetchedAt.IsZero())
}

func TestCombinedMemoizesUntilInvalidated(t *testing.T) {
	var hits int32
	ts := newUpstream(t, &hits)
	defer ts.Close()

	s := newTestSeries(ts.URL)

	_, err := s.Combined(context.Background())
	require.NoError(t, err)
	_, err = s.Combined(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits), "second read must come from the memo")

	s.Invalidate()

	_, err = s.Combined(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(6), atomic.LoadInt32(&hits), "invalidation must force a re-fetch")
}

func TestCombinedFailsWholeWhenOneBatchFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "BSCICP03") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, cliPayload)
	}))
	defer ts.Close()

	_, err := newTestSeries(ts.URL).Combined(context.Background())
	require.Error(t, err)

	e, ok := err.(*apperr.Error)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeUpstreamError, e.ErrorCode)
	assert.Contains(t, e.Message, "BCI")

	// a failed combine must not poison the memo
	_, err = cache.CombinedDataset.Get()
	assert.Error(t, err)
}

func TestCountriesFirstAppearanceOrder(t *testing.T) {
	ts := newUpstream(t, nil)
	defer ts.Close()

	countries, err := newTestSeries(ts.URL).Countries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"United States", "Germany"}, countries)
}
