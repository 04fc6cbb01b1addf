package v1

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meidash/backend/internal/app/appconfig"
	"github.com/meidash/backend/internal/model"
	"github.com/meidash/backend/internal/model/cache"
	"github.com/meidash/backend/internal/repo"
	"github.com/meidash/backend/internal/server/httpserver"
	"github.com/meidash/backend/internal/server/svr"
	"github.com/meidash/backend/internal/service"
)

const upstreamPayloadTemplate = `{
	"provider": {"code": "OECD"},
	"dataset": {
		"code": "MEI_CLI",
		"dimensions_values_labels": {"LOCATION": {"USA": "United States", "DEU": "Germany"}}
	},
	"series": {"docs": [
		{
			"series_code": "%[1]s.USA.M",
			"dimensions": {"LOCATION": "USA"},
			"period": ["2020-01", "2020-02"],
			"value": [100.4, 100.1]
		},
		{
			"series_code": "%[1]s.DEU.M",
			"dimensions": {"LOCATION": "DEU"},
			"period": ["2020-01", "2020-02"],
			"value": [99.2, 99.6]
		}
	]}
}`

func newTestApp(t *testing.T, hits *int32) *fiber.App {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		for _, mask := range []string{"LOLITOAA", "BSCICP03", "CSCICP03"} {
			if strings.Contains(r.URL.Path, mask) {
				fmt.Fprintf(w, upstreamPayloadTemplate, mask)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(upstream.Close)

	conf := &appconfig.Config{
		ConfigSpec: appconfig.ConfigSpec{
			TrustedProxies:            []string{"127.0.0.1"},
			HTTPServerShutdownTimeout: time.Minute,
			DBnomicsBaseURL:           upstream.URL,
			DBnomicsProvider:          "OECD",
			DBnomicsDataset:           "MEI_CLI",
			DBnomicsTimeout:           5 * time.Second,
			DBnomicsRetryAttempts:     3,
			DBnomicsRetryDelay:        time.Millisecond,
			SeriesMaskCLI:             "LOLITOAA...M",
			SeriesMaskBCI:             "BSCICP03...M",
			SeriesMaskCCI:             "CSCICP03...M",
			MaxSeries:                 55,
			PeriodFloor:               "2020",
			DefaultCountry:            "United States",
			DatasetCacheTTL:           time.Hour,
			ChartWidth:                640,
			ChartHeight:               240,
		},
	}

	cache.Initialize()
	cache.Flush()

	app := httpserver.Create(conf)
	web, api := svr.CreateEndpointGroups(app)

	seriesService := service.NewSeries(repo.NewDBnomics(conf), conf)
	chartService := service.NewChart(conf)

	RegisterDashboard(web, seriesService, chartService, conf)
	RegisterDataset(api, seriesService)

	return app
}

func testRequest(t *testing.T, app *fiber.App, method, target string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	resp, err := app.Test(req, 30000)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestIndexDefaultsToConfiguredCountry(t *testing.T) {
	app := newTestApp(t, nil)

	resp, body := testRequest(t, app, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")

	assert.Contains(t, body, `<option value="United States" selected>`)
	assert.Contains(t, body, `<option value="Germany">`)

	// chart images must carry the resolved selection
	assert.Contains(t, body, "/charts/cli.svg?countries=United+States&amp;sel=1")
	assert.Contains(t, body, "/charts/bci.svg?")
	assert.Contains(t, body, "/charts/cci.svg?")
}

func TestIndexSelectionChangesFacets(t *testing.T) {
	app := newTestApp(t, nil)

	resp, body := testRequest(t, app, http.MethodGet, "/?sel=1&countries=Germany")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `<option value="Germany" selected>`)
	assert.Contains(t, body, `<option value="United States">`)
	assert.Contains(t, body, "countries=Germany")
}

func TestIndexExplicitEmptySelection(t *testing.T) {
	app := newTestApp(t, nil)

	resp, body := testRequest(t, app, http.MethodGet, "/?sel=1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "No data for the current selection")
	assert.NotContains(t, body, "/charts/cli.svg")
}

func TestChartSVG(t *testing.T) {
	app := newTestApp(t, nil)

	resp, body := testRequest(t, app, http.MethodGet, "/charts/bci.svg?sel=1&countries=Germany")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "image/svg+xml")
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, "Germany")
	assert.Contains(t, body, "Confidence Threshold (100)")
}

func TestChartSVGUnknownIndicator(t *testing.T) {
	app := newTestApp(t, nil)

	resp, body := testRequest(t, app, http.MethodGet, "/charts/gdp.svg")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "NOT_FOUND")
}

func TestChartSVGEmptySelectionRendersPlaceholder(t *testing.T) {
	app := newTestApp(t, nil)

	resp, body := testRequest(t, app, http.MethodGet, "/charts/cli.svg?sel=1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "no data for the current selection")
}

func TestGetCountries(t *testing.T) {
	app := newTestApp(t, nil)

	resp, body := testRequest(t, app, http.MethodGet, "/api/v1/countries")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var countries []string
	require.NoError(t, json.Unmarshal([]byte(body), &countries))
	assert.Equal(t, []string{"United States", "Germany"}, countries)
}

func TestGetIndicators(t *testing.T) {
	app := newTestApp(t, nil)

	resp, body := testRequest(t, app, http.MethodGet, "/api/v1/indicators")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var indicators []struct {
		Code      model.Indicator `json:"code"`
		Label     string          `json:"label"`
		Threshold *float64        `json:"threshold"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &indicators))
	require.Len(t, indicators, 3)

	assert.Equal(t, model.IndicatorCLI, indicators[0].Code)
	assert.Nil(t, indicators[0].Threshold)
	require.NotNil(t, indicators[1].Threshold)
	assert.Equal(t, 100.0, *indicators[1].Threshold)
	require.NotNil(t, indicators[2].Threshold)
	assert.Equal(t, 100.0, *indicators[2].Threshold)
}

func TestGetDatasetFilteredByCountry(t *testing.T) {
	app := newTestApp(t, nil)

	resp, body := testRequest(t, app, http.MethodGet, "/api/v1/dataset?countries=Germany")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Rows []model.Observation `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	require.NotEmpty(t, payload.Rows)
	for _, r := range payload.Rows {
		assert.Equal(t, "Germany", r.Country)
	}
}

func TestInvalidateCacheForcesRefetch(t *testing.T) {
	var hits int32
	app := newTestApp(t, &hits)

	resp, _ := testRequest(t, app, http.MethodGet, "/api/v1/countries")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = testRequest(t, app, http.MethodGet, "/api/v1/countries")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))

	resp, _ = testRequest(t, app, http.MethodDelete, "/api/v1/dataset/cache")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = testRequest(t, app, http.MethodGet, "/api/v1/countries")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(6), atomic.LoadInt32(&hits))
}
