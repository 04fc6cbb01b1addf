package repo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"gopkg.in/guregu/null.v3"

	"github.com/meidash/backend/internal/app/appconfig"
	"github.com/meidash/backend/internal/constant"
	"github.com/meidash/backend/internal/model"
)

var ErrCannotGetFromRemote = errors.New("cannot get from remote")

// SeriesQuery identifies one bounded series request against the DBnomics API.
type SeriesQuery struct {
	Provider string
	Dataset  string
	Mask     string
	Limit    int
}

// DBnomics is a client for the DBnomics v22 series API.
type DBnomics struct {
	base          string
	client        *http.Client
	retryAttempts uint
	retryDelay    time.Duration
}

func NewDBnomics(conf *appconfig.Config) *DBnomics {
	return &DBnomics{
		base: strings.TrimRight(conf.DBnomicsBaseURL, "/"),
		client: &http.Client{
			Timeout: conf.DBnomicsTimeout,
		},
		retryAttempts: conf.DBnomicsRetryAttempts,
		retryDelay:    conf.DBnomicsRetryDelay,
	}
}

// FetchSeries requests up to q.Limit series of the (provider, dataset, mask)
// triple, with observations, and flattens the payload into raw rows. Values
// published as the NA sentinel come back invalid; no period filtering happens
// at this layer.
func (r *DBnomics) FetchSeries(ctx context.Context, q SeriesQuery) ([]model.RawObservation, error) {
	url := fmt.Sprintf("%s/v22/series/%s/%s/%s?observations=1&limit=%d",
		r.base, q.Provider, q.Dataset, q.Mask, q.Limit)

	var body []byte
	err := retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return retry.Unrecoverable(err)
		}

		resp, err := r.client.Do(req)
		if err != nil {
			return errors.Wrap(err, "request failed")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errors.Wrapf(ErrCannotGetFromRemote, "unexpected status %d from %s", resp.StatusCode, url)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "failed to read response body")
		}
		return nil
	},
		retry.Attempts(r.retryAttempts),
		retry.Delay(r.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Str("url", url).Msg("retrying upstream fetch")
		}),
	)
	if err != nil {
		return nil, err
	}

	return parseSeriesPayload(body)
}

func parseSeriesPayload(body []byte) ([]model.RawObservation, error) {
	root := gjson.ParseBytes(body)

	docs := root.Get("series.docs")
	if !docs.IsArray() {
		if msg := root.Get("message"); msg.Exists() {
			return nil, errors.Wrap(ErrCannotGetFromRemote, msg.String())
		}
		return nil, errors.Wrap(ErrCannotGetFromRemote, "malformed payload: missing series.docs")
	}

	providerCode := root.Get("provider.code").String()
	datasetCode := root.Get("dataset.code").String()
	countryLabels := root.Get("dataset.dimensions_values_labels.LOCATION")

	var rows []model.RawObservation
	docs.ForEach(func(_, doc gjson.Result) bool {
		periods := doc.Get("period").Array()
		values := doc.Get("value").Array()

		location := doc.Get("dimensions.LOCATION").String()
		country := location
		if label := countryLabels.Get(location); label.Exists() {
			country = label.String()
		}

		n := len(periods)
		if len(values) < n {
			n = len(values)
		}
		for i := 0; i < n; i++ {
			value := null.Float{}
			if values[i].Type == gjson.Number {
				value = null.FloatFrom(values[i].Float())
			} else if values[i].String() != constant.NASentinel {
				log.Trace().Str("value", values[i].String()).Str("series", doc.Get("series_code").String()).
					Msg("non-numeric observation value other than the NA sentinel")
			}
			rows = append(rows, model.RawObservation{
				ProviderCode: providerCode,
				DatasetCode:  datasetCode,
				SeriesCode:   doc.Get("series_code").String(),
				SeriesName:   doc.Get("series_name").String(),
				Country:      country,
				Period:       periods[i].String(),
				Value:        value,
			})
		}
		return true
	})

	return rows, nil
}
