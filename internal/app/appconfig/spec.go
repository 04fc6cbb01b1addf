package appconfig

import (
	"time"

	"github.com/meidash/backend/internal/app/appcontext"
)

type ConfigSpec struct {
	// ServiceAddress is the listen address the dashboard server would listen on.
	ServiceAddress string `required:"true" split_words:"true" default:"localhost:9030"`

	// TrustedProxies is a list of trusted proxies that are trusted to report a real IP via the X-Forwarded-For header.
	TrustedProxies []string `required:"true" split_words:"true" default:"::1,127.0.0.1,10.0.0.0/8"`

	// DevMode to indicate development mode. When true, the program would spin up utilities for debugging and
	// provide a more contextual message when encountered a panic. See internal/server/httpserver/http.go for the
	// actual implementation details.
	DevMode bool `split_words:"true"`

	// LogJsonStdout is whether to log JSON logs (instead of pretty-print logs) to stdout for the ease of log collection.
	LogJsonStdout bool `split_words:"true" default:"false"`

	// HTTPServerShutdownTimeout is the timeout for the HTTP server to shut down gracefully.
	HTTPServerShutdownTimeout time.Duration `required:"true" split_words:"true" default:"60s"`

	// upstream data provider (DBnomics) connection instructions

	// DBnomicsBaseURL is the base URL of the DBnomics API. See https://api.db.nomics.world/v22/apidocs
	// for the API this backend consumes.
	DBnomicsBaseURL string `split_words:"true" default:"https://api.db.nomics.world"`

	// DBnomicsProvider is the statistical provider code the series are fetched from.
	DBnomicsProvider string `split_words:"true" default:"OECD"`

	// DBnomicsDataset is the dataset code within the provider holding the three indicator series.
	DBnomicsDataset string `split_words:"true" default:"MEI_CLI"`

	// DBnomicsTimeout bounds a single upstream HTTP request.
	DBnomicsTimeout time.Duration `split_words:"true" default:"10s"`

	// DBnomicsRetryAttempts is the total number of attempts for one upstream fetch, including the first.
	DBnomicsRetryAttempts uint `split_words:"true" default:"3"`

	// DBnomicsRetryDelay is the base delay between retry attempts; backoff grows from it.
	DBnomicsRetryDelay time.Duration `split_words:"true" default:"500ms"`

	// SeriesMaskCLI/BCI/CCI are the series filter masks for the three indicators within the dataset.
	SeriesMaskCLI string `split_words:"true" default:"LOLITOAA...M"`
	SeriesMaskBCI string `split_words:"true" default:"BSCICP03...M"`
	SeriesMaskCCI string `split_words:"true" default:"CSCICP03...M"`

	// MaxSeries caps the number of series fetched per indicator query. It only needs to be large enough
	// to cover the expected country count published for the dataset.
	MaxSeries int `split_words:"true" default:"55"`

	// PeriodFloor excludes observations whose period precedes it. Periods are ISO-like year-month strings,
	// so a bare year compares correctly against them.
	PeriodFloor string `split_words:"true" default:"2020"`

	// DefaultCountry is the country preselected on the dashboard when the visitor has made no selection yet.
	DefaultCountry string `split_words:"true" default:"United States"`

	// DatasetCacheTTL is how long the combined dataset is memoized before a re-fetch is allowed.
	DatasetCacheTTL time.Duration `split_words:"true" default:"6h"`

	// ChartWidth/ChartHeight are the pixel dimensions of a single rendered facet.
	ChartWidth  int `split_words:"true" default:"960"`
	ChartHeight int `split_words:"true" default:"320"`
}

type Config struct {
	// ConfigSpec is the configuration specification injected to the config.
	ConfigSpec

	// AppContext is the application context
	AppContext appcontext.Ctx
}
