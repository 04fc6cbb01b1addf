package v1

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/meidash/backend/internal/app/appconfig"
	"github.com/meidash/backend/internal/model"
	"github.com/meidash/backend/internal/pkg/apperr"
	"github.com/meidash/backend/internal/pkg/rekuest"
	"github.com/meidash/backend/internal/server/svr"
	"github.com/meidash/backend/internal/service"
)

type DashboardController struct {
	SeriesService *service.Series
	ChartService  *service.Chart

	conf *appconfig.Config
}

func RegisterDashboard(web *svr.Web, seriesService *service.Series, chartService *service.Chart, conf *appconfig.Config) {
	c := &DashboardController{
		SeriesService: seriesService,
		ChartService:  chartService,
		conf:          conf,
	}

	web.Get("/", c.Index)
	web.Get("/charts/:indicator.svg", c.ChartSVG)
}

// selectionQuery carries the country multi-select state. The hidden sel flag
// distinguishes a deliberately emptied selection from a fresh landing with no
// query at all.
type selectionQuery struct {
	Countries []string `query:"countries" validate:"max=64,dive,max=128"`
	Sel       bool     `query:"sel"`
}

type countryOption struct {
	Name     string
	Selected bool
}

type facetView struct {
	// Src carries a pre-encoded query string, so it bypasses the template
	// URL escaper as template.URL
	Src   template.URL
	Label string
}

func (c *DashboardController) selection(ctx *fiber.Ctx) ([]string, error) {
	var q selectionQuery
	if err := rekuest.ValidQuery(ctx, &q); err != nil {
		return nil, err
	}
	if len(q.Countries) == 0 && !q.Sel {
		return []string{c.conf.DefaultCountry}, nil
	}
	return q.Countries, nil
}

func (c *DashboardController) Index(ctx *fiber.Ctx) error {
	selection, err := c.selection(ctx)
	if err != nil {
		return err
	}

	dataset, err := c.SeriesService.Combined(ctx.UserContext())
	if err != nil {
		return err
	}

	dashboard := c.ChartService.Build(dataset, selection)

	selected := make(map[string]struct{}, len(selection))
	for _, name := range selection {
		selected[name] = struct{}{}
	}
	options := make([]countryOption, 0, len(dataset.Countries()))
	for _, name := range dataset.Countries() {
		_, ok := selected[name]
		options = append(options, countryOption{Name: name, Selected: ok})
	}

	// chart image URLs must carry the same selection the page was built from
	query := url.Values{"sel": []string{"1"}}
	for _, name := range selection {
		query.Add("countries", name)
	}

	facets := make([]facetView, 0, len(dashboard.Facets))
	for _, f := range dashboard.Facets {
		facets = append(facets, facetView{
			Src:   template.URL(fmt.Sprintf("/charts/%s.svg?%s", strings.ToLower(string(f.Indicator)), query.Encode())),
			Label: f.Indicator.Label(),
		})
	}

	return ctx.Render("index", fiber.Map{
		"Countries": options,
		"Facets":    facets,
	})
}

func (c *DashboardController) ChartSVG(ctx *fiber.Ctx) error {
	raw := ctx.Params("indicator")
	indicator := model.Indicator(strings.ToUpper(raw))
	if !indicator.Valid() {
		return apperr.ErrNotFound.Msg("unknown indicator: %s", raw)
	}

	selection, err := c.selection(ctx)
	if err != nil {
		return err
	}

	dataset, err := c.SeriesService.Combined(ctx.UserContext())
	if err != nil {
		return err
	}

	facet, ok := c.ChartService.Build(dataset, selection).Facet(indicator)
	if !ok {
		// no rows survived the filter; render the placeholder facet
		facet = service.Facet{
			Indicator: indicator,
			Threshold: service.IndicatorThreshold(indicator),
		}
	}

	var buf bytes.Buffer
	if err := c.ChartService.RenderSVG(&buf, facet); err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "image/svg+xml")
	return ctx.Send(buf.Bytes())
}
