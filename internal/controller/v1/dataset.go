package v1

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/meidash/backend/internal/model"
	"github.com/meidash/backend/internal/pkg/rekuest"
	"github.com/meidash/backend/internal/server/svr"
	"github.com/meidash/backend/internal/service"
)

type DatasetController struct {
	SeriesService *service.Series
}

func RegisterDataset(v1 *svr.V1, seriesService *service.Series) {
	c := &DatasetController{
		SeriesService: seriesService,
	}

	v1.Get("/dataset", c.GetDataset)
	v1.Get("/countries", c.GetCountries)
	v1.Get("/indicators", c.GetIndicators)
	v1.Delete("/dataset/cache", c.InvalidateCache)
}

// GetDataset returns the combined dataset, optionally filtered by the same
// countries query the dashboard page accepts.
func (c *DatasetController) GetDataset(ctx *fiber.Ctx) error {
	var q selectionQuery
	if err := rekuest.ValidQuery(ctx, &q); err != nil {
		return err
	}

	dataset, err := c.SeriesService.Combined(ctx.UserContext())
	if err != nil {
		return err
	}

	rows := dataset.Rows
	if len(q.Countries) > 0 {
		rows = dataset.FilterCountries(q.Countries)
	}

	return ctx.JSON(fiber.Map{
		"rows":      rows,
		"fetchedAt": dataset.FetchedAt,
	})
}

func (c *DatasetController) GetCountries(ctx *fiber.Ctx) error {
	countries, err := c.SeriesService.Countries(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(countries)
}

func (c *DatasetController) GetIndicators(ctx *fiber.Ctx) error {
	indicators := make([]fiber.Map, 0, len(model.Indicators))
	for _, indicator := range model.Indicators {
		entry := fiber.Map{
			"code":  indicator,
			"label": indicator.Label(),
		}
		if threshold := service.IndicatorThreshold(indicator); threshold.Valid {
			entry["threshold"] = threshold.Float64
		}
		indicators = append(indicators, entry)
	}
	return ctx.JSON(indicators)
}

// InvalidateCache drops the memoized dataset; the next read re-fetches from
// the upstream provider.
func (c *DatasetController) InvalidateCache(ctx *fiber.Ctx) error {
	c.SeriesService.Invalidate()
	log.Info().
		Str("evt.name", "dataset.cache.invalidated").
		Msg("combined dataset cache invalidated")
	return ctx.SendStatus(fiber.StatusNoContent)
}
