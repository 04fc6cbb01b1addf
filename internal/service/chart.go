package service

import (
	"fmt"
	"io"
	"time"

	"github.com/ahmetb/go-linq/v3"
	"github.com/samber/lo"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gopkg.in/guregu/null.v3"

	"github.com/meidash/backend/internal/app/appconfig"
	"github.com/meidash/backend/internal/model"
)

// thresholds maps each indicator to its horizontal reference line value.
// Placement is decided by looking up a facet's indicator tag, never its
// position, so reordered or missing indicators cannot misplace the line.
var thresholds = map[model.Indicator]float64{
	model.IndicatorBCI: 100,
	model.IndicatorCCI: 100,
}

// IndicatorThreshold returns the reference line value for an indicator, if it
// has one.
func IndicatorThreshold(indicator model.Indicator) null.Float {
	if v, ok := thresholds[indicator]; ok {
		return null.FloatFrom(v)
	}
	return null.Float{}
}

// palette mirrors the Set2 qualitative scheme; one color per country, stable
// across facets.
var palette = []drawing.Color{
	drawing.ColorFromHex("66c2a5"),
	drawing.ColorFromHex("fc8d62"),
	drawing.ColorFromHex("8da0cb"),
	drawing.ColorFromHex("e78ac3"),
	drawing.ColorFromHex("a6d854"),
	drawing.ColorFromHex("ffd92f"),
	drawing.ColorFromHex("e5c494"),
	drawing.ColorFromHex("b3b3b3"),
}

var thresholdColor = drawing.ColorFromHex("808080")

// Facet is one sub-plot of the dashboard: every selected country's line for a
// single indicator, plus an optional horizontal reference line.
type Facet struct {
	Indicator model.Indicator
	Countries []string
	Series    map[string][]model.Observation
	Colors    map[string]drawing.Color
	Threshold null.Float
}

// Dashboard is the chart specification derived from (dataset, selection). It
// is recomputed on every selection change; the dataset itself never mutates.
type Dashboard struct {
	Selection []string
	Countries []string
	Facets    []Facet
}

// Facet returns the facet for an indicator, if the filtered data contains it.
func (d Dashboard) Facet(indicator model.Indicator) (Facet, bool) {
	for _, f := range d.Facets {
		if f.Indicator == indicator {
			return f, true
		}
	}
	return Facet{}, false
}

type Chart struct {
	conf *appconfig.Config
}

func NewChart(conf *appconfig.Config) *Chart {
	return &Chart{
		conf: conf,
	}
}

// Build filters the dataset by the selection and projects the surviving rows
// into facets, one per indicator in first-appearance order. An empty
// selection yields a dashboard with zero facets, which still renders.
func (c *Chart) Build(dataset model.CombinedDataset, selection []string) Dashboard {
	rows := dataset.FilterCountries(selection)

	countries := lo.Uniq(lo.Map(rows, func(r model.Observation, _ int) string {
		return r.Country
	}))
	colors := make(map[string]drawing.Color, len(countries))
	for i, name := range countries {
		colors[name] = palette[i%len(palette)]
	}

	indicators := lo.Uniq(lo.Map(rows, func(r model.Observation, _ int) model.Indicator {
		return r.Indicator
	}))

	facets := make([]Facet, 0, len(indicators))
	for _, indicator := range indicators {
		indicator := indicator
		facetRows := lo.Filter(rows, func(r model.Observation, _ int) bool {
			return r.Indicator == indicator
		})

		seriesByCountry := make(map[string][]model.Observation, len(countries))
		linq.From(facetRows).
			GroupByT(
				func(r model.Observation) string { return r.Country },
				func(r model.Observation) model.Observation { return r }).
			ToMapByT(&seriesByCountry,
				func(g linq.Group) string { return g.Key.(string) },
				func(g linq.Group) []model.Observation {
					rows := make([]model.Observation, 0, len(g.Group))
					for _, r := range g.Group {
						rows = append(rows, r.(model.Observation))
					}
					return rows
				})

		facets = append(facets, Facet{
			Indicator: indicator,
			Countries: lo.Uniq(lo.Map(facetRows, func(r model.Observation, _ int) string {
				return r.Country
			})),
			Series:    seriesByCountry,
			Colors:    colors,
			Threshold: IndicatorThreshold(indicator),
		})
	}

	return Dashboard{
		Selection: selection,
		Countries: countries,
		Facets:    facets,
	}
}

// RenderSVG renders one facet as an SVG line chart: one colored series per
// country, markers on lines, gridded axes, thin legend, and the dashed
// reference line when the facet's indicator carries one. A facet without rows
// renders a placeholder instead of erroring.
func (c *Chart) RenderSVG(w io.Writer, facet Facet) error {
	series := make([]chart.Series, 0, len(facet.Countries)+1)
	var minX, maxX time.Time

	for _, country := range facet.Countries {
		obs := facet.Series[country]
		xs := make([]time.Time, 0, len(obs))
		ys := make([]float64, 0, len(obs))
		for _, o := range obs {
			ts, err := parsePeriod(o.Period)
			if err != nil {
				continue
			}
			xs = append(xs, ts)
			ys = append(ys, o.Value)
			if minX.IsZero() || ts.Before(minX) {
				minX = ts
			}
			if ts.After(maxX) {
				maxX = ts
			}
		}
		if len(xs) == 0 {
			continue
		}
		// a singleton point has no x-range; pad it one period out so the
		// axis stays valid
		if len(xs) == 1 {
			xs = append(xs, xs[0].AddDate(0, 1, 0))
			ys = append(ys, ys[0])
			if xs[1].After(maxX) {
				maxX = xs[1]
			}
		}
		col := facet.Colors[country]
		series = append(series, chart.TimeSeries{
			Name:    country,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: col,
				StrokeWidth: 2.5,
				DotColor:    col,
				DotWidth:    2,
			},
		})
	}

	if len(series) == 0 {
		_, err := io.WriteString(w, emptyFacetSVG(c.conf.ChartWidth, c.conf.ChartHeight, facet.Indicator))
		return err
	}

	if facet.Threshold.Valid {
		if !maxX.After(minX) {
			maxX = minX.AddDate(0, 1, 0)
		}
		v := facet.Threshold.Float64
		series = append(series, chart.TimeSeries{
			Name:    fmt.Sprintf("Confidence Threshold (%g)", v),
			XValues: []time.Time{minX, maxX},
			YValues: []float64{v, v},
			Style: chart.Style{
				StrokeColor:     thresholdColor,
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{5.0, 5.0},
			},
		})
	}

	graph := chart.Chart{
		Title:      facet.Indicator.Label(),
		Width:      c.conf.ChartWidth,
		Height:     c.conf.ChartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 36, Left: 16, Right: 16, Bottom: 24}},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01"),
			GridMajorStyle: gridStyle(),
			GridMinorStyle: gridStyle(),
		},
		YAxis: chart.YAxis{
			Name:           "Index Value",
			GridMajorStyle: gridStyle(),
			GridMinorStyle: gridStyle(),
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.LegendThin(&graph)}

	return graph.Render(chart.SVG, w)
}

func gridStyle() chart.Style {
	return chart.Style{
		StrokeColor: drawing.ColorFromHex("d3d3d3"),
		StrokeWidth: 1.0,
	}
}

// parsePeriod reads an ISO-like period string; monthly periods dominate the
// dataset but bare years occur in other DBnomics frequencies.
func parsePeriod(period string) (time.Time, error) {
	if t, err := time.Parse("2006-01", period); err == nil {
		return t, nil
	}
	return time.Parse("2006", period)
}

func emptyFacetSVG(width, height int, indicator model.Indicator) string {
	return fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
			`<rect width="100%%" height="100%%" fill="#ffffff"/>`+
			`<text x="50%%" y="50%%" text-anchor="middle" fill="#666666" font-size="14">%s: no data for the current selection</text>`+
			`</svg>`,
		width, height, width, height, indicator.Label())
}
