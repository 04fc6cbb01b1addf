package svr

import (
	"github.com/gofiber/fiber/v2"
)

// Web serves the rendered dashboard pages and chart images.
type Web struct {
	fiber.Router
}

// V1 serves the JSON API over the same pipeline.
type V1 struct {
	fiber.Router
}

func CreateEndpointGroups(app *fiber.App) (*Web, *V1) {
	web := app.Group("/")
	v1 := app.Group("/api/v1")

	return &Web{Router: web}, &V1{Router: v1}
}
