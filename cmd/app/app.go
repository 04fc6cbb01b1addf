package app

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/meidash/backend/cmd/app/server"
	"github.com/meidash/backend/internal/pkg/bininfo"
)

func Run() {
	app := &cli.App{
		Name:        "meidash",
		Description: "Backend for the OECD Main Economic Indicators dashboard. Built with Go, fiber and go.uber.org/fx. Fetches CLI/BCI/CCI series from DBnomics.",
		Version:     bininfo.Version,
		Commands: []*cli.Command{
			server.Command(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("failed to run app")
	}
}
