package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/sampler/internal/api"
	"github.com/samcharles93/sampler/internal/inference"
	"github.com/samcharles93/sampler/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve samples over HTTP (/v1/completions, /v1/models)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := prepare(ctx, c)
			if err != nil {
				return err
			}
			if fileConfig.ServerAddress != "" && !c.IsSet("addr") {
				addr = fileConfig.ServerAddress
			}
			log := logger.FromContext(ctx)

			defaults := samplingConfig(c)
			// Requests choose their own seed; an unseeded request uses the clock.
			defaults.Seed = nil
			loader := inference.NewLoader(defaults.ModelsDir, backend, log)
			server := api.NewServer(loader, defaults, log)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			e.Use(middleware.BodyLimit(api.MaxRequestBytes))
			server.Register(e)

			log.Info("starting server",
				"address", addr,
				"models_dir", defaults.ModelsDir,
				"default_model", defaults.ModelName,
				"backend", backend,
			)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
