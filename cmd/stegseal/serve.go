package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	stegseal "github.com/stegseal/stegseal-go"
	"github.com/stegseal/stegseal-go/internal/httpapi"
	"github.com/stegseal/stegseal-go/internal/metrics"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve the HTTP API",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "listen-addr", Usage: "address to listen on for API (overrides STEGSEAL_LISTEN_ADDR)"},
		&cli.StringFlag{Name: "metrics-addr", Usage: "address to listen on for Prometheus metrics (overrides STEGSEAL_METRICS_ADDR)"},
		&cli.Int64Flag{Name: "drain-seconds", Value: 45, Usage: "seconds to wait in drain HTTP request"},
	},
	Action: func(cCtx *cli.Context) error {
		reg := metrics.NewRegistry()
		m, err := metrics.New(reg)
		if err != nil {
			return err
		}

		env, err := setup(cCtx, stegseal.WithObserver(func(op string, err error, elapsed time.Duration) {
			m.Observe(op, stegseal.ErrorKind(err), elapsed)
		}))
		if err != nil {
			return err
		}
		defer env.close()

		listenAddr := env.cfg.ListenAddr
		if cCtx.IsSet("listen-addr") {
			listenAddr = cCtx.String("listen-addr")
		}
		metricsAddr := env.cfg.MetricsAddr
		if cCtx.IsSet("metrics-addr") {
			metricsAddr = cCtx.String("metrics-addr")
		}

		cfg := &httpapi.ServerConfig{
			ListenAddr:               listenAddr,
			MetricsAddr:              metricsAddr,
			Log:                      env.log,
			Metrics:                  m,
			RateLimit:                env.cfg.RateLimit,
			RateBurst:                env.cfg.RateBurst,
			DrainDuration:            time.Duration(cCtx.Int64("drain-seconds")) * time.Second,
			GracefulShutdownDuration: 30 * time.Second,
			ReadTimeout:              60 * time.Second,
			WriteTimeout:             60 * time.Second,
		}
		if metricsAddr != "" {
			cfg.MetricsServer = metrics.NewServer(metricsAddr, reg)
		}

		handler := httpapi.NewHandler(httpapi.HandlerConfig{
			Pipeline:       env.pipeline,
			Store:          env.store,
			Log:            env.log,
			MaxUploadBytes: env.cfg.MaxUploadBytes,
		})

		server := httpapi.New(cfg, handler)
		server.RunInBackground()

		exit := make(chan os.Signal, 1)
		signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

		env.log.Info("Server is running, press Ctrl+C to stop", "suite", env.pipeline.Suite(), "keystore", env.cfg.KeyStore)
		<-exit
		env.log.Info("Shutdown signal received")

		server.Shutdown()
		env.log.Info("Server shutdown complete")
		return nil
	},
}
