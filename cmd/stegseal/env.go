package main

import (
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	stegseal "github.com/stegseal/stegseal-go"
	"github.com/stegseal/stegseal-go/internal/config"
	"github.com/stegseal/stegseal-go/keystore"
)

// cmdEnv is what every command needs.
type cmdEnv struct {
	cfg      *config.Config
	log      *slog.Logger
	store    keystore.Store
	pipeline *stegseal.Pipeline

	closeStore func()
}

func (e *cmdEnv) close() {
	if e.pipeline != nil {
		e.pipeline.Close()
	}
	if e.closeStore != nil {
		e.closeStore()
	}
}

func setup(cCtx *cli.Context, opts ...stegseal.Option) (*cmdEnv, error) {
	log := setupLogger(cCtx)

	cfg, err := loadConfig(cCtx)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(cCtx.Context, cfg, log)
	if err != nil {
		return nil, err
	}

	opts = append([]stegseal.Option{stegseal.WithObserver(logObserver(log))}, opts...)
	p, err := newPipeline(cfg, log, opts...)
	if err != nil {
		closeStore()
		return nil, err
	}

	return &cmdEnv{
		cfg:        cfg,
		log:        log,
		store:      store,
		pipeline:   p,
		closeStore: closeStore,
	}, nil
}

// logObserver logs each pipeline operation at debug level.
func logObserver(log *slog.Logger) stegseal.Observer {
	return func(op string, err error, elapsed time.Duration) {
		log.Debug("operation finished", "op", op, "kind", stegseal.ErrorKind(err), "elapsed", elapsed)
	}
}
