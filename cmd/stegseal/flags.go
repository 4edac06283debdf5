package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	stegseal "github.com/stegseal/stegseal-go"
	"github.com/stegseal/stegseal-go/internal/atomicfile"
	"github.com/stegseal/stegseal-go/internal/config"
	"github.com/stegseal/stegseal-go/keystore"
)

var (
	envFileFlag = &cli.StringFlag{
		Name:  "env-file",
		Value: ".env",
		Usage: "load STEGSEAL_* variables from this file if it exists",
	}
	suiteFlag = &cli.StringFlag{
		Name:  "suite",
		Usage: "cipher suite: nacl-sealedbox or hpke-x25519-chacha20poly1305 (overrides STEGSEAL_SUITE)",
	}
	keystoreFlag = &cli.StringFlag{
		Name:  "keystore",
		Usage: "key store backend: memory, file, postgres or vault (overrides STEGSEAL_KEYSTORE)",
	}
	keystoreDirFlag = &cli.StringFlag{
		Name:  "keystore-dir",
		Usage: "directory for the file key store (overrides STEGSEAL_KEYSTORE_DIR)",
	}
	logJSONFlag = &cli.BoolFlag{
		Name:  "log-json",
		Usage: "log in JSON format",
	}
	logDebugFlag = &cli.BoolFlag{
		Name:  "log-debug",
		Usage: "log debug messages",
	}
	logUIDFlag = &cli.BoolFlag{
		Name:  "log-uid",
		Usage: "generate a uuid and add to all log messages",
	}
	logServiceFlag = &cli.StringFlag{
		Name:  "log-service",
		Value: "stegseal",
		Usage: "add 'service' tag to logs",
	}
)

var globalFlags = []cli.Flag{
	envFileFlag,
	suiteFlag,
	keystoreFlag,
	keystoreDirFlag,
	logJSONFlag,
	logDebugFlag,
	logUIDFlag,
	logServiceFlag,
}

// setupLogger builds the process logger from the logging flags. Logs go to
// stderr so command output on stdout stays clean.
func setupLogger(cCtx *cli.Context) *slog.Logger {
	level := slog.LevelInfo
	if cCtx.Bool(logDebugFlag.Name) {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cCtx.Bool(logJSONFlag.Name) {
		handler = slog.NewJSONHandler(cCtx.App.ErrWriter, opts)
	} else {
		handler = slog.NewTextHandler(cCtx.App.ErrWriter, opts)
	}

	logger := slog.New(handler)
	if service := cCtx.String(logServiceFlag.Name); service != "" {
		logger = logger.With("service", service)
	}
	if cCtx.Bool(logUIDFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// loadConfig reads the environment and applies global flag overrides.
func loadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cCtx.String(envFileFlag.Name))
	if err != nil {
		return nil, err
	}

	if cCtx.IsSet(suiteFlag.Name) {
		cfg.Suite = cCtx.String(suiteFlag.Name)
	}
	if cCtx.IsSet(keystoreFlag.Name) {
		cfg.KeyStore = cCtx.String(keystoreFlag.Name)
	}
	if cCtx.IsSet(keystoreDirFlag.Name) {
		cfg.KeyStoreDir = cCtx.String(keystoreDirFlag.Name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the configured key store. The returned function releases
// its resources.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (keystore.Store, func(), error) {
	noop := func() {}

	var wrapper *keystore.Wrapper
	master, err := cfg.MasterKeyBytes()
	if err != nil {
		return nil, noop, fmt.Errorf("invalid master key: %w", err)
	}
	if master != nil {
		if wrapper, err = keystore.NewWrapper(master); err != nil {
			return nil, noop, err
		}
	}

	switch cfg.KeyStore {
	case config.KeyStoreMemory:
		log.Warn("Using in-memory key store, keys are lost on exit")
		return keystore.NewMemory(), noop, nil

	case config.KeyStoreFile:
		s, err := keystore.NewFile(cfg.KeyStoreDir, wrapper, log)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case config.KeyStorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		s := keystore.NewPostgres(pool, wrapper, log)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return s, pool.Close, nil

	case config.KeyStoreVault:
		client, err := keystore.NewVaultClient(cfg.VaultAddr, cfg.VaultToken)
		if err != nil {
			return nil, noop, err
		}
		return keystore.NewVault(client, cfg.VaultMount, cfg.VaultPrefix, wrapper, log), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown key store %q", cfg.KeyStore)
	}
}

func newPipeline(cfg *config.Config, log *slog.Logger, opts ...stegseal.Option) (*stegseal.Pipeline, error) {
	base := []stegseal.Option{
		stegseal.WithSuite(stegseal.Suite(cfg.Suite)),
		stegseal.WithWorkers(cfg.Workers),
		stegseal.WithLogger(log),
		stegseal.WithMaxImagePixels(cfg.MaxImagePixels),
	}
	return stegseal.New(append(base, opts...)...)
}

// readInput reads path, or stdin for "-".
func readInput(cCtx *cli.Context, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cCtx.App.Reader)
	}
	return os.ReadFile(path)
}

// writeOutput writes data to path atomically, or to stdout for "-".
func writeOutput(cCtx *cli.Context, path string, data []byte) error {
	if path == "-" {
		_, err := cCtx.App.Writer.Write(data)
		return err
	}
	return atomicfile.Write(path, data, 0o644)
}
