package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"evidence-rag/internal/api"
	"evidence-rag/internal/app"
	"evidence-rag/internal/config"
	"evidence-rag/internal/helper"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	helper.SetupLogger("info", "console")

	cmd := &cli.Command{
		Name:  "coldcase-server",
		Usage: "Cold Case Detective chat server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "config file path",
				Value: "./configs/config.yaml",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "env file path",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address (overrides server.addr)",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "vector store directory (overrides store.path)",
			},
		},
		Action: serve,
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	if err := config.LoadEnv(cmd.String("env")); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	helper.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	if addr := cmd.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if db := cmd.String("db"); db != "" {
		cfg.Store.Path = db
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(os.TempDir(), "coldcase_db")
	}

	// a missing credential is reported per request
	if err := cfg.ValidateStore(); err != nil {
		return err
	}
	if !cfg.HasCredential() {
		_, name := cfg.Credential()
		log.Warn().Str("env", name).Msg("Generation credential not configured, chat requests will fail")
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewHandler(a.RAG, cfg.Credential).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("store", cfg.Store.Path).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
