package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/scythe504/rps-backend/internal/config"
	"github.com/scythe504/rps-backend/internal/database"
	"github.com/scythe504/rps-backend/internal/game"
	"github.com/scythe504/rps-backend/internal/logging"
	"github.com/scythe504/rps-backend/internal/server"
)

const releaseVersion = "1.0.0"

func main() {
	cfg := config.Default()
	if err := newCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rps-server",
		Short:         "Pairs two players into an online rock-paper-scissors room.",
		Args:          cobra.NoArgs,
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.BindEnv(cmd.Flags()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return logging.Setup(cfg.LogLevel, cfg.LogFormat)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cfg.RegisterFlags(cmd.Flags())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("rps-server v{{.Version}}\n")

	return cmd
}

// run serves until ctx is cancelled, then shuts down in order: stop accepting
// requests, close live connections, drain durable updates, close the store.
func run(ctx context.Context, cfg *config.Config) error {
	log.Info().Str("version", releaseVersion).Str("db_driver", cfg.DB.Driver).Msg("[Main] Starting rps-server")

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("open room directory: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("[Main] Closing room directory failed")
		}
	}()

	coord := game.NewCoordinator(game.NewMemoryRegistry(), db, game.Options{
		NextRoundDelay: cfg.NextRoundDelay,
	})
	srv := server.NewServer(cfg, db, coord)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("[Main] Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("[Main] Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are not tracked by http.Server, so
		// the coordinator closes them after new requests are refused.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("[Main] HTTP shutdown incomplete")
		}
		if err := coord.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("[Main] Coordinator shutdown incomplete")
		}
		log.Info().Msg("[Main] Shutdown complete")
		return nil
	})

	return g.Wait()
}
