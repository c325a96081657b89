package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/givepulse/givepulse/internal/api"
	"github.com/givepulse/givepulse/internal/app"
	"github.com/givepulse/givepulse/internal/app/automation"
	"github.com/givepulse/givepulse/internal/daemon"
	"github.com/givepulse/givepulse/internal/domain"
	"github.com/givepulse/givepulse/internal/infra/metrics"
	"github.com/givepulse/givepulse/internal/infra/store/memory"
	"github.com/givepulse/givepulse/internal/infra/store/sqlite"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address, overrides [api] host:port from config")
	serveCmd.Flags().Bool("verbose", false, "Enable debug logging")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook and API server",
	Long: `Start the GivePulse daemon: the payment webhook endpoint, the REST
API, the automation worker, and the Prometheus metrics endpoint.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	var (
		donations domain.DonationStore
		campaigns domain.CampaignStore
	)
	if cfg.Store.Path == "" || cfg.Store.Path == ":memory:" {
		store := memory.New()
		donations, campaigns = store, store
		log.Warn("using in-memory store, state is lost on restart")
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o700); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		db, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()
		donations, campaigns = db, db
		log.Info("store opened", "path", cfg.Store.Path)
	}

	queue := automation.NewQueue(automation.Config{
		DrainInterval: daemon.ParseDuration(cfg.Queue.DrainInterval, 3*time.Second),
		LogCapacity:   cfg.Queue.LogCapacity,
	}, automation.LogEffects{Log: log}, log)

	monitor := metrics.NewMonitor(metrics.Config{
		Capacity: cfg.Health.Capacity,
		Window:   cfg.Health.Window,
	})

	core := app.New(donations, campaigns, queue, monitor, log)

	srv := api.NewServer(core, log)
	if cfg.API.Metrics {
		srv.EnableMetrics()
	}

	addr := cfg.Addr()
	if flagAddr, _ := cmd.Flags().GetString("addr"); flagAddr != "" {
		addr = flagAddr
	}
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go queue.Run(ctx)
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "error", err)
		}
	}()

	log.Info("givepulse listening", "addr", addr, "version", Version)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}

	// Flush whatever the worker had not picked up yet.
	queue.Drain(context.Background())
	return nil
}
