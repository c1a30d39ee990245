package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jgoulah/dayboard/internal/publisher"
	"github.com/jgoulah/dayboard/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API and ingestion triggers",
	Long: `Starts the HTTP server. Ingestion jobs are triggered by an external scheduler
calling /jobs/{market,weather,biometric}; the dashboard and journal endpoints live
under /api and expect the X-User-ID header from the identity proxy.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, then :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := server.Options{
		Config:   cfg,
		Store:    db,
		Registry: reg,
		Log:      log,
	}
	if cfg.MQTT.Enabled || cfg.HomeAssistant.Enabled {
		pub, err := publisher.New(cfg.MQTT, cfg.HomeAssistant)
		if err != nil {
			return fmt.Errorf("creating publisher: %w", err)
		}
		defer pub.Close()
		opts.Publisher = pub
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.GetServerAddr()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.New(opts).Run(ctx, addr)
}
