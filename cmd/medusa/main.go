// Command medusa runs the Medusa key-value server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/medusa-kv/medusa/internal/config"
	"github.com/medusa-kv/medusa/internal/logger"
	"github.com/medusa-kv/medusa/internal/server"
	"github.com/medusa-kv/medusa/internal/stats"
	"github.com/medusa-kv/medusa/internal/store"
	"github.com/medusa-kv/medusa/internal/version"
	"github.com/medusa-kv/medusa/internal/web"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("medusa", version.Version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "medusa:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting medusa", "version", version.Version, "addr", cfg.Addr())

	st := store.New()
	defer st.Close()
	counters := stats.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.Addr(), st, counters, log, server.Options{
		MaxConnections: cfg.MaxConnections,
		Timeout:        cfg.Timeout(),
	})

	if cfg.EnableMetrics {
		metrics := web.New(cfg.MetricsAddr, st, counters, log)
		go func() {
			if err := metrics.Start(ctx); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	return srv.Start(ctx)
}
