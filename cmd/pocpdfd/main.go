// Command pocpdfd serves the document pipeline over HTTP.
//
// Configuration comes from the environment (and a .env file when
// present); command line flags override it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/AdielsonMedeiros/POC-PDF/internal/app"
	"github.com/AdielsonMedeiros/POC-PDF/internal/common"
	"github.com/AdielsonMedeiros/POC-PDF/internal/server"
)

func main() {
	cfg := loadConfig()

	level := slog.LevelInfo
	if viper.GetString("loglevel") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	srv := server.NewServer(a.Processor, a.Store(), a.Export, cfg.Server, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	fmt.Println("stopped.")
}

// loadConfig layers flags over environment configuration.
func loadConfig() *common.Config {
	cfg := common.LoadConfig()

	viper.SetEnvPrefix("POCPDF")
	viper.AutomaticEnv()
	viper.SetDefault("addr", cfg.Server.Addr)
	viper.SetDefault("db", cfg.Database.DSN)
	viper.SetDefault("similarity-threshold", cfg.Cache.SimilarityThreshold)
	viper.SetDefault("loglevel", "info")

	pflag.String("addr", cfg.Server.Addr, "HTTP listen address")
	pflag.String("db", cfg.Database.DSN, "template store DSN (postgres:// URL or sqlite file path)")
	pflag.Float64("similarity-threshold", cfg.Cache.SimilarityThreshold, "minimum similarity for the embedding cache tier")
	pflag.String("loglevel", "info", "log level (info, debug)")
	pflag.Parse()

	for _, name := range []string{"addr", "db", "similarity-threshold", "loglevel"} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}

	cfg.Server.Addr = viper.GetString("addr")
	cfg.Database.DSN = viper.GetString("db")
	cfg.Cache.SimilarityThreshold = viper.GetFloat64("similarity-threshold")
	return cfg
}
