package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"larder/internal/api"
	"larder/internal/config"
	"larder/internal/database"
	"larder/internal/engine"
	"larder/internal/ledger"
	"larder/internal/menu"
	"larder/internal/monitoring"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	// Optional .env for local development; environment always wins over file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Metrics.Port = *metricsPort
	}

	log := newLogger(cfg.LogLevel)

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	metrics := monitoring.NewCollector()
	stock := ledger.NewStore(db, log)
	menuStore := menu.NewStore(db, stock, cfg.MenuCache.Size, cfg.MenuCache.TTL.Std(), log)
	eng := engine.New(stock, menuStore, metrics, log)
	apiServer := api.NewServer(stock, menuStore, eng, metrics, log)

	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg, metrics, log)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: apiServer.Router(),
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	log.Info().Int("port", cfg.Server.Port).Str("driver", cfg.Database.Driver).Msg("starting API server")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("API server error")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

func startMetricsServer(cfg *config.Config, metrics *monitoring.Collector, log zerolog.Logger) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: router,
	}

	log.Info().Int("port", cfg.Metrics.Port).Str("path", cfg.Metrics.Path).Msg("starting metrics server")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server error")
	}
}
