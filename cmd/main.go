package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stitchadmin/internal/api"
	"stitchadmin/internal/clock"
	"stitchadmin/internal/config"
	"stitchadmin/internal/database"
	"stitchadmin/internal/estimator"
	"stitchadmin/internal/history"
	"stitchadmin/internal/monitoring"
	"stitchadmin/internal/registry"
	"stitchadmin/internal/scheduler"
	"stitchadmin/internal/throughput"
	"stitchadmin/internal/timetable"
)

var (
	port       = flag.Int("port", 8080, "API server port")
	configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	if err := database.InitDB(cfg.DatabaseDialect, cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDB()
	db := database.GetDB()
	database.Seed(db)

	// Initialize metrics collector
	metricsCollector := monitoring.NewMetricsCollector()
	monitor := monitoring.NewMonitor()

	// Assemble the scheduling core
	histStore := history.NewStore(db)
	model := throughput.NewModel(cfg.Scheduling)
	est := estimator.New(cfg.Scheduling, model, histStore)
	tt := timetable.New(db)

	hub := api.NewHub()
	sched := scheduler.New(
		cfg.Scheduling,
		registry.NewMachines(db),
		registry.NewOrders(db),
		registry.NewThreadStock(db),
		est,
		tt,
		histStore,
		clock.System{},
		metricsCollector,
		hub,
	)

	// Initialize API server
	apiServer := api.NewServer(sched, monitor, hub, cfg.JWTSecret)

	// Start metrics server
	if cfg.MetricsConfig.Enabled {
		go startMetricsServer(cfg.MetricsConfig.Port, cfg.MetricsConfig.Path, metricsCollector)
	}

	// Start API server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: apiServer.Router,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down servers...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}
	}()

	// Start server
	log.Printf("Starting API server on port %d", *port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("API server error: %v", err)
	}
}

func startMetricsServer(port int, path string, collector *monitoring.MetricsCollector) {
	metricsRouter := gin.Default()
	metricsRouter.GET(path, gin.WrapH(promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{})))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}

	log.Printf("Starting metrics server on port %d", port)
	if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Printf("Metrics server error: %v", err)
	}
}
