package cmd

import (
	"context"
	"fmt"
	"time"

	"raffler/api"
	"raffler/application"
	"raffler/config"
	"raffler/database"
	"raffler/events"
	"raffler/infrastructure"
	"raffler/infrastructure/observability"
	"raffler/repository"
	"raffler/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	// Load configuration
	cfg := config.Get()
	configureLogging(cfg)

	log.Println("Starting raffler...")

	// Initialize metrics
	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		log.Printf("Failed to initialize metrics, continuing without: %v", err)
	}
	metrics := observability.GetMetrics()

	// Initialize database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(ctx, database.ConstructDatabaseURL(cfg.DatabaseURL, cfg.DatabaseName))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Println("Database connection established successfully")

	// Initialize event bus
	eventBus := events.NewBus()

	// Forward committed domain events to NATS
	var natsClient *infrastructure.NATSClient
	if cfg.NATSEnabled {
		log.Println("Connecting to NATS...")
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}

		mapper := infrastructure.NewEventSubjectMapper()
		if err := natsClient.EnsureStream(infrastructure.DomainEventStream, mapper.GetAllSubjects()); err != nil {
			return fmt.Errorf("failed to ensure NATS stream: %w", err)
		}

		infrastructure.NewNATSEventPublisher(natsClient, mapper, metrics).Attach(eventBus)
		log.Println("NATS event forwarding enabled")
	}

	// Initialize unit of work factory and services
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	userService := service.NewUserService(uowFactory)
	raffleService := service.NewRaffleService(uowFactory, metrics, cfg.LockTimeout)
	ticketService := service.NewTicketService(uowFactory, metrics, cfg.LockTimeout, cfg.PurchaseTimeout)
	drawService := service.NewDrawService(uowFactory, service.OwnerDrawAuthorizer{}, metrics, cfg.LockTimeout)
	log.Println("Services initialized successfully")

	// Start the draw worker
	stopWorker := func() {}
	if cfg.DrawWorkerEnabled {
		stopWorker = application.NewDrawWorker(drawService, cfg.DrawWorkerInterval).Start(ctx)
	}

	// Start the HTTP server
	server := api.NewServer(cfg.HTTPAddr, cfg.JWTSecret, api.Services{
		Users:   userService,
		Raffles: raffleService,
		Tickets: ticketService,
		Draws:   drawService,
	}, db, metrics)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	log.Printf("Raffler is running in %s mode...", cfg.Environment)

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("HTTP server stopped")
		}
	}

	// Cleanup resources
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopWorker()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	if natsClient != nil {
		if err := natsClient.Close(); err != nil {
			log.Printf("Error closing NATS connection: %v", err)
		}
	}

	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.Printf("Error shutting down metrics: %v", err)
	}

	log.Println("Shutdown completed")
	return nil
}

func configureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
