package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"raffler/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Pinger checks a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the domain services the HTTP layer exposes
type Services struct {
	Users   service.UserService
	Raffles service.RaffleService
	Tickets service.TicketService
	Draws   service.DrawService
}

// Server is the HTTP front of the raffle service
type Server struct {
	engine *gin.Engine
	http   *http.Server
}

// NewServer builds the router. db may be nil, in which case /healthz skips the ping.
func NewServer(addr, jwtSecret string, services Services, db Pinger, recorder HTTPRecorder) *Server {
	engine := NewRouter(jwtSecret, services, db, recorder)

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter registers every route on a fresh gin engine
func NewRouter(jwtSecret string, services Services, db Pinger, recorder HTTPRecorder) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(recorder))

	users := NewUserHandler(services.Users, services.Tickets)
	raffles := NewRaffleHandler(services.Raffles, services.Draws)
	tickets := NewTicketHandler(services.Tickets)

	engine.GET("/healthz", healthHandler(db))

	public := engine.Group("/api")
	{
		public.POST("/users", users.Create)
		public.GET("/users/:id", users.Get)
		public.GET("/users/:id/tickets", users.ListTickets)

		public.GET("/raffles", raffles.List)
		public.GET("/raffles/:id", raffles.Get)
		public.GET("/raffles/:id/history", raffles.History)

		public.GET("/tickets/:id", tickets.Get)
	}

	protected := engine.Group("/api")
	protected.Use(JWTAuth(jwtSecret))
	{
		protected.POST("/raffles", raffles.Create)
		protected.PATCH("/raffles/:id/status", raffles.SetStatus)
		protected.PATCH("/raffles/:id/draw-settings", raffles.UpdateDrawSettings)
		protected.PATCH("/raffles/:id/winning-numbers", raffles.SetWinningNumbers)
		protected.POST("/raffles/:id/recurrent", raffles.CreateRecurrent)

		protected.POST("/tickets/buy", tickets.Buy)
		protected.PATCH("/tickets/:id/status", tickets.UpdateStatus)
	}

	return engine
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	log.WithField("addr", s.http.Addr).Info("HTTP server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}

func healthHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := db.Ping(ctx); err != nil {
				log.WithError(err).Warn("Health check database ping failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
	}
}
