package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"raffler/api"
	"raffler/cmd"
	"raffler/config"
	"raffler/database"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			if err := handleMigrationCommand(); err != nil {
				log.Fatal("Migration error: ", err)
			}
			return
		case "token":
			if err := handleTokenCommand(); err != nil {
				log.Fatal("Token error: ", err)
			}
			return
		}
	}

	// Normal service operation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	// Run the application
	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error: ", err)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: raffler migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

// handleTokenCommand prints a signed bearer token for a user id
func handleTokenCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: raffler token <user-id>")
	}

	userID, err := uuid.Parse(os.Args[2])
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", os.Args[2], err)
	}

	cfg := config.Get()
	token, err := api.IssueToken(cfg.JWTSecret, userID, cfg.TokenTTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
