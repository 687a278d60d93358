// Command server runs the GoCast signaling and relay service.
package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Tyrowin/gocast/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	hub := server.NewHub()
	go hub.Run()
	go hub.RunLivenessMonitor()

	mux := server.SetupRoutes(hub)
	httpServer := server.CreateServer(config.Port, mux)

	go func() {
		if err := server.StartServer(httpServer); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Termination signal received, shutting down...")

	// Stop accepting new connections first, then close the hub so in-flight
	// broadcasts finish before the process exits.
	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown did not complete cleanly: %v", err)
	}
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		log.Printf("Hub shutdown did not complete cleanly: %v", err)
	}

	log.Println("Shutdown complete")
}
