// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	profileapi "github.com/songversus/city-arena/profile/api"
	"github.com/songversus/city-arena/profile/maturation"
	"github.com/songversus/city-arena/profile/service"
	"github.com/songversus/city-arena/profile/store"
	"github.com/songversus/city-arena/shared/api"
	"github.com/songversus/city-arena/shared/config"
	mongodbu "github.com/songversus/city-arena/shared/mongodb"
	redisu "github.com/songversus/city-arena/shared/redis"
	"github.com/songversus/city-arena/shared/registry"
)

func main() {
	// --- 1. Load Configuration ---
	config.LoadDotEnv()
	cfg, err := config.LoadProfileServiceConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// --- 2. Connect to MongoDB ---
	mongoClient, err := mongodbu.NewClient(cfg.MongoDBConnStr, cfg.MongoDBDatabase)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err = mongoClient.Disconnect(context.Background()); err != nil {
			log.Fatalf("Failed to disconnect from MongoDB: %v", err)
		}
		log.Println("Disconnected from MongoDB.")
	}()

	// --- 3. Connect to Redis (registry heartbeats) ---
	redisClient, err := redisu.NewRedisClusterClient(cfg.RedisAddrs, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis Cluster: %v", err)
	}
	defer func() {
		if err = redisClient.Close(); err != nil {
			log.Fatalf("Error closing Redis client: %v", err)
		}
		log.Println("Redis Client closed.")
	}()

	// --- 4. Initialize Data Store ---
	profilesCollection := mongoClient.Collection(cfg.MongoDBProfilesCollection)
	profileStore := store.NewProfileStore(profilesCollection)

	// --- 5. Initialize Business Logic Service ---
	profileService := service.NewProfileService(profileStore)

	// --- 6. Start Background Duffle Maturation ---
	duffleMaturer := maturation.NewDuffleMaturer(profileStore, cfg.DuffleMaturationInterval)
	duffleMaturer.Start()
	defer duffleMaturer.Stop()

	// --- 7. Initialize API Handlers ---
	profileAPIHandlers := profileapi.NewProfileAPIHandlers(profileService, int64(cfg.LeaderboardDefaultLimit))

	// --- 8. Initialize and Start Service Registrar ---
	registrar := registry.NewServiceRegistrar(redisClient, "profile-service", &cfg.CommonConfig)
	registrar.Start()
	defer registrar.Stop()

	// --- 9. Setup HTTP Server and Register Routes ---
	baseServer := api.NewBaseServer(cfg.ListenAddr, log.Default())
	profileAPIHandlers.RegisterRoutes(baseServer.Router)

	// --- 10. Start HTTP Server ---
	go func() {
		log.Printf("HTTP server starting on %s...", cfg.ListenAddr)
		if err := baseServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed to start: %v", err)
		}
	}()

	// --- 11. Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := baseServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP server graceful shutdown failed: %v", err)
	}
	log.Println("Server gracefully stopped.")
}
