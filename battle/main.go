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

	battleapi "github.com/songversus/city-arena/battle/api"
	"github.com/songversus/city-arena/battle/closer"
	"github.com/songversus/city-arena/battle/hype"
	"github.com/songversus/city-arena/battle/service"
	"github.com/songversus/city-arena/battle/store"
	"github.com/songversus/city-arena/battle/syncer"
	"github.com/songversus/city-arena/shared/api"
	"github.com/songversus/city-arena/shared/config"
	mongodbu "github.com/songversus/city-arena/shared/mongodb"
	redisu "github.com/songversus/city-arena/shared/redis"
	"github.com/songversus/city-arena/shared/registry"
	profileclient "github.com/songversus/city-arena/shared/service"
)

func main() {
	// --- 1. Load Configuration ---
	config.LoadDotEnv()
	cfg, err := config.LoadBattleServiceConfig()
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

	// --- 3. Connect to Redis Cluster (vote ledger + registry) ---
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

	// --- 4. Initialize Data Stores ---
	battlesCollection := mongoClient.Collection(cfg.MongoDBBattlesCollection)
	battleStore := store.NewBattleStore(battlesCollection)

	territoriesCollection := mongoClient.Collection(cfg.MongoDBTerritoriesCollection)
	territoryStore := store.NewTerritoryStore(territoriesCollection)

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err = territoryStore.EnsureTerritoriesExist(seedCtx, store.DefaultTerritories); err != nil {
		seedCancel()
		log.Fatalf("Failed to seed territories: %v", err)
	}
	seedCancel()

	voteStore, err := store.NewVoteStore(context.Background(), redisClient)
	if err != nil {
		log.Fatalf("Failed to initialize vote store: %v", err)
	}

	// --- 5. Initialize Profile Service Client and Hype Service ---
	profileClient := profileclient.NewProfileClient(cfg.ProfileServiceURL)
	hypeService := hype.NewHypeService(cfg.HypeServiceURL, cfg.HypeServiceKey)

	// --- 6. Initialize Business Logic Service ---
	battleService := service.NewBattleService(
		battleStore,
		territoryStore,
		voteStore,
		profileClient,
		hypeService,
		cfg.VoteRewardCoins,
		cfg.PublishCost,
	)

	// --- 7. Initialize and Start Service Registrar ---
	registrar := registry.NewServiceRegistrar(redisClient, "battle-service", &cfg.CommonConfig)
	registrar.Start()
	defer registrar.Stop()

	registryClient := registry.NewRegistryClient(redisClient, cfg.HeartbeatTTL)

	// --- 8. Start Background Battle Closer ---
	battleCloser := closer.NewBattleCloser(cfg, battleStore, battleService, registryClient, registrar)
	go battleCloser.Start()
	defer battleCloser.Stop()

	// --- 9. Start Background Vote Tally Syncer ---
	voteSyncer := syncer.NewVoteSyncer(cfg, voteStore, battleStore, registryClient, registrar)
	go voteSyncer.Start()
	defer voteSyncer.Stop()

	// --- 10. Initialize API Handlers ---
	battleAPIHandlers := battleapi.NewBattleAPIHandlers(battleService)

	// --- 11. Setup HTTP Server and Register Routes ---
	baseServer := api.NewBaseServer(cfg.ListenAddr, log.Default())
	battleAPIHandlers.RegisterRoutes(baseServer.Router)

	// --- 12. Start HTTP Server ---
	go func() {
		log.Printf("HTTP server starting on %s...", cfg.ListenAddr)
		if err := baseServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed to start: %v", err)
		}
	}()

	// --- 13. Graceful Shutdown ---
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
