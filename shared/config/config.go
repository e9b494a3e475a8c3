// shared/config/config.go
package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CommonConfig holds configuration fields that are shared across multiple services.
type CommonConfig struct {
	RedisAddrs              []string      // Redis server addresses (e.g., "redis-cluster:6379")
	RedisPassword           string        // Redis password for authentication
	HeartbeatInterval       time.Duration // How often to send a heartbeat to registry (e.g., 5s)
	HeartbeatTTL            time.Duration // How long an instance is considered alive without a heartbeat (e.g., 15s)
	RegistryCleanupInterval time.Duration // How often the registry actively cleans stale entries (e.g., 30s)
	ServiceIP               string        // The IP address this service advertises for registration (Kubernetes Pod IP)
	ServicePort             int           // The port this service listens on, used for registration
}

// ProfileServiceConfig holds configuration specific to the profile-service.
type ProfileServiceConfig struct {
	CommonConfig                              // Embed CommonConfig
	ListenAddr                 string         // Address for the HTTP server to listen on (e.g., ":8081")
	MongoDBConnStr             string         // MongoDB connection string
	MongoDBDatabase            string         // MongoDB database name (e.g., "city_arena")
	MongoDBProfilesCollection  string         // MongoDB collection for profiles (e.g., "profiles")
	DuffleMaturationInterval   time.Duration  // How often locked duffles are scanned and flipped to ready
	LeaderboardDefaultLimit    int            // Default number of entries returned by the leaderboard
}

// BattleServiceConfig holds configuration specific to the battle-service.
type BattleServiceConfig struct {
	CommonConfig                                 // Embed CommonConfig
	ListenAddr                  string           // Address for the HTTP server (e.g., ":8082")
	MongoDBConnStr              string           // MongoDB connection string
	MongoDBDatabase             string           // MongoDB database name
	MongoDBBattlesCollection    string           // MongoDB collection for battles
	MongoDBTerritoriesCollection string          // MongoDB collection for territories
	ProfileServiceURL           string           // The URL to the profile-service (e.g., "http://profile-service:8081")
	HypeServiceURL              string           // Base URL of the external hype text generator (empty disables it)
	HypeServiceKey              string           // API key for the hype text generator
	CloseInterval               time.Duration    // How often expired battles are scanned and settled
	SyncInterval                time.Duration    // How often Redis vote tallies are flushed to MongoDB
	SyncTimeout                 time.Duration    // Timeout for a full vote tally sync pass
	BattleServiceInstanceID     int              // Unique identifier for this battle service instance (for sharding)
	TotalBattleServiceInstances int              // Total number of active battle service instances
	VoteRewardCoins             int64            // Coins credited to a viewer for casting a vote
	PublishCost                 int64            // Coins debited from the challenger when a battle is published
}

// LoadDotEnv loads a .env file if present. Missing files are fine; real
// deployments inject environment variables directly.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: no .env file loaded, using process environment")
	}
}

// LoadCommonConfig loads common configuration from environment variables.
func LoadCommonConfig() (CommonConfig, error) {
	cfg := CommonConfig{}
	var err error

	// Redis Addresses
	redisAddrsStr := os.Getenv("REDIS_ADDRS")
	if redisAddrsStr == "" {
		cfg.RedisAddrs = []string{"redis-cluster-headless.city-arena.svc.cluster.local:6379"} // Default for K8s Service
	} else {
		for _, addr := range strings.Split(redisAddrsStr, ",") {
			cfg.RedisAddrs = append(cfg.RedisAddrs, strings.TrimSpace(addr))
		}
	}

	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.HeartbeatInterval, err = getDuration("SERVICE_HEARTBEAT_INTERVAL", 5*time.Second)
	if err != nil {
		return cfg, err
	}
	cfg.HeartbeatTTL, err = getDuration("SERVICE_HEARTBEAT_TTL", 15*time.Second)
	if err != nil {
		return cfg, err
	}
	cfg.RegistryCleanupInterval, err = getDuration("SERVICE_REGISTRY_CLEANUP_INTERVAL", 30*time.Second)
	if err != nil {
		return cfg, err
	}

	// Service IP (for registration, from Kubernetes Pod IP)
	cfg.ServiceIP = os.Getenv("POD_IP") // Injected by Kubernetes
	if cfg.ServiceIP == "" {
		// Fallback for local development outside K8s or if not injected
		cfg.ServiceIP = "0.0.0.0"
		log.Printf("WARNING: POD_IP not set, defaulting ServiceIP to %s", cfg.ServiceIP)
	}

	return cfg, nil
}

// Helper function to parse duration from environment variable
func getDuration(envKey string, defaultVal time.Duration) (time.Duration, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format for %s: %w", envKey, err)
	}
	return d, nil
}

// Helper function to parse int from environment variable
func getInt(envKey string, defaultVal int) (int, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer format for %s: %w", envKey, err)
	}
	return i, nil
}

// extractPort extracts the numeric port from a listen address (e.g., ":8082" -> 8082, "0.0.0.0:8082" -> 8082)
func extractPort(listenAddr string) (int, error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		// If SplitHostPort fails, check if ListenAddr is just a port (e.g., ":8082")
		if strings.HasPrefix(listenAddr, ":") {
			portStr = strings.TrimPrefix(listenAddr, ":")
		} else {
			return 0, fmt.Errorf("invalid ListenAddr format for port extraction: %w", err)
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number '%s': %w", portStr, err)
	}
	return port, nil
}

// LoadProfileServiceConfig loads configuration for the profile-service.
func LoadProfileServiceConfig() (*ProfileServiceConfig, error) {
	common, err := LoadCommonConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load common config for profile-service: %w", err)
	}

	cfg := &ProfileServiceConfig{
		CommonConfig:              common,
		ListenAddr:                os.Getenv("PROFILE_SERVICE_LISTEN_ADDR"),
		MongoDBConnStr:            os.Getenv("MONGODB_CONN_STR"),
		MongoDBDatabase:           os.Getenv("MONGODB_DATABASE"),
		MongoDBProfilesCollection: os.Getenv("MONGODB_PROFILES_COLLECTION"),
	}

	// Apply defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8081"
	}
	if cfg.MongoDBConnStr == "" {
		cfg.MongoDBConnStr = "mongodb://mongodb-service:27017" // Default for K8s Service
	}
	if cfg.MongoDBDatabase == "" {
		cfg.MongoDBDatabase = "city_arena"
	}
	if cfg.MongoDBProfilesCollection == "" {
		cfg.MongoDBProfilesCollection = "profiles"
	}

	cfg.DuffleMaturationInterval, err = getDuration("DUFFLE_MATURATION_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.LeaderboardDefaultLimit, err = getInt("LEADERBOARD_DEFAULT_LIMIT", 25)
	if err != nil {
		return nil, err
	}

	// Extract ServicePort from ListenAddr
	cfg.ServicePort, err = extractPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to extract port from PROFILE_SERVICE_LISTEN_ADDR '%s': %w", cfg.ListenAddr, err)
	}

	return cfg, nil
}

// LoadBattleServiceConfig loads configuration for the battle-service.
func LoadBattleServiceConfig() (*BattleServiceConfig, error) {
	common, err := LoadCommonConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load common config for battle-service: %w", err)
	}

	cfg := &BattleServiceConfig{
		CommonConfig:                 common,
		ListenAddr:                   os.Getenv("BATTLE_SERVICE_LISTEN_ADDR"),
		MongoDBConnStr:               os.Getenv("MONGODB_CONN_STR"),
		MongoDBDatabase:              os.Getenv("MONGODB_DATABASE"),
		MongoDBBattlesCollection:     os.Getenv("MONGODB_BATTLES_COLLECTION"),
		MongoDBTerritoriesCollection: os.Getenv("MONGODB_TERRITORIES_COLLECTION"),
		ProfileServiceURL:            os.Getenv("PROFILE_SERVICE_URL"),
		HypeServiceURL:               os.Getenv("HYPE_SERVICE_URL"),
		HypeServiceKey:               os.Getenv("HYPE_SERVICE_KEY"),
	}

	// Apply defaults for specific fields if not set
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8082"
	}
	if cfg.MongoDBConnStr == "" {
		cfg.MongoDBConnStr = "mongodb://mongodb-service:27017"
	}
	if cfg.MongoDBDatabase == "" {
		cfg.MongoDBDatabase = "city_arena"
	}
	if cfg.MongoDBBattlesCollection == "" {
		cfg.MongoDBBattlesCollection = "battles"
	}
	if cfg.MongoDBTerritoriesCollection == "" {
		cfg.MongoDBTerritoriesCollection = "territories"
	}
	if cfg.ProfileServiceURL == "" {
		cfg.ProfileServiceURL = "http://profile-service:8081" // Default for K8s internal DNS
	}

	// Extract ServicePort from ListenAddr
	cfg.ServicePort, err = extractPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to extract port from BATTLE_SERVICE_LISTEN_ADDR '%s': %w", cfg.ListenAddr, err)
	}

	// Durations
	cfg.CloseInterval, err = getDuration("BATTLE_CLOSE_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.SyncInterval, err = getDuration("VOTE_SYNC_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.SyncTimeout, err = getDuration("VOTE_SYNC_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.BattleServiceInstanceID, err = getInt("BATTLE_SERVICE_INSTANCE_ID", 0)
	if err != nil {
		return nil, err
	}
	cfg.TotalBattleServiceInstances, err = getInt("TOTAL_BATTLE_SERVICE_INSTANCES", 1)
	if err != nil {
		return nil, err
	}

	// Final validation for instance IDs
	if cfg.TotalBattleServiceInstances <= 0 {
		return nil, fmt.Errorf("TOTAL_BATTLE_SERVICE_INSTANCES must be a positive integer (got %d)", cfg.TotalBattleServiceInstances)
	}
	if cfg.BattleServiceInstanceID < 0 || cfg.BattleServiceInstanceID >= cfg.TotalBattleServiceInstances {
		return nil, fmt.Errorf("BATTLE_SERVICE_INSTANCE_ID (%d) must be non-negative and less than TOTAL_BATTLE_SERVICE_INSTANCES (%d)", cfg.BattleServiceInstanceID, cfg.TotalBattleServiceInstances)
	}

	voteReward, err := getInt("VOTE_REWARD_COINS", 10)
	if err != nil {
		return nil, err
	}
	cfg.VoteRewardCoins = int64(voteReward)

	publishCost, err := getInt("BATTLE_PUBLISH_COST", 500)
	if err != nil {
		return nil, err
	}
	cfg.PublishCost = int64(publishCost)

	return cfg, nil
}
