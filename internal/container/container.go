package container

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"vcf-drop/internal/campaign"
	"vcf-drop/internal/config"
	"vcf-drop/internal/domain"
	"vcf-drop/internal/export"
	"vcf-drop/internal/notify"
	"vcf-drop/internal/repository"
	"vcf-drop/internal/service"
	"vcf-drop/pkg/database"
	"vcf-drop/pkg/logger"
	"vcf-drop/pkg/redis"
	"vcf-drop/pkg/supabase"
)

// Store modes
const (
	StoreModeCloud = "cloud"
	StoreModeLocal = "local"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	RedisClient *redis.Client
	DB          *database.PostgresDB
	Notifier    notify.Notifier
	Store       repository.RecordStore
	StoreMode   string
	Services    *service.Services
}

// New creates a new dependency injection container. An unreachable Redis or
// database is logged and replaced by the local fallback; only a seed that
// cannot be written anywhere is fatal.
func New(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger, StoreMode: StoreModeLocal}

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, logger.Logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Redis client, using in-memory store")
		} else {
			c.RedisClient = client
			logger.WithField("key_prefix", client.KeyBuilder.GetPrefix()).Info("Redis client initialized successfully")
		}
	} else {
		logger.Info("Redis URL not configured, using in-memory store")
	}

	credential, err := service.HashCredential(cfg.AdminPassword)
	if err != nil {
		return nil, err
	}
	seed := domain.DefaultSeed(cfg.TargetCount, credential, domain.GroupLink{
		Name: cfg.DefaultGroupName,
		URL:  cfg.DefaultGroupURL,
	})

	local := c.localStore(seed)
	remote := c.remoteStore(ctx, seed)

	var store repository.RecordStore = local
	if remote != nil {
		store = repository.NewMirroredStore(remote, local, logger)
		c.StoreMode = StoreModeCloud
	}

	if c.RedisClient != nil {
		c.Notifier = notify.NewRedisNotifier(c.RedisClient, logger)
	} else {
		c.Notifier = notify.NewBroadcaster()
	}
	c.Store = repository.NewNotifyingStore(store, c.Notifier, instanceID(), logger)

	if err := c.Store.EnsureDefaults(ctx); err != nil {
		if remote == nil {
			c.Cleanup()
			return nil, fmt.Errorf("failed to seed store: %w", err)
		}
		// Reads fall back to the local mirror until the remote recovers
		logger.WithError(err).Warn("Failed to seed remote store")
		if err := local.EnsureDefaults(ctx); err != nil {
			c.Cleanup()
			return nil, fmt.Errorf("failed to seed local store: %w", err)
		}
	}

	secret, err := jwtSecret(cfg.AdminJWTSecret)
	if err != nil {
		c.Cleanup()
		return nil, err
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set, admin sessions end on restart")
	}

	engine := campaign.NewEngine(cfg.CountdownDuration)
	formatter := export.NewFormatter(cfg.VCardOrg, cfg.VCardNote, cfg.ExportFilePrefix)
	campaignService := service.NewCampaignService(c.Store, engine, formatter, logger, remote != nil)

	c.Services = &service.Services{
		Campaign:  campaignService,
		AdminAuth: service.NewAdminAuthService(c.Store, secret, cfg.AdminTokenTTL, logger),
		Countdown: service.NewCountdownWatcher(campaignService, cfg.CountdownCheckInterval, logger),
	}

	logger.WithFields(map[string]interface{}{
		"store":    c.StoreMode,
		"redis":    c.HasRedis(),
		"notifier": fmt.Sprintf("%T", c.Notifier),
	}).Info("Container initialized")

	return c, nil
}

func (c *Container) localStore(seed domain.Seed) *repository.LocalStore {
	if c.RedisClient != nil {
		return repository.NewLocalStore(repository.NewRedisKV(c.RedisClient), repository.RedisKeys(c.RedisClient.KeyBuilder), seed, c.Logger)
	}
	return repository.NewLocalStore(repository.NewMemoryKV(), repository.Keys{
		Contacts: redis.KeyContacts,
		Phones:   redis.KeyPhones,
		Settings: redis.KeySettings,
		Groups:   redis.KeyGroups,
	}, seed, c.Logger)
}

// remoteStore returns the hosted store, the direct Postgres store, or nil
func (c *Container) remoteStore(ctx context.Context, seed domain.Seed) repository.RecordStore {
	cfg := c.Config
	switch {
	case cfg.SupabaseEnabled():
		c.Logger.Info("Using Supabase record store")
		return repository.NewSupabaseStore(supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, c.Logger), seed)
	case cfg.DatabaseURL != "":
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			c.Logger.WithError(err).Warn("Failed to connect to database, running local-only")
			return nil
		}
		c.DB = db
		c.Logger.Info("Using Postgres record store")
		return repository.NewPostgresStore(db.Pool, seed)
	default:
		c.Logger.Info("No remote store configured, running local-only")
		return nil
	}
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetRedisClient returns the Redis client (may be nil if not configured)
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// CloudEnabled reports whether a remote store backs the campaign
func (c *Container) CloudEnabled() bool {
	return c.StoreMode == StoreModeCloud
}

// Cleanup closes the database pool and the Redis client
func (c *Container) Cleanup() {
	if c.DB != nil {
		c.DB.Close()
		c.Logger.Info("Database connection pool closed")
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.WithError(err).Error("Failed to close Redis connection")
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}
}

func jwtSecret(configured string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}
	return []byte(hex.EncodeToString(buf)), nil
}

func instanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "vcf-drop"
}
