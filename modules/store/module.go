package store

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-monolith/mono"
	nanoid "github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/KuwadaKouhei/todo-app/events"
)

const taskIDLength = 21

// StoreModule owns the task document store: the SQLite database, the
// optional Redis snapshot cache, and the snapshot broker.
type StoreModule struct {
	db        *gorm.DB
	store     *Store
	dbPath    string
	redisAddr string
	eventBus  mono.EventBus
}

// Compile-time interface checks.
var _ mono.Module = (*StoreModule)(nil)
var _ mono.EventEmitterModule = (*StoreModule)(nil)
var _ mono.HealthCheckableModule = (*StoreModule)(nil)

// NewModule creates a new StoreModule. TODO_DB_PATH overrides the database
// location; TODO_REDIS_ADDR enables the snapshot cache (empty disables it).
func NewModule() *StoreModule {
	dbPath := os.Getenv("TODO_DB_PATH")
	if dbPath == "" {
		dbPath = "todos.db"
	}
	return &StoreModule{
		dbPath:    dbPath,
		redisAddr: os.Getenv("TODO_REDIS_ADDR"),
	}
}

// Name returns the module name.
func (m *StoreModule) Name() string {
	return "store"
}

// SetEventBus receives the application event bus.
func (m *StoreModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module publishes.
func (m *StoreModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.TodoCreatedV1.ToBase(),
		events.TodoUpdatedV1.ToBase(),
		events.TodoDeletedV1.ToBase(),
	}
}

// Start opens the database, migrates the task schema, and wires the store.
func (m *StoreModule) Start(ctx context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&taskDocument{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	var cache *snapshotCache
	if m.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: m.redisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[store] Warning: Redis not reachable at %s, snapshot cache disabled: %v", m.redisAddr, err)
			_ = client.Close()
		} else {
			cache = newSnapshotCache(client, defaultCachePrefix, defaultCacheTTL)
			log.Printf("[store] Snapshot cache enabled (redis: %s)", m.redisAddr)
		}
	}

	newID, err := nanoid.Standard(taskIDLength)
	if err != nil {
		return fmt.Errorf("failed to create id generator: %w", err)
	}

	m.store = newStore(newTaskRepository(db), cache, newID)
	if m.eventBus != nil {
		m.store.setEventBus(m.eventBus)
	}

	log.Printf("[store] Module started (database: %s)", m.dbPath)
	return nil
}

// Stop closes the cache and the database connection.
func (m *StoreModule) Stop(_ context.Context) error {
	if m.store != nil {
		if err := m.store.cache.close(); err != nil {
			log.Printf("[store] Warning: failed to close cache: %v", err)
		}
	}
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	log.Println("[store] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *StoreModule) Health(ctx context.Context) mono.HealthStatus {
	healthy := m.store != nil
	details := map[string]any{
		"database": m.dbPath,
	}
	if healthy {
		details["subscribers"] = m.store.broker.subscriberCount()
		if m.store.cache != nil {
			details["cache"] = m.store.cache.ping(ctx) == nil
		}
	}
	message := "operational"
	if !healthy {
		message = "not started"
	}
	return mono.HealthStatus{
		Healthy: healthy,
		Message: message,
		Details: details,
	}
}

// Store returns the task store. Valid only after Start.
func (m *StoreModule) Store() *Store {
	return m.store
}
