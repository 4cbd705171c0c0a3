package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sam-thetutor/herlock/internal/config"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Up          func(*mongo.Database) error
	Down        func(*mongo.Database) error
}

// MigrationManager handles database migrations
type MigrationManager struct {
	client     *mongo.Client
	db         *mongo.Database
	config     *config.MongoDBConfig
	migrations []Migration
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(cfg *config.MongoDBConfig) (*MigrationManager, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.URI)
	clientOptions.SetMaxPoolSize(cfg.MaxPoolSize)
	clientOptions.SetConnectTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)

	mm := &MigrationManager{
		client: client,
		db:     db,
		config: cfg,
	}
	mm.initializeMigrations()

	return mm, nil
}

// initializeMigrations sets up all available migrations
func (mm *MigrationManager) initializeMigrations() {
	mm.migrations = []Migration{
		{
			Version:     1,
			Description: "Create sessions collection with principal index",
			Up:          mm.migration001Up,
			Down:        mm.migration001Down,
		},
		{
			Version:     2,
			Description: "Add last_seen field to existing sessions",
			Up:          mm.migration002Up,
			Down:        mm.migration002Down,
		},
		{
			Version:     3,
			Description: "Add compound index for session validation lookups",
			Up:          mm.migration003Up,
			Down:        mm.migration003Down,
		},
	}
}

// migration001Up creates the sessions collection with a principal index
func (mm *MigrationManager) migration001Up(db *mongo.Database) error {
	collection := db.Collection(mm.config.SessionCollection)

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "principal", Value: 1}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("failed to create principal index: %w", err)
	}

	log.Println("Migration 001: Created sessions collection with principal index")
	return nil
}

// migration001Down removes the sessions collection
func (mm *MigrationManager) migration001Down(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.Collection(mm.config.SessionCollection).Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop sessions collection: %w", err)
	}

	log.Println("Migration 001 rollback: Dropped sessions collection")
	return nil
}

// migration002Up backfills last_seen on sessions that predate it
func (mm *MigrationManager) migration002Up(db *mongo.Database) error {
	collection := db.Collection(mm.config.SessionCollection)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	filter := bson.M{"last_seen": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"last_seen": time.Now()}}

	result, err := collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to backfill last_seen field: %w", err)
	}

	log.Printf("Migration 002: Backfilled last_seen on %d sessions", result.ModifiedCount)
	return nil
}

// migration002Down removes last_seen from sessions
func (mm *MigrationManager) migration002Down(db *mongo.Database) error {
	collection := db.Collection(mm.config.SessionCollection)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := collection.UpdateMany(ctx, bson.M{}, bson.M{"$unset": bson.M{"last_seen": ""}})
	if err != nil {
		return fmt.Errorf("failed to remove last_seen field: %w", err)
	}

	log.Printf("Migration 002 rollback: Removed last_seen from %d sessions", result.ModifiedCount)
	return nil
}

// migration003Up adds the compound index the token validation path uses
func (mm *MigrationManager) migration003Up(db *mongo.Database) error {
	collection := db.Collection(mm.config.SessionCollection)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	compoundIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "principal", Value: 1},
			{Key: "active", Value: 1},
		},
	}

	if _, err := collection.Indexes().CreateOne(ctx, compoundIndexModel); err != nil {
		return fmt.Errorf("failed to create compound index: %w", err)
	}

	lastSeenIndexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "last_seen", Value: 1}},
	}
	if _, err := collection.Indexes().CreateOne(ctx, lastSeenIndexModel); err != nil {
		return fmt.Errorf("failed to create last_seen index: %w", err)
	}

	log.Println("Migration 003: Added session validation indexes")
	return nil
}

// migration003Down removes the validation indexes
func (mm *MigrationManager) migration003Down(db *mongo.Database) error {
	collection := db.Collection(mm.config.SessionCollection)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := collection.Indexes().DropOne(ctx, "principal_1_active_1"); err != nil {
		log.Printf("Warning: failed to drop compound index: %v", err)
	}
	if _, err := collection.Indexes().DropOne(ctx, "last_seen_1"); err != nil {
		log.Printf("Warning: failed to drop last_seen index: %v", err)
	}

	log.Println("Migration 003 rollback: Removed session validation indexes")
	return nil
}

// GetCurrentVersion returns the current migration version
func (mm *MigrationManager) GetCurrentVersion() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	collection := mm.db.Collection("migrations")

	var result struct {
		Version int `bson:"version"`
	}

	err := collection.FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}

	return result.Version, nil
}

// setVersion records the current migration version
func (mm *MigrationManager) setVersion(version int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc := bson.M{
		"version":    version,
		"applied_at": time.Now(),
	}

	if _, err := mm.db.Collection("migrations").InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}

// MigrateUp runs all pending migrations
func (mm *MigrationManager) MigrateUp() error {
	currentVersion, err := mm.GetCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	log.Printf("Current migration version: %d", currentVersion)

	for _, migration := range mm.migrations {
		if migration.Version > currentVersion {
			log.Printf("Running migration %d: %s", migration.Version, migration.Description)

			if err := migration.Up(mm.db); err != nil {
				return fmt.Errorf("migration %d failed: %w", migration.Version, err)
			}
			if err := mm.setVersion(migration.Version); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}

			log.Printf("Migration %d completed successfully", migration.Version)
		}
	}

	log.Println("All migrations completed successfully")
	return nil
}

// MigrateDown rolls back the last migration
func (mm *MigrationManager) MigrateDown() error {
	currentVersion, err := mm.GetCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if currentVersion == 0 {
		log.Println("No migrations to roll back")
		return nil
	}

	var targetMigration *Migration
	for i := range mm.migrations {
		if mm.migrations[i].Version == currentVersion {
			targetMigration = &mm.migrations[i]
			break
		}
	}
	if targetMigration == nil {
		return fmt.Errorf("migration %d not found", currentVersion)
	}

	log.Printf("Rolling back migration %d: %s", targetMigration.Version, targetMigration.Description)

	if err := targetMigration.Down(mm.db); err != nil {
		return fmt.Errorf("rollback of migration %d failed: %w", targetMigration.Version, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := mm.db.Collection("migrations").DeleteOne(ctx, bson.M{"version": currentVersion}); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	log.Printf("Migration %d rolled back successfully", targetMigration.Version)
	return nil
}

// Close closes the database connection
func (mm *MigrationManager) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return mm.client.Disconnect(ctx)
}

func main() {
	cfg := config.LoadConfig()

	manager, err := NewMigrationManager(&cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to create migration manager: %v", err)
	}
	defer manager.Close()

	if err := manager.MigrateUp(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Database migration completed successfully!")
}
