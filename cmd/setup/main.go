package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/tarisrizki/provisioning-telkom/internal/auth"
	"github.com/tarisrizki/provisioning-telkom/internal/config"
	"github.com/tarisrizki/provisioning-telkom/internal/database"
	"github.com/tarisrizki/provisioning-telkom/internal/logging"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	fmt.Println("Starting database setup...")

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	username := flag.String("admin-username", envOr("ADMIN_USERNAME", ""), "username of the first admin; skipped when empty")
	email := flag.String("admin-email", envOr("ADMIN_EMAIL", ""), "email of the first admin")
	password := flag.String("admin-password", envOr("ADMIN_PASSWORD", ""), "password of the first admin")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	dbpool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer dbpool.Close()

	store := database.NewPostgresStore(dbpool, logger)

	fmt.Println("Creating tables...")
	if err := store.CreateTables(ctx); err != nil {
		log.Fatalf("Error creating tables: %v", err)
	}
	fmt.Println("Creating indexes...")
	if err := store.CreateIndexes(ctx); err != nil {
		log.Fatalf("Error creating indexes: %v", err)
	}

	if *username != "" {
		if err := createAdmin(ctx, store, *username, *email, *password); err != nil {
			log.Fatalf("Error creating admin user: %v", err)
		}
	}

	fmt.Println("Database setup finished successfully.")
}

func createAdmin(ctx context.Context, store database.Store, username, email, password string) error {
	user := &models.User{
		Username: username,
		Email:    email,
		Name:     username,
		Role:     models.RoleAdmin,
		Status:   models.UserActive,
	}
	if err := auth.ValidateUser(user, password, true); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash

	err = store.CreateUser(ctx, user)
	if errors.Is(err, database.ErrConflict) {
		fmt.Printf("Admin user %s already exists.\n", username)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Admin user %s created.\n", username)
	return nil
}
