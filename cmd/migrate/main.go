package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"vcf-drop/internal/config"
	"vcf-drop/internal/domain"
	"vcf-drop/internal/repository"
	"vcf-drop/internal/service"
	"vcf-drop/pkg/database"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

const usage = "Usage: go run ./cmd/migrate [drop|up|seed|status]"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "drop":
		if err := execAll(ctx, conn, database.DropStatements); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "up":
		if err := execAll(ctx, conn, database.CreateStatements); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	case "seed":
		if err := seedData(ctx, conn); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("✅ Data seeded successfully")

	case "status":
		if err := printStatus(ctx, conn); err != nil {
			log.Fatalf("Failed to read status: %v", err)
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

func execAll(ctx context.Context, conn *pgx.Conn, statements []string) error {
	for _, stmt := range statements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", firstLine(stmt), err)
		}
		fmt.Printf("  Applied: %s\n", firstLine(stmt))
	}
	return nil
}

// seedData writes the settings row and default group when absent. Existing
// rows, including the stored credential, are left alone.
func seedData(ctx context.Context, conn *pgx.Conn) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	credential, err := service.HashCredential(cfg.AdminPassword)
	if err != nil {
		return err
	}
	seed := domain.DefaultSeed(cfg.TargetCount, credential, domain.GroupLink{
		Name: cfg.DefaultGroupName,
		URL:  cfg.DefaultGroupURL,
	})

	return repository.NewPostgresStore(conn, seed).EnsureDefaults(ctx)
}

func printStatus(ctx context.Context, conn *pgx.Conn) error {
	store := repository.NewPostgresStore(conn, domain.Seed{})

	settings, err := store.GetSettings(ctx)
	if err != nil {
		return err
	}
	contacts, err := store.CountContacts(ctx)
	if err != nil {
		return err
	}
	groups, err := store.GetGroups(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("State:        %s\n", settings.State())
	fmt.Printf("Target:       %d\n", settings.TargetCount)
	fmt.Printf("Contacts:     %d (settings total %d)\n", contacts, settings.TotalCollected)
	fmt.Printf("Groups:       %d\n", len(groups))
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
