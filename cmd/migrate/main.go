package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"energy-analytics/internal/config"
	"energy-analytics/internal/repository"
	"energy-analytics/pkg/database"
	"energy-analytics/pkg/logging"
	"energy-analytics/pkg/metrics"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	// migrate always targets the configured database, DB_ENABLED or not
	cfg.Database.Enabled = true
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("energy-migrate", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	db, err := database.Open(cfg.DatabaseConnConfig(), logger, metrics.NewCollector("energy_migrate", nil))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("Connected to %s database successfully\n", db.Driver())

	ctx := context.Background()
	switch *direction {
	case "up":
		err = repository.Migrate(ctx, db)
	case "down":
		err = repository.DropSchema(ctx, db)
	default:
		fmt.Fprintf(os.Stderr, "Unknown direction %q, expected up or down\n", *direction)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", *direction, err)
		os.Exit(1)
	}

	fmt.Printf("Migration %s completed successfully\n", *direction)
}
