package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/config"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/logger"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/migration"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/persistence"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	var (
		migrationsPath string
		logLevel       string
		batchSize      int
	)

	flag.StringVar(&migrationsPath, "path", "", "Path to migrations directory (default: MIGRATION_PATH or ./migrations)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.IntVar(&batchSize, "batch-size", 0, "Rows per backfill statement (default: MIGRATION_BACKFILL_BATCH_SIZE)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if migrationsPath == "" {
		migrationsPath = cfg.Migration.Path
	}
	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		log.Fatal("Failed to get absolute path", zap.Error(err))
	}
	migrationsPath = absPath

	log.Info("Migration CLI started",
		zap.String("command", command),
		zap.String("migrations_path", migrationsPath),
	)

	switch command {
	case "create":
		createMigration(log, migrationsPath, args)
		return
	case "list":
		listMigrations(log, migrationsPath)
		return
	case "backfill-hierarchy":
		if batchSize <= 0 {
			batchSize = cfg.Migration.BackfillBatchSize
		}
		backfillHierarchy(log, cfg, batchSize, args)
		return
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m, err := migration.New(db, migrationsPath, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil {
			log.Fatal("Migration up failed", zap.Error(err))
		}

	case "down":
		if err := m.Down(); err != nil {
			log.Fatal("Migration down failed", zap.Error(err))
		}

	case "step":
		if len(args) < 2 {
			log.Fatal("Step count required. Usage: migrate step <n>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal("Invalid step count", zap.String("value", args[1]))
		}
		if err := m.Steps(n); err != nil {
			log.Fatal("Migration step failed", zap.Error(err))
		}

	case "goto":
		if len(args) < 2 {
			log.Fatal("Version required. Usage: migrate goto <version>")
		}
		version, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			log.Fatal("Invalid version number", zap.String("value", args[1]))
		}
		if err := m.GoTo(uint(version)); err != nil {
			log.Fatal("Migration goto failed", zap.Error(err))
		}

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatal("Failed to get version", zap.Error(err))
		}
		if version == 0 {
			log.Info("No migrations applied")
		} else {
			log.Info("Current migration version",
				zap.Uint("version", version),
				zap.Bool("dirty", dirty),
			)
		}

	case "force":
		if len(args) < 2 {
			log.Fatal("Version required. Usage: migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal("Invalid version number", zap.String("value", args[1]))
		}
		log.Warn("Forcing migration version, use with caution")
		if err := m.Force(version); err != nil {
			log.Fatal("Force version failed", zap.Error(err))
		}

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

func createMigration(log *zap.Logger, dir string, args []string) {
	if len(args) < 2 {
		log.Fatal("Migration name required. Usage: migrate create <name> [description]")
	}
	description := ""
	if len(args) > 2 {
		description = args[2]
	}

	mf, err := migration.CreateMigration(dir, args[1], description)
	if err != nil {
		log.Fatal("Failed to create migration", zap.Error(err))
	}
	log.Info("Migration created successfully",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
}

func listMigrations(log *zap.Logger, dir string) {
	migrations, err := migration.ListMigrations(dir)
	if err != nil {
		log.Fatal("Failed to list migrations", zap.Error(err))
	}
	if len(migrations) == 0 {
		log.Info("No migrations found")
		return
	}

	log.Info("Available migrations", zap.Int("count", len(migrations)))
	for _, m := range migrations {
		fmt.Println("  -", m)
	}
}

// backfillHierarchy runs the flat-to-tree backfill on an existing categories table
func backfillHierarchy(log *zap.Logger, cfg *config.Config, batchSize int, args []string) {
	action := "status"
	if len(args) > 1 {
		action = args[1]
	}

	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithZapLogger(log, cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	backfill := migration.NewHierarchyBackfill(db.DB, batchSize, log)

	switch action {
	case "up":
		result, err := backfill.Up(ctx)
		if err != nil {
			log.Fatal("Hierarchy backfill failed", zap.Error(err))
		}
		log.Info("Hierarchy backfill applied",
			zap.Strings("columns_added", result.ColumnsAdded),
			zap.Int64("rows_backfilled", result.RowsBackfilled),
			zap.Bool("index_created", result.IndexCreated),
		)

	case "down":
		if err := backfill.Down(ctx); err != nil {
			log.Fatal("Hierarchy backfill rollback failed", zap.Error(err))
		}
		log.Info("Hierarchy backfill rolled back")

	case "status":
		state, err := backfill.Status(ctx)
		if err != nil {
			log.Fatal("Failed to read backfill status", zap.Error(err))
		}
		log.Info("Hierarchy backfill status", zap.String("state", string(state)))

	default:
		log.Fatal("Unknown backfill action. Usage: migrate backfill-hierarchy up|down|status",
			zap.String("action", action))
	}
}

func printUsage() {
	fmt.Println(`Catalog Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                              Apply all pending migrations
  down                            Roll back all migrations
  step <n>                        Apply n migrations (positive=up, negative=down)
  goto <version>                  Migrate to a specific version
  version                         Show current migration version
  force <version>                 Force set migration version (use with caution)
  create <name> [desc]            Create a new migration file pair
  list                            List available migrations
  backfill-hierarchy up|down|status
                                  Convert flat legacy categories into tree roots

Flags:
  -path string          Path to migrations directory (default: ./migrations)
  -log-level string     Log level: debug, info, warn, error (default: info)
  -batch-size int       Rows per backfill statement (default: 500)

Environment Variables:
  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSL_MODE

Examples:
  # Apply all pending migrations
  migrate up

  # Roll back the last migration
  migrate step -1

  # Backfill hierarchy columns on a legacy database
  migrate backfill-hierarchy up`)
}
