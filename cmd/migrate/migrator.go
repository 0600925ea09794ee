package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var errNoDatabaseURL = errors.New("DATABASE_URL or -database-url is required")

type migrator struct {
	databaseURL    string
	migrationsPath string
	timeout        time.Duration
	dryRun         bool
	logger         *slog.Logger
}

func (m *migrator) run(cmd string, args []string) error {
	switch cmd {
	case "create":
		if len(args) < 1 {
			return fmt.Errorf("create requires a migration name")
		}
		_, _, err := m.create(args[0], time.Now())
		return err
	case "version":
		return m.version()
	case "up":
		steps, err := parseSteps(args)
		if err != nil {
			return err
		}
		return m.step("up", steps)
	case "down":
		steps, err := parseSteps(args)
		if err != nil {
			return err
		}
		return m.step("down", steps)
	case "goto":
		if len(args) < 1 {
			return fmt.Errorf("goto requires a version number")
		}
		v, err := strconv.ParseUint(args[0], 10, 0)
		if err != nil {
			return fmt.Errorf("invalid version: %s", args[0])
		}
		return m.gotoVersion(uint(v))
	case "force":
		if len(args) < 1 {
			return fmt.Errorf("force requires a version number")
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version: %s", args[0])
		}
		return m.force(v)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// parseSteps reads the optional step count; 0 means all.
func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	steps, err := strconv.Atoi(args[0])
	if err != nil || steps < 0 {
		return 0, fmt.Errorf("invalid number of steps: %s", args[0])
	}
	return steps, nil
}

// create writes an empty NNN_name.up.sql / NNN_name.down.sql pair.
func (m *migrator) create(name string, now time.Time) (string, string, error) {
	next, err := nextMigrationNumber(m.migrationsPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to determine next migration number: %w", err)
	}

	upFile := filepath.Join(m.migrationsPath, fmt.Sprintf("%03d_%s.up.sql", next, name))
	downFile := filepath.Join(m.migrationsPath, fmt.Sprintf("%03d_%s.down.sql", next, name))

	if m.dryRun {
		m.logger.Info("dry run: would create migration", slog.String("up", upFile), slog.String("down", downFile))
		return upFile, downFile, nil
	}

	if err := os.MkdirAll(m.migrationsPath, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create migrations directory: %w", err)
	}

	created := now.Format(time.RFC3339)
	if err := os.WriteFile(upFile, []byte(fmt.Sprintf("-- Migration: %s\n-- Created: %s\n\n", name, created)), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := os.WriteFile(downFile, []byte(fmt.Sprintf("-- Migration: %s (rollback)\n-- Created: %s\n\n", name, created)), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to create down migration: %w", err)
	}

	m.logger.Info("created migration files", slog.String("up", upFile), slog.String("down", downFile))
	return upFile, downFile, nil
}

// nextMigrationNumber returns one past the highest NNN_ prefix in dir.
func nextMigrationNumber(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, err
	}

	highest := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var num int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &num); err == nil && num > highest {
			highest = num
		}
	}
	return highest + 1, nil
}

func (m *migrator) version() error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()

	v, dirty, err := mg.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			m.logger.Info("no migrations have been applied yet")
			return nil
		}
		return fmt.Errorf("failed to get version: %w", err)
	}

	m.logger.Info("current migration version", slog.Uint64("version", uint64(v)), slog.Bool("dirty", dirty))
	return nil
}

// step applies steps migrations in direction; 0 steps means all the way.
func (m *migrator) step(direction string, steps int) error {
	if m.dryRun {
		m.logger.Info("dry run: would migrate", slog.String("direction", direction), slog.Int("steps", steps))
		return nil
	}

	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()

	from, _, _ := mg.Version()

	switch {
	case steps > 0 && direction == "up":
		err = mg.Steps(steps)
	case steps > 0:
		err = mg.Steps(-steps)
	case direction == "up":
		err = mg.Up()
	default:
		err = mg.Down()
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("no migrations to apply", slog.String("direction", direction))
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	to, _, _ := mg.Version()
	m.logger.Info("migration completed",
		slog.String("direction", direction),
		slog.Uint64("from", uint64(from)),
		slog.Uint64("to", uint64(to)),
	)
	return nil
}

func (m *migrator) gotoVersion(v uint) error {
	if m.dryRun {
		m.logger.Info("dry run: would migrate to version", slog.Uint64("version", uint64(v)))
		return nil
	}

	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Migrate(v); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("already at version", slog.Uint64("version", uint64(v)))
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	m.logger.Info("migration completed", slog.Uint64("to", uint64(v)))
	return nil
}

func (m *migrator) force(v int) error {
	if m.dryRun {
		m.logger.Info("dry run: would force version", slog.Int("version", v))
		return nil
	}

	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Force(v); err != nil {
		return fmt.Errorf("force failed: %w", err)
	}

	m.logger.Warn("version forced without running migrations", slog.Int("version", v))
	return nil
}

// open connects through the pgx stdlib driver and wraps the connection in a
// golang-migrate postgres driver reading from the file source.
func (m *migrator) open() (*migrate.Migrate, error) {
	if m.databaseURL == "" {
		return nil, errNoDatabaseURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	db, err := sql.Open("pgx", m.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	migrationsPath, err := filepath.Abs(m.migrationsPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to resolve migrations path: %w", err)
	}

	mg, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	mg.LockTimeout = m.timeout

	return mg, nil
}
