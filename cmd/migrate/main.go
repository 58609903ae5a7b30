package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"vox-be/internal/config"
	"vox-be/internal/db"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// migrator is the part of *migrate.Migrate the CLI drives.
type migrator interface {
	Up() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
}

func main() {
	mode := flag.String("mode", "up", "migration mode: up, down, version or force")
	dir := flag.String("dir", "./migrations", "directory holding the .up.sql/.down.sql files")
	steps := flag.Int("steps", 1, "number of migrations to roll back in down mode")
	flag.Parse()

	cfg := config.LoadConfig()

	conn, err := db.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}
	defer conn.Close()

	driver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		log.Fatalf("could not create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+*dir, "postgres", driver)
	if err != nil {
		log.Fatalf("could not create migrate instance: %v", err)
	}

	if err := run(m, *mode, *steps, flag.Args(), os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(m migrator, mode string, steps int, args []string, out io.Writer) error {
	switch mode {
	case "up":
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				fmt.Fprintln(out, "no new migrations to apply")
				return nil
			}
			return fmt.Errorf("could not run migrations: %w", err)
		}
		fmt.Fprintln(out, "all new migrations applied")

	case "down":
		if steps <= 0 {
			return fmt.Errorf("steps must be positive, got %d", steps)
		}
		if err := m.Steps(-steps); err != nil {
			if errors.Is(err, migrate.ErrNoChange) || errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(out, "no migrations to roll back")
				return nil
			}
			return fmt.Errorf("rollback failed: %w", err)
		}
		fmt.Fprintf(out, "rolled back %d migration(s)\n", steps)

	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Fprintln(out, "no migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read version: %w", err)
		}
		fmt.Fprintf(out, "version %d (dirty: %t)\n", v, dirty)

	case "force":
		// clears the dirty flag after a manually repaired failure
		if len(args) != 1 {
			return errors.New("force needs exactly one version argument")
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		if err := m.Force(v); err != nil {
			return fmt.Errorf("force failed: %w", err)
		}
		fmt.Fprintf(out, "forced version %d\n", v)

	default:
		return fmt.Errorf("unknown mode: %s (use up, down, version or force)", mode)
	}
	return nil
}
