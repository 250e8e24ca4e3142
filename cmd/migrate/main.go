package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/planmatrix/planmatrix/internal/pkg/env"
)

type command struct {
	help string
	run  func(m *migrate.Migrate, args []string) error
}

var commandOrder = []string{"up", "down", "goto", "status"}

var commands = map[string]command{
	"up":     {"apply all pending migrations", runUp},
	"down":   {"roll back the last migration", runDown},
	"goto":   {"migrate to version N", runGoto},
	"status": {"show the current migration version", runStatus},
}

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		usage()
		os.Exit(1)
	}

	m, err := migrate.New("file://migrations", databaseURL())
	if err != nil {
		log.Fatalf("Failed to initialize migration: %v", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Printf("Failed to close migration resources: %v, %v", sourceErr, dbErr)
		}
	}()

	if err := cmd.run(m, os.Args[2:]); err != nil {
		log.Fatal(err)
	}
}

func databaseURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		env.GetEnv("DB_USER", "planmatrix"),
		env.GetEnv("DB_PASSWORD", "planmatrix"),
		env.GetEnv("DB_HOST", "db"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "planmatrix_db"),
	)
}

func runUp(m *migrate.Migrate, _ []string) error {
	switch err := m.Up(); err {
	case nil:
		log.Println("Migrations applied")
	case migrate.ErrNoChange:
		log.Println("Database is already up to date")
	default:
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func runDown(m *migrate.Migrate, _ []string) error {
	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("roll back last migration: %w", err)
	}
	log.Println("Rolled back last migration")
	return nil
}

func runGoto(m *migrate.Migrate, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("goto requires a version number")
	}
	version, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version number %q: %w", args[0], err)
	}
	switch err := m.Migrate(uint(version)); err {
	case nil:
		log.Printf("Migrated to version %d", version)
	case migrate.ErrNoChange:
		log.Printf("Database is already at version %d", version)
	default:
		return fmt.Errorf("migrate to version %d: %w", version, err)
	}
	return nil
}

func runStatus(m *migrate.Migrate, _ []string) error {
	version, dirty, err := m.Version()
	if err == migrate.ErrNilVersion {
		log.Println("No migrations applied yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	log.Printf("Migration version %d (%s)", version, state)
	return nil
}

func usage() {
	fmt.Println("Usage: migrate <command>")
	fmt.Println("Commands:")
	for _, name := range commandOrder {
		fmt.Printf("  %-6s %s\n", name, commands[name].help)
	}
}
