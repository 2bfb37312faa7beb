package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/subroutine/adapters/postgres"
	"github.com/artpar/subroutine/adapters/sqlite"
	"github.com/artpar/subroutine/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the subroutine configuration file.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - Entity types resolve
  - Definitions compile (when a definitions dir is set)
  - Database is reachable (optional)

Examples:
  subroutine validate
  subroutine validate --config /etc/subroutine/config.yaml --check-database`,
	RunE: runValidate,
}

var (
	validateCheckDatabase bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if the database is reachable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	// Check file exists
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Fprintf(out, "  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Fprintf(out, "  %s Config file exists\n", checkMark)

	// Load and validate config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config syntax valid\n", checkMark)

	types, err := cfg.EntityTypes()
	if err != nil {
		fmt.Fprintf(out, "  %s Entity types\n", crossMark)
		return err
	}
	fmt.Fprintf(out, "  %s Entity types: %d\n", checkMark, len(types.Names()))
	fmt.Fprintf(out, "  %s Database: %s\n", checkMark, cfg.Database.Driver)

	if dir := cfg.Definitions.Dir; dir != "" {
		report, err := lintDir(dir)
		if err != nil {
			fmt.Fprintf(out, "  %s Definitions in %s\n", crossMark, dir)
			return err
		}
		if report.failed() {
			fmt.Fprintf(out, "  %s Definitions in %s\n", crossMark, dir)
			report.print(out)
			return fmt.Errorf("%d definition problems", len(report.problems))
		}
		fmt.Fprintf(out, "  %s Definitions: %d\n", checkMark, len(report.names))
	}

	// Optional: check database
	if validateCheckDatabase {
		if err := checkDatabase(cfg.Database); err != nil {
			fmt.Fprintf(out, "  %s Database reachable\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
		} else {
			fmt.Fprintf(out, "  %s Database reachable\n", checkMark)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

func checkDatabase(cfg config.DatabaseConfig) error {
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Ping()
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pool, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return err
		}
		pool.Close()
		return nil
	}
	return nil
}
