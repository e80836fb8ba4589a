// Package main provides the entry point for the back-office admin API
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/amirphl/backoffice/config"
	"github.com/amirphl/backoffice/migrations"
	"github.com/amirphl/backoffice/utils"
	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "backoffice",
	Short: "Back-office admin API for finance, customers and staff",
	Long: `Serves the admin dashboard API: invoices, payments and refunds,
customer analytics, staff onboarding and the access log.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Start the HTTP API server.

Configuration is read from a .env file in the working directory (if present)
and from the environment. See config/production.go for every variable.`,
	RunE: runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down]",
	Short: "Apply or roll back the PostgreSQL schema",
	Example: `  backoffice migrate up
  backoffice migrate down`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(migrations.DirectionUp), string(migrations.DirectionDown)},
	RunE:      runMigrate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration and installs the default logger. It returns
// the log writer so HTTP request logging shares it.
func loadConfig() (*config.ProductionConfig, io.Writer, error) {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Deployment.Version == "dev" && Version != "dev" {
		cfg.Deployment.Version = Version
	}
	w := utils.InitLogger(utils.LogOptions{
		Format:     cfg.Logging.Format,
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	return cfg, w, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logWriter, err := loadConfig()
	if err != nil {
		return err
	}
	return serve(cmd.Context(), cfg, logWriter)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	dir, err := migrations.ParseDirection(args[0])
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("migrate supports the postgres driver only; set DB_AUTO_MIGRATE for %s", cfg.Database.Driver)
	}
	return migrations.Run(cfg.Database.DSN(), dir)
}
