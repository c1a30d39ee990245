package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jgoulah/dayboard/internal/config"
	"github.com/jgoulah/dayboard/internal/database"
)

var (
	cfgFile  string
	dbPath   string
	logLevel string
	logJSON  bool

	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "dayboard",
	Short: "Track daily market, weather, sleep and journal data",
	Long: `Dayboard ingests daily market closes, weather and biometric summaries into a
local database, records check-ins and scripture readings, and serves a dashboard
that pivots everything by calendar date.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		log.SetLevel(level)
		if logJSON {
			log.SetFormatter(&logrus.JSONFormatter{})
		}
		log.SetOutput(os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file or postgres:// DSN (default from config, then ./data.db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// openDB opens the database named by --db or the config
func openDB(cfg *config.Config) (*database.DB, error) {
	dsn := dbPath
	if dsn == "" {
		dsn = cfg.GetDatabase()
	}

	if !strings.Contains(dsn, "://") {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	return database.New(dsn)
}
