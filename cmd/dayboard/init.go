package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jgoulah/dayboard/internal/calendar"
	"github.com/jgoulah/dayboard/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Writes a config file populated with the defaults. API keys and tokens are left
empty; set them in the environment or a .env file (POLYGON_API_KEY,
OURA_ACCESS_TOKEN, HA_TOKEN, MQTT_PASSWORD).`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	defaults := &config.Config{}
	loc := defaults.GetDefaultLocation()
	cfg := &config.Config{
		Timezone:        calendar.DefaultZone,
		Database:        defaults.GetDatabase(),
		DefaultLocation: &loc,
		Market: config.MarketConfig{
			BaseURL: defaults.GetMarketBaseURL(),
			Symbols: defaults.GetSymbols(),
		},
		Weather:   config.WeatherConfig{BaseURL: defaults.GetWeatherBaseURL()},
		Biometric: config.BiometricConfig{BaseURL: defaults.GetBiometricBaseURL()},
		Geocode:   config.GeocodeConfig{BaseURL: defaults.GetGeocodeBaseURL()},
		Server:    config.ServerConfig{Addr: defaults.GetServerAddr()},
		Dashboard: config.DashboardConfig{
			ChartDays:   defaults.GetChartDays(),
			HeatmapDays: defaults.GetHeatmapDays(),
		},
		MQTT:          config.MQTTConfig{TopicPrefix: "dayboard"},
		HomeAssistant: config.HAConfig{EntityPrefix: "sensor.dayboard"},
	}

	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("✓ Wrote %s\n", path)
	return nil
}
