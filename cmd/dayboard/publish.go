package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/dayboard/internal/publisher"
	"github.com/jgoulah/dayboard/pkg/models"
)

var (
	publishSource string
	publishSince  string
	publishAll    bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish snapshots to MQTT / Home Assistant",
	Long: `Reads stored snapshots from the database and publishes them as retained MQTT
messages and/or Home Assistant entity states. By default only rows that were never
published (or were replaced since) are sent.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishSource, "source", "", "Source to publish (market, weather or biometric, default: all sources)")
	publishCmd.Flags().StringVar(&publishSince, "since", "", "With --all, only republish data since this date (YYYY-MM-DD or relative like 7d)")
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Force republish all records (ignore published flag)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	pub, err := publisher.New(cfg.MQTT, cfg.HomeAssistant)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	sources := models.Sources
	if publishSource != "" {
		source, err := models.ParseSource(publishSource)
		if err != nil {
			return err
		}
		sources = []models.Source{source}
	}

	since := "0000-01-01"
	if publishSince != "" {
		if since, err = parseDate(publishSince, time.Now(), cfg.Location()); err != nil {
			return fmt.Errorf("parsing --since date: %w", err)
		}
	}

	ctx := context.Background()
	totalPublished := 0
	for _, source := range sources {
		var res publisher.Result
		if publishAll {
			rows, err := db.ListSnapshots(ctx, source, since)
			if err != nil {
				return fmt.Errorf("listing data for %s: %w", source, err)
			}
			res = publisher.PublishRows(ctx, db, pub, rows, log)
		} else {
			if res, err = publisher.PublishPending(ctx, db, pub, source, log); err != nil {
				return err
			}
		}

		if res.Published+res.Failed == 0 {
			fmt.Printf("No data to publish for %s\n", source)
			continue
		}
		fmt.Printf("Successfully published %d/%d records for %s\n", res.Published, res.Published+res.Failed, source)
		totalPublished += res.Published
	}

	fmt.Printf("\nTotal records published: %d\n", totalPublished)
	return nil
}
