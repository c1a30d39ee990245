package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-json-experiment/json"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jgoulah/dayboard/internal/calendar"
	"github.com/jgoulah/dayboard/pkg/models"
)

var (
	listSince string
	listJSON  bool
)

var listCmd = &cobra.Command{
	Use:   "list [source]",
	Short: "List stored snapshots",
	Long: `Displays stored market, weather and biometric snapshots. Prints a table on a
terminal and one JSON object per line otherwise.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listSince, "since", "30d", "Only list data since this date (YYYY-MM-DD or relative like 7d)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print JSON lines even on a terminal")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	sources := models.Sources
	if len(args) == 1 {
		source, err := models.ParseSource(args[0])
		if err != nil {
			return err
		}
		sources = []models.Source{source}
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	since, err := parseDate(listSince, time.Now(), cfg.Location())
	if err != nil {
		return fmt.Errorf("parsing --since date: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	table := !listJSON && isatty.IsTerminal(os.Stdout.Fd())
	for _, source := range sources {
		data, err := db.ListSnapshots(context.Background(), source, since)
		if err != nil {
			return fmt.Errorf("listing data for %s: %w", source, err)
		}

		if !table {
			for _, s := range data {
				out, err := json.Marshal(s, json.Deterministic(true))
				if err != nil {
					return fmt.Errorf("encoding %s %s: %w", source, s.Key(), err)
				}
				fmt.Println(string(out))
			}
			continue
		}

		if len(data) == 0 {
			fmt.Printf("No %s data found since %s\n", source, since)
			continue
		}
		printTable(source, since, data)
	}

	return nil
}

func printTable(source models.Source, since string, data []models.Snapshot) {
	sinceTime, _ := calendar.Parse(since)
	fmt.Printf("\n%s snapshots since %s (%s):\n", source, since, humanize.Time(sinceTime))
	fmt.Println("--------------------------------------------------")
	fmt.Printf("%-20s  %10s  %14s\n", "Key", "State", "Detail")
	fmt.Println("--------------------------------------------------")
	for _, s := range data {
		fmt.Printf("%-20s  %10s  %14s\n", s.Key(), s.State(), detail(s))
	}
	fmt.Println("--------------------------------------------------")
	fmt.Printf("%s records\n", humanize.Comma(int64(len(data))))
}

// detail is a secondary value worth showing next to the headline state
func detail(s models.Snapshot) string {
	switch v := s.(type) {
	case models.MarketSnapshot:
		if v.Volume == nil {
			return "-"
		}
		return humanize.Commaf(*v.Volume) + " vol"
	case models.WeatherSnapshot:
		return strconv.FormatFloat(v.FeelsLikeMaxF, 'f', 0, 64) + "°F max"
	case models.BiometricSnapshot:
		if v.TotalSleepSeconds == nil {
			return "-"
		}
		return (time.Duration(*v.TotalSleepSeconds) * time.Second).String() + " slept"
	}
	return ""
}

// parseDate parses a date string in either YYYY-MM-DD format or relative format (e.g., "7d")
func parseDate(dateStr string, now time.Time, loc *time.Location) (string, error) {
	if _, err := calendar.Parse(dateStr); err == nil {
		return dateStr, nil
	}

	// Try relative format (e.g., "7d" for 7 days ago)
	if len(dateStr) > 1 && dateStr[len(dateStr)-1] == 'd' {
		if days, err := strconv.Atoi(dateStr[:len(dateStr)-1]); err == nil && days >= 0 {
			return calendar.AddDays(calendar.Day(now, loc), -days)
		}
	}

	return "", fmt.Errorf("invalid date format: %s (use YYYY-MM-DD or Nd for N days ago)", dateStr)
}
