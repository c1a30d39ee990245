package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jgoulah/dayboard/internal/aggregate"
	"github.com/jgoulah/dayboard/internal/dashboard"
)

var (
	dashboardUser string
	dashboardJSON bool
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Print the dashboard for a user",
	Long:  `Loads the same daily records and activity heatmaps the /api/dashboard endpoint serves.`,
	RunE:  runDashboard,
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardUser, "user", "", "User id (required)")
	dashboardCmd.Flags().BoolVar(&dashboardJSON, "json", false, "Print JSON even on a terminal")
	_ = dashboardCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	svc := &dashboard.Service{
		Store:       db,
		Location:    cfg.Location(),
		ChartDays:   cfg.GetChartDays(),
		HeatmapDays: cfg.GetHeatmapDays(),
		Log:         log,
	}
	d, err := svc.Load(context.Background(), dashboardUser)
	if err != nil {
		return err
	}

	if dashboardJSON || !isatty.IsTerminal(os.Stdout.Fd()) {
		out, err := json.Marshal(d, json.Deterministic(true), jsontext.WithIndent("  "))
		if err != nil {
			return fmt.Errorf("encoding dashboard: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	printDashboard(d)
	return nil
}

func printDashboard(d *dashboard.Dashboard) {
	fmt.Printf("Dashboard for %s\n\n", d.Today)
	if len(d.Unavailable) > 0 {
		fmt.Printf("Unavailable: %s\n\n", strings.Join(d.Unavailable, ", "))
	}

	for _, rec := range d.Daily {
		keys := make([]string, 0, len(rec.Fields))
		for k := range rec.Fields {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%g", k, rec.Fields[k])
		}
		fmt.Printf("%s  %s\n", rec.Date, strings.Join(parts, " "))
	}

	fmt.Println()
	printHeatmap("check-ins", d.Heatmaps.CheckIn)
	printHeatmap("scripture", d.Heatmaps.Scripture)
	printHeatmap("personal", d.Heatmaps.Personal)
}

func printHeatmap(name string, days []aggregate.ActivityDay) {
	var b strings.Builder
	for i, day := range days {
		if i > 0 && i%7 == 0 {
			b.WriteByte(' ')
		}
		if day.Active {
			b.WriteString("■")
		} else {
			b.WriteString("□")
		}
	}
	fmt.Printf("%-10s %s  %d/%d\n", name, b.String(), aggregate.ActiveCount(days), len(days))
}
