package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/cobra"

	"github.com/jgoulah/dayboard/internal/calendar"
	"github.com/jgoulah/dayboard/internal/ingest"
	"github.com/jgoulah/dayboard/internal/publisher"
	"github.com/jgoulah/dayboard/pkg/models"
)

var ingestPublish bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [market|weather|biometric|all]",
	Short: "Run ingestion jobs once",
	Long: `Fetches today's data for one source (or all of them, concurrently), normalizes
it and upserts it by natural key. Re-running a job for the same day replaces the
stored rows. Each job's summary is printed as JSON; the command exits non-zero
when any job failed.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"market", "weather", "biometric", "all"},
	RunE:      runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestPublish, "publish", false, "Publish ingested rows to MQTT / Home Assistant")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	fmt.Fprintf(os.Stderr, "=== Ingest started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	sources := models.Sources
	if len(args) == 1 && args[0] != "all" {
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

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var pub *publisher.Publisher
	if ingestPublish {
		if pub, err = publisher.New(cfg.MQTT, cfg.HomeAssistant); err != nil {
			return fmt.Errorf("creating publisher: %w", err)
		}
		defer pub.Close()
	}

	ctx := context.Background()
	deps := ingest.Deps{Config: cfg, Store: db, Log: log}

	// a job that cannot be built still reports a summary
	var summaries []ingest.Summary
	var jobs []ingest.Job
	for _, source := range sources {
		job, err := ingest.New(source, deps)
		if err != nil {
			summaries = append(summaries, ingest.Failure(source, calendar.Today(nil, cfg.Location()), err))
			continue
		}
		jobs = append(jobs, job)
	}
	summaries = append(summaries, ingest.RunAll(ctx, jobs...)...)

	failed := 0
	for _, s := range summaries {
		if !s.OK() {
			failed++
		}
		if pub != nil && s.OK() && len(s.Rows) > 0 {
			res := publisher.PublishRows(ctx, db, pub, s.Rows, log)
			fmt.Fprintf(os.Stderr, "Published %d/%d %s rows\n", res.Published, len(s.Rows), s.Source)
		}
		if err := printSummary(s); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d ingestion jobs failed", failed, len(summaries))
	}
	return nil
}

type summaryLine struct {
	ingest.Summary `json:",inline"`
	Error          string  `json:"error,omitempty"`
	Duration       float64 `json:"duration_seconds"`
}

func printSummary(s ingest.Summary) error {
	line := summaryLine{Summary: s, Duration: s.Duration.Seconds()}
	if s.Err != nil {
		line.Error = s.Err.Error()
	}
	out, err := json.Marshal(line, json.Deterministic(true), jsontext.WithIndent("  "))
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
