package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jgoulah/dayboard/internal/calendar"
	"github.com/jgoulah/dayboard/internal/fetcher"
	"github.com/jgoulah/dayboard/pkg/models"
)

// BiometricDayer fetches the merged biometric summary for one date
type BiometricDayer interface {
	Day(ctx context.Context, date string) fetcher.BiometricDay
}

// BiometricStore writes biometric snapshots
type BiometricStore interface {
	UpsertBiometricSnapshot(ctx context.Context, b models.BiometricSnapshot) error
}

// BiometricJob ingests today's sleep, readiness and stress summary
type BiometricJob struct {
	Client   BiometricDayer
	Store    BiometricStore
	Location *time.Location
	Now      func() time.Time
	Log      logrus.FieldLogger
	Metrics  *Metrics
}

func (j *BiometricJob) Source() models.Source { return models.SourceBiometric }

// Run fetches and stores the day's biometric row. Sub-endpoints that fail
// leave their fields null; if all of them fail nothing is written, since an
// all-null row would replace whatever was stored for the day.
func (j *BiometricJob) Run(ctx context.Context) Summary {
	r := newRun(models.SourceBiometric, calendar.Today(j.Now, j.Location), j.Log)
	s := j.run(ctx, r)
	j.Metrics.observe(s)
	return s
}

func (j *BiometricJob) run(ctx context.Context, r *run) Summary {
	r.enter(StatusFetching)
	day := j.Client.Day(ctx, r.summary.Date)

	r.enter(StatusNormalizing)
	if day.Empty() {
		return r.fail(fmt.Errorf("all biometric endpoints failed: %w", fetcher.ErrNoData))
	}
	row := day.Snapshot
	row.Date = r.summary.Date

	r.enter(StatusUpserting)
	if err := j.Store.UpsertBiometricSnapshot(ctx, row); err != nil {
		return r.fail(fmt.Errorf("storing biometric snapshot: %w", err))
	}
	return r.succeed([]models.Snapshot{row}, day.Missing)
}
