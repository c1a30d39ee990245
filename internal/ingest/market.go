package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jgoulah/dayboard/internal/calendar"
	"github.com/jgoulah/dayboard/internal/config"
	"github.com/jgoulah/dayboard/internal/fetcher"
	"github.com/jgoulah/dayboard/pkg/models"
)

// PreviousCloser fetches one ticker's latest completed bar
type PreviousCloser interface {
	PreviousClose(ctx context.Context, ticker, symbol string) (models.MarketSnapshot, error)
}

// MarketStore writes market snapshots
type MarketStore interface {
	UpsertMarketSnapshots(ctx context.Context, rows []models.MarketSnapshot) error
}

// MarketJob ingests the previous close of every configured symbol
type MarketJob struct {
	Client   PreviousCloser
	Store    MarketStore
	Symbols  []config.Symbol
	Location *time.Location
	Now      func() time.Time
	Log      logrus.FieldLogger
	Metrics  *Metrics
}

func (j *MarketJob) Source() models.Source { return models.SourceMarket }

// Run fetches every ticker in parallel. A ticker that fails is left out; the
// rest are written in one batch.
func (j *MarketJob) Run(ctx context.Context) Summary {
	r := newRun(models.SourceMarket, calendar.Today(j.Now, j.Location), j.Log)
	s := j.run(ctx, r)
	j.Metrics.observe(s)
	return s
}

func (j *MarketJob) run(ctx context.Context, r *run) Summary {
	r.enter(StatusFetching)
	bars := make([]models.MarketSnapshot, len(j.Symbols))
	errs := make([]error, len(j.Symbols))
	var g errgroup.Group
	for i, sym := range j.Symbols {
		i, sym := i, sym
		g.Go(func() error {
			bars[i], errs[i] = j.Client.PreviousClose(ctx, sym.Ticker, sym.Symbol)
			return nil
		})
	}
	_ = g.Wait()

	r.enter(StatusNormalizing)
	var (
		rows     []models.MarketSnapshot
		failed   []string
		upstream error
	)
	for i, sym := range j.Symbols {
		if err := errs[i]; err != nil {
			r.log.WithField("symbol", sym.Symbol).WithError(err).Warn("ticker skipped")
			failed = append(failed, sym.Ticker)
			if !errors.Is(err, fetcher.ErrNoData) && upstream == nil {
				upstream = err
			}
			continue
		}
		rows = append(rows, bars[i])
	}

	if len(rows) == 0 {
		// every ticker answered with an empty bar set: nothing traded
		if upstream == nil {
			return r.noData("No data fetched, market may be closed")
		}
		return r.fail(fmt.Errorf("no market rows fetched: %w", upstream))
	}

	r.enter(StatusUpserting)
	if err := j.Store.UpsertMarketSnapshots(ctx, rows); err != nil {
		return r.fail(fmt.Errorf("storing market snapshots: %w", err))
	}

	out := make([]models.Snapshot, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return r.succeed(out, failed)
}
