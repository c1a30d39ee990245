package publisher

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jgoulah/dayboard/pkg/models"
)

// Sender publishes a single snapshot
type Sender interface {
	Publish(ctx context.Context, s models.Snapshot) error
}

// Marker records that a snapshot was published
type Marker interface {
	MarkPublished(ctx context.Context, s models.Snapshot) error
}

// PendingStore lists snapshots that still need publishing
type PendingStore interface {
	Marker
	ListUnpublished(ctx context.Context, source models.Source) ([]models.Snapshot, error)
}

// Result counts the outcome of a publish pass
type Result struct {
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// PublishPending publishes every unpublished snapshot of source and marks it.
// A failed row stays unpublished and is retried on the next pass.
func PublishPending(ctx context.Context, store PendingStore, pub Sender, source models.Source, log logrus.FieldLogger) (Result, error) {
	rows, err := store.ListUnpublished(ctx, source)
	if err != nil {
		return Result{}, fmt.Errorf("listing unpublished %s snapshots: %w", source, err)
	}
	return PublishRows(ctx, store, pub, rows, log), nil
}

// PublishRows publishes rows in order, marking each one that succeeds
func PublishRows(ctx context.Context, store Marker, pub Sender, rows []models.Snapshot, log logrus.FieldLogger) Result {
	var res Result
	for _, s := range rows {
		fields := logrus.Fields{"source": s.Source(), "key": s.Key()}
		if err := pub.Publish(ctx, s); err != nil {
			log.WithFields(fields).WithError(err).Warn("publish failed")
			res.Failed++
			continue
		}
		if err := store.MarkPublished(ctx, s); err != nil {
			log.WithFields(fields).WithError(err).Warn("published but could not mark row")
		}
		res.Published++
	}
	return res
}
