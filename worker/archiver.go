package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/fire-radar/internal/dedupe"
	"github.com/DeafMist/fire-radar/internal/models"
	"github.com/DeafMist/fire-radar/internal/processing"
	"github.com/DeafMist/fire-radar/internal/validate"
)

type alertIndexer interface {
	IndexAlert(ctx context.Context, doc models.ArchivedAlert) error
}

// archiver turns alert events into archive documents.
type archiver struct {
	log              *slog.Logger
	index            alertIndexer
	seen             *dedupe.Window
	keywordLimit     int
	keywordMinLength int
	now              func() time.Time
}

func (a *archiver) handle(ctx context.Context, msg kafka.Message) error {
	var evt models.AlertEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode alert event: %w", err)
	}
	if evt.Event != models.EventNewAlert {
		a.log.Debug("ignoring event", slog.String("event", evt.Event))
		return nil
	}

	rec := evt.Record
	if err := validate.Record(rec); err != nil {
		return err
	}

	if a.seen.Seen(rec.ID) {
		a.log.Debug("duplicate alert", slog.String("id", rec.ID))
		return nil
	}

	doc := models.ArchivedAlert{
		NewsRecord: rec,
		Keywords: processing.ExtractKeywords(
			rec.Title+" "+processing.CleanText(rec.Content),
			a.keywordLimit,
			a.keywordMinLength,
		),
		ArchivedAt: a.now().UTC(),
	}

	if err := a.index.IndexAlert(ctx, doc); err != nil {
		return err
	}

	a.seen.Mark(rec.ID)
	a.log.Info("archived alert",
		slog.String("id", rec.ID),
		slog.String("category", string(rec.Category)),
		slog.String("location", rec.Location),
	)
	return nil
}
