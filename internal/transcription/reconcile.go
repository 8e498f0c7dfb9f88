package transcription

import (
	"context"
	"log/slog"
	"time"

	"github.com/donorline/donorline/internal/database"
)

// MaxAge is how long a buffered transcript waits for its recording before
// being abandoned. Recording notifications that have not arrived within a
// day are not coming.
const MaxAge = 24 * time.Hour

// StartReconcileTicker runs a background goroutine that periodically retries
// buffered transcripts against the recordings table. Transcripts normally
// arrive after their recording, but the two provider callbacks carry no
// ordering guarantee; entries that raced ahead are applied here once the
// recording lands. Entries older than MaxAge are pruned. The goroutine stops
// when the provided context is cancelled.
func StartReconcileTicker(ctx context.Context, db *database.DB, interval time.Duration) {
	pending := database.NewPendingTranscriptionRepository(db)
	recordings := database.NewCallRecordingRepository(db)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reconcileOnce(ctx, pending, recordings)
			}
		}
	}()
}

func reconcileOnce(ctx context.Context, pending database.PendingTranscriptionRepository, recordings database.CallRecordingRepository) {
	entries, err := pending.List(ctx)
	if err != nil {
		slog.Error("transcription reconcile: failed to list buffer", "error", err)
		return
	}

	applied := 0
	for _, e := range entries {
		updated, err := recordings.AttachTranscription(ctx, e.ExternalRecordingID, e.TranscriptionText)
		if err != nil {
			slog.Error("transcription reconcile: attach failed",
				"recording_sid", e.ExternalRecordingID, "error", err)
			continue
		}
		if updated == 0 {
			// Recording still missing; count the attempt and try again
			// next tick.
			if err := pending.IncrementAttempts(ctx, e.ID); err != nil {
				slog.Warn("transcription reconcile: failed to bump attempts",
					"recording_sid", e.ExternalRecordingID, "error", err)
			}
			continue
		}

		applied++
		if err := pending.Delete(ctx, e.ID); err != nil {
			slog.Warn("transcription reconcile: failed to remove applied entry",
				"recording_sid", e.ExternalRecordingID, "error", err)
		}
	}

	abandoned, err := pending.DeleteOlderThan(ctx, time.Now().UTC().Add(-MaxAge))
	if err != nil {
		slog.Error("transcription reconcile: prune failed", "error", err)
		return
	}
	for _, sid := range abandoned {
		slog.Warn("transcription reconcile: abandoned transcript, recording never arrived",
			"recording_sid", sid)
	}

	if applied > 0 || len(abandoned) > 0 {
		slog.Info("transcription reconcile", "applied", applied, "abandoned", len(abandoned))
	}
}
