package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wastewise/internal/amqp"
	"wastewise/internal/core"
	wlog "wastewise/internal/log"
	"wastewise/internal/ports"
	"wastewise/internal/storage"
)

// startupBatchMultiplier widens the first pending sweep after a restart.
const startupBatchMultiplier = 5

// EntryStore is the sync bookkeeping the worker needs from storage.
type EntryStore interface {
	GetEntry(ctx context.Context, id string) (core.WasteLogEntry, error)
	SyncStatus(ctx context.Context, id string) (string, error)
	PendingSyncEntries(ctx context.Context, limit int) ([]storage.PendingSyncEntry, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string) error
}

// ChallengeStore receives the refreshed challenge catalogue.
type ChallengeStore interface {
	UpsertChallenges(ctx context.Context, challenges []core.Challenge) error
}

// SyncWorker exports waste log entries from SQLite to the spreadsheet and
// mirrors the spreadsheet's challenge catalogue back into SQLite.
type SyncWorker struct {
	entries    EntryStore
	challenges ChallengeStore
	exporter   ports.LogExporter
	source     ports.ChallengeSource
	batchSize  int
}

func NewSyncWorker(entries EntryStore, challenges ChallengeStore, exporter ports.LogExporter, source ports.ChallengeSource, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		entries:    entries,
		challenges: challenges,
		exporter:   exporter,
		source:     source,
		batchSize:  batchSize,
	}
}

// HandleLogSync processes one sync message from AMQP. Messages for entries
// that no longer exist or are already exported are acknowledged as no-ops.
func (w *SyncWorker) HandleLogSync(ctx context.Context, msg *amqp.LogSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		wlog.FieldEntryID, msg.EntryID,
		wlog.FieldUserID, msg.UserID)

	err := w.syncEntry(ctx, msg.EntryID)
	if errors.Is(err, ports.ErrEntryNotFound) {
		slog.WarnContext(ctx, "Sync message for unknown entry, dropping",
			wlog.FieldEntryID, msg.EntryID)
		return nil
	}
	return err
}

// ProcessPendingEntries exports entries whose sync message was lost or whose
// previous export failed.
func (w *SyncWorker) ProcessPendingEntries(ctx context.Context) error {
	_, _, err := w.processPending(ctx, w.batchSize)
	return err
}

// StartupSyncCheck runs a wider pending sweep to recover from worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.processPending(ctx, w.batchSize*startupBatchMultiplier)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.entries.PendingSyncEntries(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending entries: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending entries", "count", len(pending))

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return synced, failed, err
		}
		if err := w.syncEntry(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync entry",
				wlog.FieldEntryID, p.ID,
				wlog.FieldUserID, p.UserID,
				wlog.FieldError, err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (w *SyncWorker) syncEntry(ctx context.Context, id string) error {
	status, err := w.entries.SyncStatus(ctx, id)
	if err != nil {
		return err
	}
	if status == storage.SyncSynced {
		slog.DebugContext(ctx, "Entry already synced", wlog.FieldEntryID, id)
		return nil
	}

	entry, err := w.entries.GetEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("get entry from storage: %w", err)
	}

	ref, err := w.exporter.ExportEntry(ctx, entry)
	if err != nil {
		if markErr := w.entries.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error",
				wlog.FieldEntryID, id,
				wlog.FieldError, markErr)
		}
		return fmt.Errorf("export entry to sheets: %w", err)
	}

	if err := w.entries.MarkSynced(ctx, id); err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}

	slog.InfoContext(ctx, "Synced entry to Google Sheets",
		wlog.FieldEntryID, id,
		wlog.FieldSheetsRef, ref)
	return nil
}

// RefreshChallenges pulls the catalogue from the spreadsheet and upserts it.
// Challenges removed from the sheet are kept so existing participations stay
// valid.
func (w *SyncWorker) RefreshChallenges(ctx context.Context) error {
	if w.source == nil || w.challenges == nil {
		return nil
	}

	challenges, err := w.source.FetchChallenges(ctx)
	if err != nil {
		return fmt.Errorf("fetch challenges: %w", err)
	}
	if len(challenges) == 0 {
		slog.WarnContext(ctx, "Challenge catalogue is empty, keeping current challenges")
		return nil
	}

	if err := w.challenges.UpsertChallenges(ctx, challenges); err != nil {
		return fmt.Errorf("upsert challenges: %w", err)
	}

	slog.InfoContext(ctx, "Challenge catalogue refreshed", "count", len(challenges))
	return nil
}
