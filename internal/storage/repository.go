package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"wastewise/internal/core"
	"wastewise/internal/ports"

	_ "modernc.org/sqlite"
)

const (
	// bounds used when a LogFilter leaves a side of the range open
	minDateKey = "0000-00-00"
	maxDateKey = "9999-99-99"
)

type SQLiteRepository struct {
	db            *sql.DB
	queries       *Queries
	now           func() time.Time
	schemaVersion uint
}

var _ ports.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:            db,
		queries:       New(db),
		now:           time.Now,
		schemaVersion: version,
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SchemaVersion is the migration version the database was brought to on open.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// AppendEntry implements ports.LogWriter. New rows start as pending sync.
func (r *SQLiteRepository) AppendEntry(ctx context.Context, e core.WasteLogEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	err := r.queries.CreateWasteLog(ctx, CreateWasteLogParams{
		ID:         e.ID,
		UserID:     e.UserID,
		Date:       e.Date.String(),
		Category:   e.Category.String(),
		ItemName:   e.ItemName,
		QuantityKg: e.Quantity,
	})
	if err != nil {
		return fmt.Errorf("create waste log: %w", err)
	}

	slog.InfoContext(ctx, "Waste log saved to SQLite",
		"id", e.ID,
		"user_id", e.UserID,
		"category", e.Category,
		"quantity_kg", e.Quantity,
		"date", e.Date.String())

	return nil
}

// ListEntries implements ports.LogReader
func (r *SQLiteRepository) ListEntries(ctx context.Context, userID string, f ports.LogFilter) ([]core.WasteLogEntry, error) {
	params := ListWasteLogsParams{
		UserID:   userID,
		FromDate: minDateKey,
		ToDate:   maxDateKey,
		Limit:    -1, // sqlite: no limit
	}
	if !f.From.IsZero() {
		params.FromDate = f.From.String()
	}
	if !f.To.IsZero() {
		params.ToDate = f.To.String()
	}
	if f.Limit > 0 {
		params.Limit = int64(f.Limit)
	}

	rows, err := r.queries.ListWasteLogs(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list waste logs: %w", err)
	}
	return toEntries(rows)
}

// RecentEntries implements ports.LogReader
func (r *SQLiteRepository) RecentEntries(ctx context.Context, userID string, limit int) ([]core.WasteLogEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.queries.ListRecentWasteLogs(ctx, ListRecentWasteLogsParams{UserID: userID, Limit: int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("list recent waste logs: %w", err)
	}
	return toEntries(rows)
}

// GetEntry retrieves a single entry by ID.
func (r *SQLiteRepository) GetEntry(ctx context.Context, id string) (core.WasteLogEntry, error) {
	row, err := r.queries.GetWasteLog(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.WasteLogEntry{}, fmt.Errorf("%w: %s", ports.ErrEntryNotFound, id)
	}
	if err != nil {
		return core.WasteLogEntry{}, fmt.Errorf("get waste log by id: %w", err)
	}
	return toEntry(row)
}

// Sync states stored in waste_logs.sync_status.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// SyncStatus returns the sync state of one entry.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id string) (string, error) {
	row, err := r.queries.GetWasteLog(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ports.ErrEntryNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("get waste log sync status: %w", err)
	}
	return row.SyncStatus, nil
}

// PendingSyncEntry represents minimal data needed for sync queue messages
type PendingSyncEntry struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// PendingSyncEntries returns entries that still need to reach the spreadsheet.
// Never-attempted entries come first, then earlier failures, oldest first.
func (r *SQLiteRepository) PendingSyncEntries(ctx context.Context, limit int) ([]PendingSyncEntry, error) {
	rows, err := r.queries.GetPendingSyncWasteLogs(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync waste logs: %w", err)
	}

	out := make([]PendingSyncEntry, len(rows))
	for i, row := range rows {
		out[i] = PendingSyncEntry{ID: row.ID, UserID: row.UserID, CreatedAt: row.CreatedAt}
	}
	return out, nil
}

// MarkSynced marks an entry as successfully synced
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	n, err := r.queries.MarkWasteLogSynced(ctx, id, r.now().UTC())
	if err != nil {
		return fmt.Errorf("mark waste log synced: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ports.ErrEntryNotFound, id)
	}

	slog.InfoContext(ctx, "Waste log marked as synced", "id", id)
	return nil
}

// MarkSyncError marks an entry as having sync errors
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	n, err := r.queries.MarkWasteLogSyncError(ctx, id)
	if err != nil {
		return fmt.Errorf("mark waste log sync error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ports.ErrEntryNotFound, id)
	}

	slog.WarnContext(ctx, "Waste log marked with sync error", "id", id)
	return nil
}

// ListChallenges implements ports.ChallengeReader
func (r *SQLiteRepository) ListChallenges(ctx context.Context) ([]core.Challenge, error) {
	rows, err := r.queries.ListChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	out := make([]core.Challenge, 0, len(rows))
	for _, row := range rows {
		c, err := toChallenge(row)
		if err != nil {
			// keep the rest of the catalogue usable
			slog.WarnContext(ctx, "Skipping unreadable challenge row", "id", row.ID, "error", err)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// GetChallenge implements ports.ChallengeReader
func (r *SQLiteRepository) GetChallenge(ctx context.Context, id string) (core.Challenge, error) {
	row, err := r.queries.GetChallenge(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Challenge{}, fmt.Errorf("%w: %s", ports.ErrChallengeNotFound, id)
	}
	if err != nil {
		return core.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	return toChallenge(row)
}

// UpsertChallenges replaces catalogue rows by ID inside one transaction.
func (r *SQLiteRepository) UpsertChallenges(ctx context.Context, challenges []core.Challenge) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin challenge upsert: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	now := r.now().UTC()
	for _, c := range challenges {
		err := q.UpsertChallenge(ctx, UpsertChallengeParams{
			ID:                c.ID,
			Title:             c.Title,
			Description:       c.Description,
			Category:          c.Category.String(),
			StartDate:         c.StartDate.String(),
			EndDate:           c.EndDate.String(),
			TargetReductionKg: c.TargetReduction,
			UpdatedAt:         now,
		})
		if err != nil {
			return fmt.Errorf("upsert challenge %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit challenge upsert: %w", err)
	}

	slog.InfoContext(ctx, "Challenge catalogue updated", "count", len(challenges))
	return nil
}

// ListParticipations implements ports.ParticipationStore
func (r *SQLiteRepository) ListParticipations(ctx context.Context, userID string) ([]core.Participation, error) {
	rows, err := r.queries.ListParticipations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	out := make([]core.Participation, len(rows))
	for i, row := range rows {
		out[i] = core.Participation{ChallengeID: row.ChallengeID, UserID: row.UserID, JoinedAt: row.JoinedAt}
	}
	return out, nil
}

// Join implements ports.ParticipationStore
func (r *SQLiteRepository) Join(ctx context.Context, p core.Participation) error {
	if _, err := r.GetChallenge(ctx, p.ChallengeID); err != nil {
		return err
	}
	n, err := r.queries.InsertParticipation(ctx, InsertParticipationParams{
		ChallengeID: p.ChallengeID,
		UserID:      p.UserID,
		JoinedAt:    p.JoinedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert participation: %w", err)
	}
	if n == 0 {
		return ports.ErrAlreadyParticipating
	}
	return nil
}

// Leave implements ports.ParticipationStore
func (r *SQLiteRepository) Leave(ctx context.Context, challengeID, userID string) error {
	n, err := r.queries.DeleteParticipation(ctx, challengeID, userID)
	if err != nil {
		return fmt.Errorf("delete participation: %w", err)
	}
	if n == 0 {
		return ports.ErrNotParticipating
	}
	return nil
}

func toEntries(rows []WasteLog) ([]core.WasteLogEntry, error) {
	out := make([]core.WasteLogEntry, 0, len(rows))
	for _, row := range rows {
		e, err := toEntry(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func toEntry(row WasteLog) (core.WasteLogEntry, error) {
	d, err := core.ParseDate(row.Date)
	if err != nil {
		return core.WasteLogEntry{}, fmt.Errorf("waste log %s: %w", row.ID, err)
	}
	return core.WasteLogEntry{
		ID:       row.ID,
		UserID:   row.UserID,
		Date:     d,
		Category: core.Category(row.Category),
		ItemName: row.ItemName,
		Quantity: row.QuantityKg,
	}, nil
}

func toChallenge(row Challenge) (core.Challenge, error) {
	cat, err := core.ParseCategory(row.Category)
	if err != nil {
		return core.Challenge{}, err
	}
	start, err := core.ParseDate(row.StartDate)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("start date: %w", err)
	}
	end, err := core.ParseDate(row.EndDate)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("end date: %w", err)
	}
	return core.Challenge{
		ID:              row.ID,
		Title:           row.Title,
		Description:     row.Description,
		Category:        cat,
		StartDate:       start,
		EndDate:         end,
		TargetReduction: row.TargetReductionKg,
	}, nil
}
