package storage

import (
	"context"
	"time"
)

const createWasteLog = `
INSERT INTO waste_logs (id, user_id, date, category, item_name, quantity_kg)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreateWasteLogParams struct {
	ID         string
	UserID     string
	Date       string
	Category   string
	ItemName   string
	QuantityKg float64
}

func (q *Queries) CreateWasteLog(ctx context.Context, arg CreateWasteLogParams) error {
	_, err := q.db.ExecContext(ctx, createWasteLog,
		arg.ID,
		arg.UserID,
		arg.Date,
		arg.Category,
		arg.ItemName,
		arg.QuantityKg,
	)
	return err
}

const wasteLogColumns = `id, user_id, date, category, item_name, quantity_kg, created_at, sync_status, synced_at`

const getWasteLog = `SELECT ` + wasteLogColumns + ` FROM waste_logs WHERE id = ?`

func (q *Queries) GetWasteLog(ctx context.Context, id string) (WasteLog, error) {
	row := q.db.QueryRowContext(ctx, getWasteLog, id)
	var i WasteLog
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Date,
		&i.Category,
		&i.ItemName,
		&i.QuantityKg,
		&i.CreatedAt,
		&i.SyncStatus,
		&i.SyncedAt,
	)
	return i, err
}

// Empty bounds are replaced by sentinels that sort outside any real date.
const listWasteLogs = `SELECT ` + wasteLogColumns + ` FROM waste_logs
WHERE user_id = ? AND date >= ? AND date <= ?
ORDER BY date ASC, created_at ASC, rowid ASC
LIMIT ?`

type ListWasteLogsParams struct {
	UserID   string
	FromDate string
	ToDate   string
	Limit    int64
}

func (q *Queries) ListWasteLogs(ctx context.Context, arg ListWasteLogsParams) ([]WasteLog, error) {
	rows, err := q.db.QueryContext(ctx, listWasteLogs, arg.UserID, arg.FromDate, arg.ToDate, arg.Limit)
	if err != nil {
		return nil, err
	}
	return scanWasteLogs(rows)
}

const listRecentWasteLogs = `SELECT ` + wasteLogColumns + ` FROM waste_logs
WHERE user_id = ?
ORDER BY date DESC, created_at DESC, rowid DESC
LIMIT ?`

type ListRecentWasteLogsParams struct {
	UserID string
	Limit  int64
}

func (q *Queries) ListRecentWasteLogs(ctx context.Context, arg ListRecentWasteLogsParams) ([]WasteLog, error) {
	rows, err := q.db.QueryContext(ctx, listRecentWasteLogs, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	return scanWasteLogs(rows)
}

const getPendingSyncWasteLogs = `SELECT ` + wasteLogColumns + ` FROM waste_logs
WHERE sync_status IN ('pending', 'error')
ORDER BY sync_status = 'error' ASC, created_at ASC, rowid ASC
LIMIT ?`

func (q *Queries) GetPendingSyncWasteLogs(ctx context.Context, limit int64) ([]WasteLog, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncWasteLogs, limit)
	if err != nil {
		return nil, err
	}
	return scanWasteLogs(rows)
}

const markWasteLogSynced = `UPDATE waste_logs SET sync_status = 'synced', synced_at = ? WHERE id = ?`

func (q *Queries) MarkWasteLogSynced(ctx context.Context, id string, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, markWasteLogSynced, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markWasteLogSyncError = `UPDATE waste_logs SET sync_status = 'error' WHERE id = ?`

func (q *Queries) MarkWasteLogSyncError(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markWasteLogSyncError, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const challengeColumns = `id, title, description, category, start_date, end_date, target_reduction_kg, updated_at`

const listChallenges = `SELECT ` + challengeColumns + ` FROM challenges ORDER BY start_date DESC, id ASC`

func (q *Queries) ListChallenges(ctx context.Context) ([]Challenge, error) {
	rows, err := q.db.QueryContext(ctx, listChallenges)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Challenge
	for rows.Next() {
		var i Challenge
		if err := rows.Scan(
			&i.ID,
			&i.Title,
			&i.Description,
			&i.Category,
			&i.StartDate,
			&i.EndDate,
			&i.TargetReductionKg,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getChallenge = `SELECT ` + challengeColumns + ` FROM challenges WHERE id = ?`

func (q *Queries) GetChallenge(ctx context.Context, id string) (Challenge, error) {
	row := q.db.QueryRowContext(ctx, getChallenge, id)
	var i Challenge
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Description,
		&i.Category,
		&i.StartDate,
		&i.EndDate,
		&i.TargetReductionKg,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertChallenge = `
INSERT INTO challenges (id, title, description, category, start_date, end_date, target_reduction_kg, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    title = excluded.title,
    description = excluded.description,
    category = excluded.category,
    start_date = excluded.start_date,
    end_date = excluded.end_date,
    target_reduction_kg = excluded.target_reduction_kg,
    updated_at = excluded.updated_at
`

type UpsertChallengeParams struct {
	ID                string
	Title             string
	Description       string
	Category          string
	StartDate         string
	EndDate           string
	TargetReductionKg float64
	UpdatedAt         time.Time
}

func (q *Queries) UpsertChallenge(ctx context.Context, arg UpsertChallengeParams) error {
	_, err := q.db.ExecContext(ctx, upsertChallenge,
		arg.ID,
		arg.Title,
		arg.Description,
		arg.Category,
		arg.StartDate,
		arg.EndDate,
		arg.TargetReductionKg,
		arg.UpdatedAt,
	)
	return err
}

const listParticipations = `
SELECT challenge_id, user_id, joined_at FROM challenge_participants
WHERE user_id = ?
ORDER BY challenge_id ASC
`

func (q *Queries) ListParticipations(ctx context.Context, userID string) ([]ChallengeParticipant, error) {
	rows, err := q.db.QueryContext(ctx, listParticipations, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ChallengeParticipant
	for rows.Next() {
		var i ChallengeParticipant
		if err := rows.Scan(&i.ChallengeID, &i.UserID, &i.JoinedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertParticipation = `
INSERT INTO challenge_participants (challenge_id, user_id, joined_at)
VALUES (?, ?, ?)
ON CONFLICT (challenge_id, user_id) DO NOTHING
`

type InsertParticipationParams struct {
	ChallengeID string
	UserID      string
	JoinedAt    time.Time
}

// InsertParticipation returns 0 affected rows when the pair already exists.
func (q *Queries) InsertParticipation(ctx context.Context, arg InsertParticipationParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertParticipation, arg.ChallengeID, arg.UserID, arg.JoinedAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteParticipation = `DELETE FROM challenge_participants WHERE challenge_id = ? AND user_id = ?`

func (q *Queries) DeleteParticipation(ctx context.Context, challengeID, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteParticipation, challengeID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

func scanWasteLogs(rows rowScanner) ([]WasteLog, error) {
	defer rows.Close()
	var items []WasteLog
	for rows.Next() {
		var i WasteLog
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Date,
			&i.Category,
			&i.ItemName,
			&i.QuantityKg,
			&i.CreatedAt,
			&i.SyncStatus,
			&i.SyncedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
