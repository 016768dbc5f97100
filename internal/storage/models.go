package storage

import (
	"database/sql"
	"time"
)

type WasteLog struct {
	ID         string
	UserID     string
	Date       string
	Category   string
	ItemName   string
	QuantityKg float64
	CreatedAt  time.Time
	SyncStatus string
	SyncedAt   sql.NullTime
}

type Challenge struct {
	ID                string
	Title             string
	Description       string
	Category          string
	StartDate         string
	EndDate           string
	TargetReductionKg float64
	UpdatedAt         time.Time
}

type ChallengeParticipant struct {
	ChallengeID string
	UserID      string
	JoinedAt    time.Time
}
