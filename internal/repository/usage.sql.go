package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const countUsageEventsInPeriod = `-- name: CountUsageEventsInPeriod :one
SELECT COUNT(*) FROM usage_events
WHERE user_id = $1
  AND action_type = $2
  AND created_at >= $3
  AND created_at < $4
`

type CountUsageEventsInPeriodParams struct {
	UserID     uuid.UUID `json:"user_id"`
	ActionType string    `json:"action_type"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

func (q *Queries) CountUsageEventsInPeriod(ctx context.Context, arg CountUsageEventsInPeriodParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUsageEventsInPeriod,
		arg.UserID,
		arg.ActionType,
		arg.Start,
		arg.End,
	)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createUsageEvent = `-- name: CreateUsageEvent :one
INSERT INTO usage_events (id, user_id, action_type, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, action_type, created_at
`

type CreateUsageEventParams struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	ActionType string    `json:"action_type"`
	CreatedAt  time.Time `json:"created_at"`
}

func (q *Queries) CreateUsageEvent(ctx context.Context, arg CreateUsageEventParams) (UsageEvent, error) {
	row := q.db.QueryRowContext(ctx, createUsageEvent,
		arg.ID,
		arg.UserID,
		arg.ActionType,
		arg.CreatedAt,
	)
	var i UsageEvent
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.ActionType,
		&i.CreatedAt,
	)
	return i, err
}
