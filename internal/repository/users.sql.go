package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const getUserByID = `-- name: GetUserByID :one
SELECT id, email, name, stripe_customer_id, created_at FROM users
WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.StripeCustomerID,
		&i.CreatedAt,
	)
	return i, err
}

const getUserByStripeCustomerID = `-- name: GetUserByStripeCustomerID :one
SELECT id, email, name, stripe_customer_id, created_at FROM users
WHERE stripe_customer_id = $1
`

func (q *Queries) GetUserByStripeCustomerID(ctx context.Context, stripeCustomerID sql.NullString) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByStripeCustomerID, stripeCustomerID)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.StripeCustomerID,
		&i.CreatedAt,
	)
	return i, err
}

const updateUserStripeCustomer = `-- name: UpdateUserStripeCustomer :exec
UPDATE users SET stripe_customer_id = $2
WHERE id = $1
`

type UpdateUserStripeCustomerParams struct {
	ID               uuid.UUID      `json:"id"`
	StripeCustomerID sql.NullString `json:"stripe_customer_id"`
}

func (q *Queries) UpdateUserStripeCustomer(ctx context.Context, arg UpdateUserStripeCustomerParams) error {
	_, err := q.db.ExecContext(ctx, updateUserStripeCustomer, arg.ID, arg.StripeCustomerID)
	return err
}

const getSessionWithUser = `-- name: GetSessionWithUser :one
SELECT s.id, s.user_id, s.token_hash, s.expires_at, s.created_at,
       u.email, u.name, u.stripe_customer_id, u.created_at AS user_created_at
FROM sessions s
JOIN users u ON u.id = s.user_id
WHERE s.token_hash = $1 AND s.expires_at > $2
`

type GetSessionWithUserParams struct {
	TokenHash string    `json:"token_hash"`
	Now       time.Time `json:"now"`
}

type GetSessionWithUserRow struct {
	ID               uuid.UUID      `json:"id"`
	UserID           uuid.UUID      `json:"user_id"`
	TokenHash        string         `json:"token_hash"`
	ExpiresAt        time.Time      `json:"expires_at"`
	CreatedAt        time.Time      `json:"created_at"`
	Email            string         `json:"email"`
	Name             sql.NullString `json:"name"`
	StripeCustomerID sql.NullString `json:"stripe_customer_id"`
	UserCreatedAt    time.Time      `json:"user_created_at"`
}

func (q *Queries) GetSessionWithUser(ctx context.Context, arg GetSessionWithUserParams) (GetSessionWithUserRow, error) {
	row := q.db.QueryRowContext(ctx, getSessionWithUser, arg.TokenHash, arg.Now)
	var i GetSessionWithUserRow
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.TokenHash,
		&i.ExpiresAt,
		&i.CreatedAt,
		&i.Email,
		&i.Name,
		&i.StripeCustomerID,
		&i.UserCreatedAt,
	)
	return i, err
}

const deleteExpiredSessions = `-- name: DeleteExpiredSessions :execrows
DELETE FROM sessions WHERE expires_at <= $1
`

func (q *Queries) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpiredSessions, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
