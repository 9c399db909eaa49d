package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID               uuid.UUID      `json:"id"`
	Email            string         `json:"email"`
	Name             sql.NullString `json:"name"`
	StripeCustomerID sql.NullString `json:"stripe_customer_id"`
	CreatedAt        time.Time      `json:"created_at"`
}

type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type UsageEvent struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	ActionType string    `json:"action_type"`
	CreatedAt  time.Time `json:"created_at"`
}

type SearchHistory struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Query       string    `json:"query"`
	Platform    string    `json:"platform"`
	ResultCount int32     `json:"result_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type SearchResult struct {
	ID        uuid.UUID       `json:"id"`
	HistoryID uuid.UUID       `json:"history_id"`
	Results   json.RawMessage `json:"results"`
	CreatedAt time.Time       `json:"created_at"`
}
