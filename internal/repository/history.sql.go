package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

const createSearchHistory = `-- name: CreateSearchHistory :one
INSERT INTO search_history (id, user_id, query, platform, result_count)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, query, platform, result_count, created_at
`

type CreateSearchHistoryParams struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Query       string    `json:"query"`
	Platform    string    `json:"platform"`
	ResultCount int32     `json:"result_count"`
}

func (q *Queries) CreateSearchHistory(ctx context.Context, arg CreateSearchHistoryParams) (SearchHistory, error) {
	row := q.db.QueryRowContext(ctx, createSearchHistory,
		arg.ID,
		arg.UserID,
		arg.Query,
		arg.Platform,
		arg.ResultCount,
	)
	var i SearchHistory
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Query,
		&i.Platform,
		&i.ResultCount,
		&i.CreatedAt,
	)
	return i, err
}

const createSearchResults = `-- name: CreateSearchResults :exec
INSERT INTO search_results (id, history_id, results)
VALUES ($1, $2, $3)
`

type CreateSearchResultsParams struct {
	ID        uuid.UUID       `json:"id"`
	HistoryID uuid.UUID       `json:"history_id"`
	Results   json.RawMessage `json:"results"`
}

func (q *Queries) CreateSearchResults(ctx context.Context, arg CreateSearchResultsParams) error {
	_, err := q.db.ExecContext(ctx, createSearchResults, arg.ID, arg.HistoryID, []byte(arg.Results))
	return err
}

const listSearchHistoryByUser = `-- name: ListSearchHistoryByUser :many
SELECT id, user_id, query, platform, result_count, created_at FROM search_history
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`

type ListSearchHistoryByUserParams struct {
	UserID uuid.UUID `json:"user_id"`
	Limit  int32     `json:"limit"`
}

func (q *Queries) ListSearchHistoryByUser(ctx context.Context, arg ListSearchHistoryByUserParams) ([]SearchHistory, error) {
	rows, err := q.db.QueryContext(ctx, listSearchHistoryByUser, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SearchHistory
	for rows.Next() {
		var i SearchHistory
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Query,
			&i.Platform,
			&i.ResultCount,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getSearchHistoryByIDAndUser = `-- name: GetSearchHistoryByIDAndUser :one
SELECT id, user_id, query, platform, result_count, created_at FROM search_history
WHERE id = $1 AND user_id = $2
`

type GetSearchHistoryByIDAndUserParams struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
}

func (q *Queries) GetSearchHistoryByIDAndUser(ctx context.Context, arg GetSearchHistoryByIDAndUserParams) (SearchHistory, error) {
	row := q.db.QueryRowContext(ctx, getSearchHistoryByIDAndUser, arg.ID, arg.UserID)
	var i SearchHistory
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Query,
		&i.Platform,
		&i.ResultCount,
		&i.CreatedAt,
	)
	return i, err
}

const getSearchResultsByHistoryID = `-- name: GetSearchResultsByHistoryID :one
SELECT id, history_id, results, created_at FROM search_results
WHERE history_id = $1
`

func (q *Queries) GetSearchResultsByHistoryID(ctx context.Context, historyID uuid.UUID) (SearchResult, error) {
	row := q.db.QueryRowContext(ctx, getSearchResultsByHistoryID, historyID)
	var i SearchResult
	var results []byte
	err := row.Scan(
		&i.ID,
		&i.HistoryID,
		&results,
		&i.CreatedAt,
	)
	i.Results = results
	return i, err
}

const deleteSearchHistoryByIDAndUser = `-- name: DeleteSearchHistoryByIDAndUser :execrows
DELETE FROM search_history
WHERE id = $1 AND user_id = $2
`

type DeleteSearchHistoryByIDAndUserParams struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
}

func (q *Queries) DeleteSearchHistoryByIDAndUser(ctx context.Context, arg DeleteSearchHistoryByIDAndUserParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSearchHistoryByIDAndUser, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteSearchHistoryByUser = `-- name: DeleteSearchHistoryByUser :execrows
DELETE FROM search_history
WHERE user_id = $1
`

func (q *Queries) DeleteSearchHistoryByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSearchHistoryByUser, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
