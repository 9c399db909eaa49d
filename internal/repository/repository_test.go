package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Queries, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestCountUsageEventsInPeriod(t *testing.T) {
	q, mock := newMock(t)
	userID := uuid.New()
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM usage_events`).
		WithArgs(userID, "instagram_search", start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := q.CountUsageEventsInPeriod(context.Background(), CountUsageEventsInPeriodParams{
		UserID:     userID,
		ActionType: "instagram_search",
		Start:      start,
		End:        end,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUsageEvent(t *testing.T) {
	q, mock := newMock(t)
	id, userID := uuid.New(), uuid.New()
	at := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO usage_events`).
		WithArgs(id, userID, "click", at).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "action_type", "created_at"}).
			AddRow(id.String(), userID.String(), "click", at))

	ev, err := q.CreateUsageEvent(context.Background(), CreateUsageEventParams{
		ID: id, UserID: userID, ActionType: "click", CreatedAt: at,
	})
	require.NoError(t, err)
	assert.Equal(t, id, ev.ID)
	assert.Equal(t, "click", ev.ActionType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSessionWithUser(t *testing.T) {
	q, mock := newMock(t)
	sessionID, userID := uuid.New(), uuid.New()
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM sessions s\s+JOIN users u`).
		WithArgs("hash", now).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "token_hash", "expires_at", "created_at",
			"email", "name", "stripe_customer_id", "user_created_at",
		}).AddRow(sessionID.String(), userID.String(), "hash", now.Add(time.Hour), now,
			"a@example.com", nil, "cus_1", now))

	row, err := q.GetSessionWithUser(context.Background(), GetSessionWithUserParams{TokenHash: "hash", Now: now})
	require.NoError(t, err)
	assert.Equal(t, userID, row.UserID)
	assert.Equal(t, "a@example.com", row.Email)
	assert.False(t, row.Name.Valid)
	assert.Equal(t, sql.NullString{String: "cus_1", Valid: true}, row.StripeCustomerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSessionWithUser_NotFound(t *testing.T) {
	q, mock := newMock(t)

	mock.ExpectQuery(`FROM sessions s`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := q.GetSessionWithUser(context.Background(), GetSessionWithUserParams{TokenHash: "missing", Now: time.Now()})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListSearchHistoryByUser(t *testing.T) {
	q, mock := newMock(t)
	userID := uuid.New()
	a, b := uuid.New(), uuid.New()
	t1 := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM search_history\s+WHERE user_id = \$1\s+ORDER BY created_at DESC`).
		WithArgs(userID, int32(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "query", "platform", "result_count", "created_at"}).
			AddRow(a.String(), userID.String(), "natgeo", "instagram", int32(4), t1).
			AddRow(b.String(), userID.String(), "nasa", "tiktok", int32(2), t1.Add(-time.Hour)))

	items, err := q.ListSearchHistoryByUser(context.Background(), ListSearchHistoryByUserParams{UserID: userID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, a, items[0].ID)
	assert.Equal(t, "tiktok", items[1].Platform)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchResultsRoundTrip(t *testing.T) {
	q, mock := newMock(t)
	id, historyID := uuid.New(), uuid.New()
	payload := json.RawMessage(`[{"id":"p1"}]`)

	mock.ExpectExec(`INSERT INTO search_results`).
		WithArgs(id, historyID, []byte(payload)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, q.CreateSearchResults(context.Background(), CreateSearchResultsParams{
		ID: id, HistoryID: historyID, Results: payload,
	}))

	mock.ExpectQuery(`FROM search_results\s+WHERE history_id = \$1`).
		WithArgs(historyID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "history_id", "results", "created_at"}).
			AddRow(id.String(), historyID.String(), []byte(payload), time.Now()))

	res, err := q.GetSearchResultsByHistoryID(context.Background(), historyID)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(res.Results))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSearchHistory(t *testing.T) {
	q, mock := newMock(t)
	id, userID := uuid.New(), uuid.New()

	mock.ExpectExec(`DELETE FROM search_history\s+WHERE id = \$1 AND user_id = \$2`).
		WithArgs(id, userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM search_history\s+WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := q.DeleteSearchHistoryByIDAndUser(context.Background(), DeleteSearchHistoryByIDAndUserParams{ID: id, UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = q.DeleteSearchHistoryByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
