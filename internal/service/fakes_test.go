package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errBoom = errors.New("boom")

// testPrices are the price IDs used by testTiers.
var testPrices = domain.PriceConfig{
	CreatorMonthlyPriceID:  "price_creator_m",
	CreatorYearlyPriceID:   "price_creator_y",
	ProMonthlyPriceID:      "price_pro_m",
	ProYearlyPriceID:       "price_pro_y",
	SteroidsMonthlyPriceID: "price_steroids_m",
	SteroidsYearlyPriceID:  "price_steroids_y",
}

func testTiers() *domain.TierTable {
	return domain.NewTierTable(domain.DefaultTiers(testPrices))
}

// fakeStatusLookup returns a fixed subscription status.
type fakeStatusLookup struct {
	mu     sync.Mutex
	status domain.SubscriptionStatus
	err    error
	calls  int
}

func (f *fakeStatusLookup) SubscriptionStatus(context.Context, string) (domain.SubscriptionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.status, f.err
}

func (f *fakeStatusLookup) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func subscribed(priceID string) *fakeStatusLookup {
	return &fakeStatusLookup{status: domain.SubscriptionStatus{Subscribed: true, PriceID: priceID, Status: "active"}}
}

// fakeCustomers maps customer IDs to users.
type fakeCustomers map[string]uuid.UUID

func (f fakeCustomers) GetUserByStripeCustomerID(_ context.Context, id sql.NullString) (repository.User, error) {
	userID, ok := f[id.String]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	return repository.User{ID: userID, StripeCustomerID: id}, nil
}

// fakeUsageRepo stores usage events in memory.
type fakeUsageRepo struct {
	mu        sync.Mutex
	events    []repository.CreateUsageEventParams
	countErr  error
	createErr error
	counts    int
}

func (f *fakeUsageRepo) CountUsageEventsInPeriod(_ context.Context, arg repository.CountUsageEventsInPeriodParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts++
	if f.countErr != nil {
		return 0, f.countErr
	}
	var n int64
	for _, e := range f.events {
		if e.UserID == arg.UserID && e.ActionType == arg.ActionType &&
			!e.CreatedAt.Before(arg.Start) && e.CreatedAt.Before(arg.End) {
			n++
		}
	}
	return n, nil
}

func (f *fakeUsageRepo) CreateUsageEvent(_ context.Context, arg repository.CreateUsageEventParams) (repository.UsageEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return repository.UsageEvent{}, f.createErr
	}
	f.events = append(f.events, arg)
	return repository.UsageEvent{ID: arg.ID, UserID: arg.UserID, ActionType: arg.ActionType, CreatedAt: arg.CreatedAt}, nil
}

func (f *fakeUsageRepo) add(userID uuid.UUID, action domain.ActionType, at time.Time, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.events = append(f.events, repository.CreateUsageEventParams{ID: uuid.New(), UserID: userID, ActionType: string(action), CreatedAt: at})
	}
}

func (f *fakeUsageRepo) recorded(action domain.ActionType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.ActionType == string(action) {
			n++
		}
	}
	return n
}

// fakeHistoryRepo stores search history in memory.
type fakeHistoryRepo struct {
	mu         sync.Mutex
	history    map[uuid.UUID]repository.SearchHistory
	results    map[uuid.UUID]json.RawMessage
	resultsErr error
	clock      time.Time
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{
		history: map[uuid.UUID]repository.SearchHistory{},
		results: map[uuid.UUID]json.RawMessage{},
		clock:   time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeHistoryRepo) CreateSearchHistory(_ context.Context, arg repository.CreateSearchHistoryParams) (repository.SearchHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(time.Minute)
	row := repository.SearchHistory{
		ID:          arg.ID,
		UserID:      arg.UserID,
		Query:       arg.Query,
		Platform:    arg.Platform,
		ResultCount: arg.ResultCount,
		CreatedAt:   f.clock,
	}
	f.history[arg.ID] = row
	return row, nil
}

func (f *fakeHistoryRepo) CreateSearchResults(_ context.Context, arg repository.CreateSearchResultsParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resultsErr != nil {
		return f.resultsErr
	}
	f.results[arg.HistoryID] = arg.Results
	return nil
}

func (f *fakeHistoryRepo) ListSearchHistoryByUser(_ context.Context, arg repository.ListSearchHistoryByUserParams) ([]repository.SearchHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.SearchHistory
	for _, h := range f.history {
		if h.UserID == arg.UserID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (f *fakeHistoryRepo) GetSearchHistoryByIDAndUser(_ context.Context, arg repository.GetSearchHistoryByIDAndUserParams) (repository.SearchHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.history[arg.ID]
	if !ok || h.UserID != arg.UserID {
		return repository.SearchHistory{}, sql.ErrNoRows
	}
	return h, nil
}

func (f *fakeHistoryRepo) GetSearchResultsByHistoryID(_ context.Context, historyID uuid.UUID) (repository.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[historyID]
	if !ok {
		return repository.SearchResult{}, sql.ErrNoRows
	}
	return repository.SearchResult{ID: uuid.New(), HistoryID: historyID, Results: r}, nil
}

func (f *fakeHistoryRepo) DeleteSearchHistoryByIDAndUser(_ context.Context, arg repository.DeleteSearchHistoryByIDAndUserParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.history[arg.ID]
	if !ok || h.UserID != arg.UserID {
		return 0, nil
	}
	delete(f.history, arg.ID)
	delete(f.results, arg.ID)
	return 1, nil
}

func (f *fakeHistoryRepo) DeleteSearchHistoryByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, h := range f.history {
		if h.UserID == userID {
			delete(f.history, id)
			delete(f.results, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeHistoryRepo) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.history)
}

func testUser() *domain.User {
	return &domain.User{ID: uuid.New(), Email: "creator@example.com"}
}

func post(id string, views, plays int64, eng float64, at time.Time) domain.Post {
	return domain.Post{
		ID:            id,
		OwnerUsername: "natgeo",
		Caption:       "caption " + id,
		URL:           "https://www.instagram.com/p/" + id,
		Timestamp:     at,
		Views:         views,
		Plays:         plays,
		Likes:         views / 10,
		Comments:      views / 100,
		Engagement:    domain.Percent(eng),
		Duration:      15,
	}
}
