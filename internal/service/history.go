package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/repository"
)

// HistoryRepository persists searches and their results.
type HistoryRepository interface {
	CreateSearchHistory(ctx context.Context, arg repository.CreateSearchHistoryParams) (repository.SearchHistory, error)
	CreateSearchResults(ctx context.Context, arg repository.CreateSearchResultsParams) error
	ListSearchHistoryByUser(ctx context.Context, arg repository.ListSearchHistoryByUserParams) ([]repository.SearchHistory, error)
	GetSearchHistoryByIDAndUser(ctx context.Context, arg repository.GetSearchHistoryByIDAndUserParams) (repository.SearchHistory, error)
	GetSearchResultsByHistoryID(ctx context.Context, historyID uuid.UUID) (repository.SearchResult, error)
	DeleteSearchHistoryByIDAndUser(ctx context.Context, arg repository.DeleteSearchHistoryByIDAndUserParams) (int64, error)
	DeleteSearchHistoryByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// HistoryService manages a user's saved searches.
type HistoryService interface {
	// Save stores the valid posts of a search. When no post is valid nothing
	// is stored and (nil, nil) is returned.
	Save(ctx context.Context, userID uuid.UUID, query string, platform domain.Platform, posts []domain.Post) (*domain.SearchHistory, error)

	// List returns the newest searches first. A non-positive limit uses domain.DefaultHistoryLimit.
	List(ctx context.Context, userID uuid.UUID, limit int) ([]domain.SearchHistory, error)

	// Get returns one search owned by the user.
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.SearchHistory, error)

	// Results returns the stored posts of a search owned by the user.
	Results(ctx context.Context, userID, id uuid.UUID) (*domain.SearchHistory, *domain.SearchResults, error)

	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error)
}

type historyService struct {
	repo   HistoryRepository
	logger *slog.Logger
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(repo HistoryRepository, logger *slog.Logger) HistoryService {
	return &historyService{repo: repo, logger: logger}
}

func (s *historyService) Save(ctx context.Context, userID uuid.UUID, query string, platform domain.Platform, posts []domain.Post) (*domain.SearchHistory, error) {
	const op = "history.save"

	valid := domain.ValidPosts(posts)
	if len(valid) == 0 {
		s.logger.Debug("no valid posts, history not saved", "user_id", userID, "query", query)
		return nil, nil
	}

	payload, err := json.Marshal(valid)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode results")
	}

	row, err := s.repo.CreateSearchHistory(ctx, repository.CreateSearchHistoryParams{
		ID:          uuid.New(),
		UserID:      userID,
		Query:       query,
		Platform:    string(platform),
		ResultCount: int32(len(valid)),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to save search history")
	}

	if err := s.repo.CreateSearchResults(ctx, repository.CreateSearchResultsParams{
		ID:        uuid.New(),
		HistoryID: row.ID,
		Results:   payload,
	}); err != nil {
		// Results are what makes the entry useful; drop the orphan.
		if _, delErr := s.repo.DeleteSearchHistoryByIDAndUser(ctx, repository.DeleteSearchHistoryByIDAndUserParams{ID: row.ID, UserID: userID}); delErr != nil {
			s.logger.Error("failed to remove history entry without results", "history_id", row.ID, "error", delErr)
		}
		return nil, domain.Internal(err, op, "failed to save search results")
	}

	h := repoHistoryToDomain(row)
	return &h, nil
}

func (s *historyService) List(ctx context.Context, userID uuid.UUID, limit int) ([]domain.SearchHistory, error) {
	const op = "history.list"

	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}
	rows, err := s.repo.ListSearchHistoryByUser(ctx, repository.ListSearchHistoryByUserParams{
		UserID: userID,
		Limit:  int32(limit),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list search history")
	}

	out := make([]domain.SearchHistory, 0, len(rows))
	for _, r := range rows {
		out = append(out, repoHistoryToDomain(r))
	}
	return out, nil
}

func (s *historyService) Get(ctx context.Context, userID, id uuid.UUID) (*domain.SearchHistory, error) {
	const op = "history.get"

	row, err := s.repo.GetSearchHistoryByIDAndUser(ctx, repository.GetSearchHistoryByIDAndUserParams{ID: id, UserID: userID})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "search", id.String())
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load search")
	}
	h := repoHistoryToDomain(row)
	return &h, nil
}

func (s *historyService) Results(ctx context.Context, userID, id uuid.UUID) (*domain.SearchHistory, *domain.SearchResults, error) {
	const op = "history.results"

	h, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}

	row, err := s.repo.GetSearchResultsByHistoryID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return h, &domain.SearchResults{HistoryID: id, Posts: []domain.Post{}}, nil
	}
	if err != nil {
		return nil, nil, domain.Internal(err, op, "failed to load search results")
	}

	var posts []domain.Post
	if err := json.Unmarshal(row.Results, &posts); err != nil {
		return nil, nil, domain.Internal(err, op, "failed to decode search results")
	}
	return h, &domain.SearchResults{HistoryID: id, Posts: posts, CreatedAt: row.CreatedAt}, nil
}

func (s *historyService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	const op = "history.delete"

	n, err := s.repo.DeleteSearchHistoryByIDAndUser(ctx, repository.DeleteSearchHistoryByIDAndUserParams{ID: id, UserID: userID})
	if err != nil {
		return domain.Internal(err, op, "failed to delete search")
	}
	if n == 0 {
		return domain.NotFound(op, "search", id.String())
	}
	return nil
}

func (s *historyService) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "history.delete_all"

	n, err := s.repo.DeleteSearchHistoryByUser(ctx, userID)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to clear search history")
	}
	s.logger.Info("cleared search history", "user_id", userID, "count", n)
	return n, nil
}

func repoHistoryToDomain(r repository.SearchHistory) domain.SearchHistory {
	return domain.SearchHistory{
		ID:          r.ID,
		UserID:      r.UserID,
		Query:       r.Query,
		Platform:    domain.Platform(r.Platform),
		ResultCount: int(r.ResultCount),
		CreatedAt:   r.CreatedAt,
	}
}
