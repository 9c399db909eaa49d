package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/reelscout/internal/domain"
)

func TestHistoryService_SaveKeepsValidPosts(t *testing.T) {
	repo := newFakeHistoryRepo()
	svc := NewHistoryService(repo, testLogger())
	user := testUser()
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	posts := []domain.Post{
		post("a", 10, 100, 1, at),
		post("b", 0, 100, 1, at),
		post("c", 10, 0, 1, at),
		post("d", 20, 30, 1, at),
	}

	h, err := svc.Save(context.Background(), user.ID, "natgeo", domain.PlatformInstagram, posts)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, 2, h.ResultCount)

	got, results, err := svc.Results(context.Background(), user.ID, h.ID)
	require.NoError(t, err)
	assert.Equal(t, h.ID, got.ID)
	assert.Equal(t, []string{"a", "d"}, itemIDs(results.Posts))
	assert.Equal(t, domain.Percent(1), results.Posts[0].Engagement)
}

func TestHistoryService_SaveNothingValid(t *testing.T) {
	repo := newFakeHistoryRepo()
	svc := NewHistoryService(repo, testLogger())

	h, err := svc.Save(context.Background(), uuid.New(), "natgeo", domain.PlatformInstagram, []domain.Post{{ID: "x"}})
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Equal(t, 0, repo.len())
}

func TestHistoryService_SaveRemovesEntryWhenResultsFail(t *testing.T) {
	repo := newFakeHistoryRepo()
	repo.resultsErr = errBoom
	svc := NewHistoryService(repo, testLogger())

	_, err := svc.Save(context.Background(), uuid.New(), "natgeo", domain.PlatformTikTok,
		[]domain.Post{post("a", 1, 1, 0, time.Now())})
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	assert.Equal(t, 0, repo.len())
}

func TestHistoryService_ListAndDelete(t *testing.T) {
	repo := newFakeHistoryRepo()
	svc := NewHistoryService(repo, testLogger())
	ctx := context.Background()
	user, other := testUser(), testUser()
	p := []domain.Post{post("a", 1, 1, 0, time.Now())}

	var ids []uuid.UUID
	for _, q := range []string{"one", "two", "three"} {
		h, err := svc.Save(ctx, user.ID, q, domain.PlatformInstagram, p)
		require.NoError(t, err)
		ids = append(ids, h.ID)
	}
	_, err := svc.Save(ctx, other.ID, "theirs", domain.PlatformInstagram, p)
	require.NoError(t, err)

	list, err := svc.List(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "three", list[0].Query, "newest first")

	list, err = svc.List(ctx, user.ID, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.Get(ctx, other.ID, ids[0])
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err), "entries of other users are hidden")

	require.NoError(t, svc.Delete(ctx, user.ID, ids[0]))
	err = svc.Delete(ctx, user.ID, ids[0])
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	n, err := svc.DeleteAll(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, repo.len())
}
