package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roselite-project/roselite/internal/model"
)

func sampleApp(id, slug, name string, rating float32, createdAt time.Time) model.AppInfo {
	return model.AppInfo{
		ID:        model.AppId(id),
		Slug:      slug,
		Name:      name,
		Version:   "1.0.0",
		Category:  "tools",
		Rating:    rating,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		Tags:      []string{"alpha"},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	idx := New()
	ctx := context.Background()
	app := sampleApp("app-1", "my-app", "My App", 4.5, time.Unix(1000, 0))

	require.NoError(t, idx.Put(ctx, app))

	got, err := idx.Get(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "My App", got.Name)
}

func TestGetBySlug(t *testing.T) {
	idx := New()
	ctx := context.Background()
	require.NoError(t, idx.Put(ctx, sampleApp("app-1", "my-app", "My App", 4.5, time.Unix(1000, 0))))

	got, err := idx.GetBySlug(ctx, "my-app")
	require.NoError(t, err)
	assert.Equal(t, model.AppId("app-1"), got.ID)
}

func TestGetMissingReturnsError(t *testing.T) {
	idx := New()
	_, err := idx.Get(context.Background(), "missing")
	assert.Error(t, err)
}

func TestDeleteRemovesSlugMapping(t *testing.T) {
	idx := New()
	ctx := context.Background()
	require.NoError(t, idx.Put(ctx, sampleApp("app-1", "my-app", "My App", 4.5, time.Unix(1000, 0))))
	require.NoError(t, idx.Delete(ctx, "app-1"))

	_, err := idx.Get(ctx, "app-1")
	assert.Error(t, err)
	_, err = idx.GetBySlug(ctx, "my-app")
	assert.Error(t, err)
}

func TestSearchFiltersByQueryAndCategory(t *testing.T) {
	idx := New()
	ctx := context.Background()
	require.NoError(t, idx.Put(ctx, sampleApp("1", "a", "Weather App", 4.0, time.Unix(100, 0))))
	require.NoError(t, idx.Put(ctx, sampleApp("2", "b", "Calculator", 4.0, time.Unix(200, 0))))

	results, err := idx.Search(ctx, model.SearchFilter{Query: "weather"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.AppId("1"), results[0].ID)
}

func TestSearchSortByRatingDescending(t *testing.T) {
	idx := New()
	ctx := context.Background()
	require.NoError(t, idx.Put(ctx, sampleApp("1", "a", "A", 3.0, time.Unix(100, 0))))
	require.NoError(t, idx.Put(ctx, sampleApp("2", "b", "B", 5.0, time.Unix(200, 0))))

	results, err := idx.Search(ctx, model.SearchFilter{SortBy: model.SortByRating})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, model.AppId("2"), results[0].ID)
}

func TestSearchRespectsLimit(t *testing.T) {
	idx := New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, idx.Put(ctx, sampleApp(string(rune('a'+i)), "", "App", 0, time.Unix(int64(i), 0))))
	}

	results, err := idx.Search(ctx, model.SearchFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestPutDoesNotAliasCallerTags(t *testing.T) {
	idx := New()
	ctx := context.Background()
	app := sampleApp("1", "a", "A", 0, time.Unix(0, 0))
	require.NoError(t, idx.Put(ctx, app))

	app.Tags[0] = "mutated"

	got, err := idx.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Tags[0])
}
