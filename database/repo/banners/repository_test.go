package banners

import (
	"context"
	"fmt"
	"testing"

	"github.com/anoixa/storefront-assets/database/dbtest"
	"github.com/anoixa/storefront-assets/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_GetCreatesEmptyBanner(t *testing.T) {
	repo := NewRepository(dbtest.NewProvider(t))
	ctx := context.Background()

	first, err := repo.Get(ctx)
	require.NoError(t, err)
	second, err := repo.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Empty(t, second.ImageURLs())
}

func TestRepository_AddAndRemoveImage(t *testing.T) {
	repo := NewRepository(dbtest.NewProvider(t))
	ctx := context.Background()

	_, err := repo.AddImage(ctx, "https://res.example.com/a.png")
	require.NoError(t, err)
	banner, err := repo.AddImage(ctx, "https://res.example.com/b.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://res.example.com/a.png", "https://res.example.com/b.png"}, banner.ImageURLs())

	ok, err := repo.ReferencesURL(ctx, "https://res.example.com/a.png")
	require.NoError(t, err)
	assert.True(t, ok)

	banner, err = repo.RemoveImage(ctx, "https://res.example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://res.example.com/b.png"}, banner.ImageURLs())

	ok, err = repo.ReferencesURL(ctx, "https://res.example.com/a.png")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.RemoveImage(ctx, "https://res.example.com/a.png")
	assert.ErrorIs(t, err, ErrImageNotInBanner)
}

func TestRepository_AddImageLimit(t *testing.T) {
	repo := NewRepository(dbtest.NewProvider(t))
	ctx := context.Background()

	for i := 0; i < models.BannerMaxImages; i++ {
		_, err := repo.AddImage(ctx, fmt.Sprintf("https://res.example.com/%d.png", i))
		require.NoError(t, err)
	}

	_, err := repo.AddImage(ctx, "https://res.example.com/overflow.png")
	assert.ErrorIs(t, err, ErrMaxImages)

	banner, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, banner.Images, models.BannerMaxImages)
}

func TestRepository_UpdateText(t *testing.T) {
	repo := NewRepository(dbtest.NewProvider(t))

	banner, err := repo.UpdateText(context.Background(), "Spring menu", "Fresh every day")
	require.NoError(t, err)
	assert.Equal(t, "Spring menu", banner.Title)
	assert.Equal(t, "Fresh every day", banner.Description)
	assert.Equal(t, uint(2), banner.Revision)
}
