package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/anoixa/storefront-assets/database/dbtest"
	"github.com/anoixa/storefront-assets/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedAsset(t *testing.T, db *gorm.DB, hash, driver string, size int64) {
	t.Helper()
	require.NoError(t, db.Create(&models.Asset{
		ContentHash: hash,
		RemoteID:    hash,
		PublicURL:   "https://cdn.example.com/" + hash,
		Driver:      driver,
		Size:        size,
	}).Error)
}

func TestRepository_Stats(t *testing.T) {
	provider := dbtest.NewProvider(t)
	db := provider.DB()

	seedAsset(t, db, "aaa", "cloudinary", 100)
	seedAsset(t, db, "bbb", "cloudinary", 300)
	seedAsset(t, db, "ccc", "local", 50)

	banner := models.Banner{Title: "home", Images: []models.BannerImage{{Position: 0, ImageURL: "https://cdn.example.com/aaa"}}}
	require.NoError(t, db.Create(&banner).Error)
	item := models.MenuItem{Title: "latte", Images: []models.MenuItemImage{
		{Position: 0, ImageURL: "https://cdn.example.com/bbb"},
		{Position: 1, ImageURL: "https://cdn.example.com/ccc"},
	}}
	require.NoError(t, db.Create(&item).Error)

	repo := NewRepository(provider)
	ctx := context.Background()

	t.Run("overview", func(t *testing.T) {
		overview, err := repo.GetOverviewStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), overview.AssetTotal)
		assert.Equal(t, int64(450), overview.StorageTotal)
		assert.Equal(t, int64(1), overview.BannerImageTotal)
		assert.Equal(t, int64(1), overview.MenuItemTotal)
		assert.Equal(t, int64(2), overview.MenuImageTotal)
	})

	t.Run("by driver", func(t *testing.T) {
		stats, err := repo.GetDriverStats(ctx)
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, "cloudinary", stats[0].Driver)
		assert.Equal(t, int64(2), stats[0].Count)
		assert.Equal(t, int64(400), stats[0].Size)
		assert.Equal(t, "local", stats[1].Driver)
	})

	t.Run("daily", func(t *testing.T) {
		stats, err := repo.GetDailyStats(ctx, 30)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, time.Now().Format("2006-01-02"), stats[0].Date)
		assert.Equal(t, int64(3), stats[0].Count)
	})
}
