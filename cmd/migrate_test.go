package cmd

import (
	"context"
	"testing"

	"github.com/anoixa/storefront-assets/database/dbtest"
	"github.com/anoixa/storefront-assets/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedSource(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&models.Asset{
		ContentHash: "aa", RemoteID: "r1", PublicURL: "https://res.example.com/r1.png", Driver: "cloudinary", Revision: 1,
	}).Error)
	require.NoError(t, db.Create(&models.Asset{
		ContentHash: "bb", RemoteID: "r2", PublicURL: "https://res.example.com/r2.png", Driver: "cloudinary", Revision: 1,
	}).Error)
	require.NoError(t, db.Create(&models.Banner{
		Title:  "Welcome",
		Images: []models.BannerImage{{Position: 0, ImageURL: "https://res.example.com/r1.png"}},
	}).Error)
	require.NoError(t, db.Create(&models.MenuItem{
		Title:  "Latte",
		Images: []models.MenuItemImage{{Position: 0, ImageURL: "https://res.example.com/r2.png"}},
	}).Error)
}

func TestMigrateAll_CopiesEveryTable(t *testing.T) {
	source := dbtest.NewProvider(t).DB()
	target := dbtest.NewProvider(t).DB()
	seedSource(t, source)

	stats, err := migrateAll(context.Background(), source, target, migrateOptions{batchSize: 1, onConflict: "skip"})
	require.NoError(t, err)
	assert.Empty(t, stats.errors)

	var assetCount, bannerImages, menuImages int64
	target.Model(&models.Asset{}).Count(&assetCount)
	target.Model(&models.BannerImage{}).Count(&bannerImages)
	target.Model(&models.MenuItemImage{}).Count(&menuImages)
	assert.Equal(t, int64(2), assetCount)
	assert.Equal(t, int64(1), bannerImages)
	assert.Equal(t, int64(1), menuImages)

	// 再次执行全部跳过
	stats, err = migrateAll(context.Background(), source, target, migrateOptions{batchSize: 10, onConflict: "skip"})
	require.NoError(t, err)
	for _, ts := range stats.tables {
		assert.Zero(t, ts.migrated, ts.table)
	}
	assert.Equal(t, 2, stats.tables[0].skipped)
}

func TestMigrateAll_ConflictStrategies(t *testing.T) {
	source := dbtest.NewProvider(t).DB()
	target := dbtest.NewProvider(t).DB()
	seedSource(t, source)

	// 目标库已有同哈希但不同 id 的记录
	require.NoError(t, target.Create(&models.Asset{
		ID: 10, ContentHash: "aa", RemoteID: "old", PublicURL: "https://res.example.com/old.png", Driver: "cloudinary", Revision: 1,
	}).Error)

	_, err := migrateAll(context.Background(), source, target, migrateOptions{batchSize: 10, onConflict: "error"})
	assert.ErrorIs(t, err, errConflict)

	stats, err := migrateAll(context.Background(), source, target, migrateOptions{batchSize: 10, onConflict: "overwrite"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.tables[0].overwritten)

	var migrated models.Asset
	require.NoError(t, target.Where("content_hash = ?", "aa").First(&migrated).Error)
	assert.Equal(t, "r1", migrated.RemoteID)
}
