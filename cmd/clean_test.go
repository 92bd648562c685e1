package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anoixa/storefront-assets/database/dbtest"
	"github.com/anoixa/storefront-assets/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanDanglingReferences(t *testing.T) {
	db := dbtest.NewProvider(t).DB()
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Asset{
		ContentHash: "aa", RemoteID: "aa.png", PublicURL: "https://res.example.com/aa.png", Driver: "local", Revision: 1,
	}).Error)
	require.NoError(t, db.Create(&models.Banner{Images: []models.BannerImage{
		{Position: 0, ImageURL: "https://res.example.com/aa.png"},
		{Position: 1, ImageURL: "https://res.example.com/gone.png"},
	}}).Error)
	require.NoError(t, db.Create(&models.MenuItem{Title: "Mocha", Images: []models.MenuItemImage{
		{Position: 0, ImageURL: "https://res.example.com/gone.png"},
	}}).Error)

	stats := &cleanStats{}
	require.NoError(t, cleanDanglingReferences(ctx, db, stats, true))
	assert.Equal(t, 2, stats.danglingRefs)
	assert.Zero(t, stats.deletedRefs)

	stats = &cleanStats{}
	require.NoError(t, cleanDanglingReferences(ctx, db, stats, false))
	assert.Equal(t, 2, stats.deletedRefs)

	var left []string
	require.NoError(t, db.Model(&models.BannerImage{}).Pluck("image_url", &left).Error)
	assert.Equal(t, []string{"https://res.example.com/aa.png"}, left)
}

func TestCleanOrphanLocalFiles(t *testing.T) {
	db := dbtest.NewProvider(t).DB()
	dir := t.TempDir()
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Asset{
		ContentHash: "aa", RemoteID: "aa.png", PublicURL: "http://localhost/uploads/aa.png", Driver: "local", Revision: 1,
	}).Error)

	old := time.Now().Add(-2 * time.Hour)
	for _, name := range []string{"aa.png", "orphan.png"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		require.NoError(t, os.Chtimes(path, old, old))
	}
	// 新文件可能属于进行中的上传
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fresh.png"), []byte("x"), 0644))

	stats := &cleanStats{}
	require.NoError(t, cleanOrphanLocalFiles(ctx, db, dir, time.Hour, stats, false))

	assert.Equal(t, 1, stats.deletedStorageFiles)
	assert.FileExists(t, filepath.Join(dir, "aa.png"))
	assert.FileExists(t, filepath.Join(dir, "fresh.png"))
	assert.NoFileExists(t, filepath.Join(dir, "orphan.png"))
}
