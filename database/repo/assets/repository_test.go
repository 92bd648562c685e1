package assets

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/anoixa/storefront-assets/database"
	"github.com/anoixa/storefront-assets/database/dbtest"
	"github.com/anoixa/storefront-assets/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAsset(n int) *models.Asset {
	return &models.Asset{
		ContentHash: fmt.Sprintf("hash-%d", n),
		RemoteID:    fmt.Sprintf("remote-%d", n),
		PublicURL:   fmt.Sprintf("https://res.example.com/%d.png", n),
		Driver:      "cloudinary",
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := NewRepository(dbtest.NewProvider(t))
	ctx := context.Background()

	asset := newAsset(1)
	require.NoError(t, repo.Create(ctx, asset))
	assert.NotZero(t, asset.ID)
	assert.Equal(t, uint(1), asset.Revision)

	byHash, err := repo.GetByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, asset.ID, byHash.ID)

	byID, err := repo.GetByID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, "remote-1", byID.RemoteID)
	assert.Equal(t, "https://res.example.com/1.png", byID.PublicURL)
}

func TestRepository_GetMissing(t *testing.T) {
	repo := NewRepository(dbtest.NewProvider(t))
	ctx := context.Background()

	_, err := repo.GetByHash(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetByID(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_CreateDuplicateHash(t *testing.T) {
	repo := NewRepository(dbtest.NewProvider(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newAsset(1)))

	dup := newAsset(2)
	dup.ContentHash = "hash-1"
	err := repo.Create(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateHash)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRepository_CreateRejectsIncompleteAsset(t *testing.T) {
	repo := NewRepository(dbtest.NewProvider(t))

	asset := newAsset(1)
	asset.PublicURL = ""
	err := repo.Create(context.Background(), asset)
	assert.ErrorIs(t, err, models.ErrIncompleteAsset)
}

func TestRepository_ExistsByURL(t *testing.T) {
	repo := NewRepository(dbtest.NewProvider(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newAsset(1)))

	exists, err := repo.ExistsByURL(ctx, "https://res.example.com/1.png")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByURL(ctx, "https://res.example.com/2.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepository_ListInCreationOrder(t *testing.T) {
	repo := NewRepository(dbtest.NewProvider(t))
	ctx := context.Background()

	for _, n := range []int{3, 1, 2} {
		require.NoError(t, repo.Create(ctx, newAsset(n)))
	}

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "hash-3", list[0].ContentHash)
	assert.Equal(t, "hash-1", list[1].ContentHash)
	assert.Equal(t, "hash-2", list[2].ContentHash)
}

func TestRepository_Delete(t *testing.T) {
	repo := NewRepository(dbtest.NewProvider(t))
	ctx := context.Background()

	asset := newAsset(1)
	require.NoError(t, repo.Create(ctx, asset))
	require.NoError(t, repo.Delete(ctx, asset))

	_, err := repo.GetByID(ctx, asset.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// 已删除的内容可以重新入库
	require.NoError(t, repo.Create(ctx, newAsset(1)))

	assert.ErrorIs(t, repo.Delete(ctx, &models.Asset{ID: 999}), ErrNotFound)
}

func TestRepository_DeleteInsideRolledBackTx(t *testing.T) {
	provider := dbtest.NewProvider(t)
	repo := NewRepository(provider)
	ctx := context.Background()

	asset := newAsset(1)
	require.NoError(t, repo.Create(ctx, asset))

	boom := fmt.Errorf("boom")
	err := database.RunInTx(ctx, provider, func(txCtx context.Context) error {
		require.NoError(t, repo.Delete(txCtx, asset))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.GetByID(ctx, asset.ID)
	assert.NoError(t, err)
}

// TestRepository_LockByURLWaitsForPendingDelete 删除未提交时加锁读取阻塞，提交后看不到记录
func TestRepository_LockByURLWaitsForPendingDelete(t *testing.T) {
	provider := dbtest.NewFileProvider(t)
	repo := NewRepository(provider)
	ctx := context.Background()

	asset := newAsset(1)
	require.NoError(t, repo.Create(ctx, asset))

	type lockResult struct {
		found bool
		err   error
	}
	done := make(chan lockResult, 1)

	err := database.RunInTx(ctx, provider, func(txCtx context.Context) error {
		if err := repo.Delete(txCtx, asset); err != nil {
			return err
		}
		go func() {
			var res lockResult
			res.err = database.RunInTx(ctx, provider, func(lockCtx context.Context) error {
				var err error
				res.found, err = repo.LockByURL(lockCtx, asset.PublicURL)
				return err
			})
			done <- res
		}()

		select {
		case <-done:
			t.Error("lock returned before the delete committed")
		case <-time.After(100 * time.Millisecond):
		}
		return nil
	})
	require.NoError(t, err)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.False(t, res.found)
	case <-time.After(5 * time.Second):
		t.Fatal("lock never acquired after commit")
	}
}

func TestRepository_LockByURL(t *testing.T) {
	provider := dbtest.NewProvider(t)
	repo := NewRepository(provider)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newAsset(1)))

	err := database.RunInTx(ctx, provider, func(txCtx context.Context) error {
		found, err := repo.LockByURL(txCtx, "https://res.example.com/1.png")
		require.NoError(t, err)
		assert.True(t, found)

		found, err = repo.LockByURL(txCtx, "https://res.example.com/2.png")
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	})
	require.NoError(t, err)
}
