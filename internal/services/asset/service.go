package asset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/anoixa/storefront-assets/cache"
	"github.com/anoixa/storefront-assets/database"
	"github.com/anoixa/storefront-assets/database/models"
	"github.com/anoixa/storefront-assets/database/repo/assets"
	"github.com/anoixa/storefront-assets/internal/worker"
	"github.com/anoixa/storefront-assets/storage"
	"github.com/anoixa/storefront-assets/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	defaultRemoteTimeout = 30 * time.Second
	defaultBatchWorkers  = 4
)

// ReferenceChecker 删除前的引用检查
type ReferenceChecker interface {
	IsReferenced(ctx context.Context, url string) (bool, string, error)
}

// Options 服务参数
type Options struct {
	// MaxUploadBytes 单张图片上限，超过时不发起任何网络请求
	MaxUploadBytes int64
	// RequireImage 为 true 时拒绝无法识别格式的负载
	RequireImage bool
	// RemoteTimeout 后台远程删除的超时时间
	RemoteTimeout time.Duration
	// BatchWorkers 批量创建的并发数
	BatchWorkers int
}

// BatchResult 批量创建中单项的结果
type BatchResult struct {
	Index int
	Asset *models.Asset
	Err   error
}

// Service 图片资源管理服务
// 创建：解码、哈希去重、上传、入库；删除：引用检查、远程删除、本地删除
type Service struct {
	db       database.Provider
	repo     assets.RepositoryInterface
	checker  ReferenceChecker
	storages *storage.Factory
	pool     *worker.Pool
	cache    *cache.Factory
	opts     Options

	inflight singleflight.Group
}

// NewService 创建图片资源管理服务，cacheFactory 可以为 nil
func NewService(
	db database.Provider,
	repo assets.RepositoryInterface,
	checker ReferenceChecker,
	storages *storage.Factory,
	pool *worker.Pool,
	cacheFactory *cache.Factory,
	opts Options,
) *Service {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = storage.DefaultMaxUploadBytes
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = defaultRemoteTimeout
	}
	if opts.BatchWorkers <= 0 {
		opts.BatchWorkers = defaultBatchWorkers
	}
	return &Service{
		db:       db,
		repo:     repo,
		checker:  checker,
		storages: storages,
		pool:     pool,
		cache:    cacheFactory,
		opts:     opts,
	}
}

// Create 由 base64 负载创建图片；内容已存在时直接返回已有记录
func (s *Service) Create(ctx context.Context, payload string) (*models.Asset, error) {
	data, err := DecodePayload(payload)
	if err != nil {
		return nil, err
	}
	return s.CreateFromBytes(ctx, data)
}

// CreateFromBytes 由解码后的内容创建图片
func (s *Service) CreateFromBytes(ctx context.Context, data []byte) (*models.Asset, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidInput)
	}

	info, err := SniffImage(data)
	if err != nil {
		if s.opts.RequireImage {
			return nil, err
		}
		info = &ImageInfo{MimeType: defaultMimeType}
	}

	hash := ContentHash(data)

	// 同一进程内相同内容的并发创建合并为一次
	// 合并后的工作不跟随首个调用方取消，否则它断开会连累所有等待者
	v, err, _ := s.inflight.Do(hash, func() (interface{}, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RemoteTimeout)
		defer cancel()
		return s.create(sharedCtx, data, hash, info)
	})
	if err != nil {
		return nil, err
	}
	asset := *v.(*models.Asset)
	return &asset, nil
}

func (s *Service) create(ctx context.Context, data []byte, hash string, info *ImageInfo) (*models.Asset, error) {
	existing, err := s.lookupHash(ctx, hash)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, assets.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up content hash: %w", err)
	}

	if int64(len(data)) > s.opts.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes > %d bytes", ErrPayloadTooLarge, len(data), s.opts.MaxUploadBytes)
	}

	provider := s.storages.GetDefault()
	if provider == nil {
		return nil, fmt.Errorf("no default storage provider configured")
	}

	res, err := provider.Upload(ctx, &storage.UploadInput{
		Data:        data,
		ContentHash: hash,
		MimeType:    info.MimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload asset: %w", err)
	}

	asset := &models.Asset{
		ContentHash: hash,
		RemoteID:    res.RemoteID,
		PublicURL:   res.PublicURL,
		Driver:      provider.Name(),
		MimeType:    info.MimeType,
		Size:        int64(len(data)),
		Width:       info.Width,
		Height:      info.Height,
	}

	err = s.repo.Create(ctx, asset)
	if errors.Is(err, assets.ErrDuplicateHash) {
		// 并发创建的落败方：返回胜出的记录，刚上传的对象成为孤儿
		winner, getErr := s.repo.GetByHash(ctx, hash)
		if getErr != nil {
			log.Printf("[Reconcile] orphaned remote object %s on %s: lost create race but winner unreadable: %v",
				res.RemoteID, provider.Name(), getErr)
			return nil, fmt.Errorf("failed to load existing asset after duplicate create: %w", getErr)
		}
		if winner.Driver != provider.Name() || winner.RemoteID != res.RemoteID {
			s.discardOrphan(provider, res.RemoteID)
		}
		s.remember(ctx, winner)
		return winner, nil
	}
	if err != nil {
		log.Printf("[Reconcile] orphaned remote object %s on %s (hash %s): failed to persist asset: %v",
			res.RemoteID, provider.Name(), hash, err)
		return nil, fmt.Errorf("failed to save asset: %w", err)
	}

	log.Printf("[AssetService] created asset %d (%s, %d bytes) on %s", asset.ID, asset.MimeType, asset.Size, asset.Driver)
	s.remember(ctx, asset)
	return asset, nil
}

// CreateBatch 并发创建多张图片，单项失败不影响其他项
func (s *Service) CreateBatch(ctx context.Context, payloads []string) []BatchResult {
	defer utils.MonitorMemory("CreateBatch")()
	results := make([]BatchResult, len(payloads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BatchWorkers)

	for i, payload := range payloads {
		g.Go(func() error {
			asset, err := s.Create(gctx, payload)
			results[i] = BatchResult{Index: i, Asset: asset, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Delete 删除图片：确认无引用后删除远程对象，远程成功才提交本地删除
// 事务先删行拿到写锁，并发的引用写入（WithStoredURLs）排在提交之前或之后，
// 不会落在引用检查与提交之间；远程删除失败时回滚，本地记录保留
func (s *Service) Delete(ctx context.Context, id uint) error {
	asset, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	provider, err := s.storages.Get(asset.Driver)
	if err != nil {
		return fmt.Errorf("storage for asset %d unavailable: %w", asset.ID, err)
	}

	remoteDeleted := false
	err = database.RunInTx(ctx, s.db, func(txCtx context.Context) error {
		if err := s.repo.Delete(txCtx, asset); err != nil {
			return err
		}

		inUse, source, err := s.checker.IsReferenced(txCtx, asset.PublicURL)
		if err != nil {
			return err
		}
		if inUse {
			return fmt.Errorf("%w: asset %d is used by a %s", ErrAssetInUse, asset.ID, source)
		}

		if err := s.deleteRemote(txCtx, provider, asset); err != nil {
			return err
		}
		remoteDeleted = true
		return nil
	})
	if err != nil {
		if remoteDeleted {
			log.Printf("[Reconcile] remote object %s on %s deleted but local row %d kept: %v",
				asset.RemoteID, provider.Name(), asset.ID, err)
		}
		return err
	}

	log.Printf("[AssetService] deleted asset %d", asset.ID)
	s.forget(ctx, asset)
	return nil
}

// WithStoredURLs 在写事务中确认链接都属于已存储的图片后执行 fn
// fn 通过 txCtx 写入引用；与 Delete 串行，删除已提交时返回 ErrNotFound
func (s *Service) WithStoredURLs(ctx context.Context, urls []string, fn func(txCtx context.Context) error) error {
	return database.RunInTx(ctx, s.db, func(txCtx context.Context) error {
		for _, url := range urls {
			found, err := s.repo.LockByURL(txCtx, url)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%w: %s", ErrNotFound, url)
			}
		}
		return fn(txCtx)
	})
}

// deleteRemote 远程删除交给有界任务池执行并等待结果
func (s *Service) deleteRemote(ctx context.Context, provider storage.Provider, asset *models.Asset) error {
	callerGone := make(chan struct{})

	err := s.pool.Run(ctx, func() error {
		remoteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RemoteTimeout)
		defer cancel()

		err := provider.Delete(remoteCtx, asset.RemoteID)
		if err == nil {
			select {
			case <-callerGone:
				log.Printf("[Reconcile] remote object %s on %s deleted after caller gave up; local row %d kept",
					asset.RemoteID, provider.Name(), asset.ID)
			default:
			}
		}
		return err
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, worker.ErrPoolSaturated):
		return err
	case ctx.Err() != nil:
		close(callerGone)
		return fmt.Errorf("%w: delete of %s abandoned: %v", ErrRemoteUnreachable, asset.RemoteID, err)
	default:
		return fmt.Errorf("failed to delete remote object %s: %w", asset.RemoteID, err)
	}
}

// discardOrphan 尽力删除并发创建中多上传的对象
func (s *Service) discardOrphan(provider storage.Provider, remoteID string) {
	ok := s.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.RemoteTimeout)
		defer cancel()
		if err := provider.Delete(ctx, remoteID); err != nil {
			log.Printf("[Reconcile] failed to delete orphaned remote object %s on %s: %v", remoteID, provider.Name(), err)
		}
	})
	if !ok {
		log.Printf("[Reconcile] worker pool saturated, orphaned remote object %s on %s left in place", remoteID, provider.Name())
	}
}

// Get 获取单个图片
func (s *Service) Get(ctx context.Context, id uint) (*models.Asset, error) {
	if s.cache != nil {
		var cached models.Asset
		if err := s.cache.Get(ctx, cache.AssetByID.BuildID(id), &cached); err == nil {
			return &cached, nil
		}
	}

	asset, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, asset)
	return asset, nil
}

// List 按创建顺序列出全部图片
func (s *Service) List(ctx context.Context) ([]*models.Asset, error) {
	return s.repo.List(ctx)
}

// ExistsByURL 链接是否属于已存储的图片
func (s *Service) ExistsByURL(ctx context.Context, url string) (bool, error) {
	return s.repo.ExistsByURL(ctx, url)
}

// lookupHash 先查缓存再查库
func (s *Service) lookupHash(ctx context.Context, hash string) (*models.Asset, error) {
	if s.cache != nil {
		var cached models.Asset
		if err := s.cache.Get(ctx, cache.AssetByHash.Build(hash), &cached); err == nil {
			return &cached, nil
		}
	}
	return s.repo.GetByHash(ctx, hash)
}

// remember 图片记录不可变，可以直接缓存
func (s *Service) remember(ctx context.Context, asset *models.Asset) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cache.AssetByID.BuildID(asset.ID), asset); err != nil {
		log.Printf("[AssetService] failed to cache asset %d: %v", asset.ID, err)
	}
	if err := s.cache.Set(ctx, cache.AssetByHash.Build(asset.ContentHash), asset); err != nil {
		log.Printf("[AssetService] failed to cache asset hash %s: %v", utils.SanitizeLogMessage(asset.ContentHash), err)
	}
}

func (s *Service) forget(ctx context.Context, asset *models.Asset) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.AssetByID.BuildID(asset.ID), cache.AssetByHash.Build(asset.ContentHash)); err != nil {
		log.Printf("[AssetService] failed to invalidate cache for asset %d: %v", asset.ID, err)
	}
}
