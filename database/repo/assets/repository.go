package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anoixa/storefront-assets/database"
	"github.com/anoixa/storefront-assets/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound 图片记录不存在
	ErrNotFound = errors.New("asset not found")
	// ErrDuplicateHash 相同内容哈希的记录已存在（并发创建时的落败方）
	ErrDuplicateHash = errors.New("asset with the same content hash already exists")
)

// RepositoryInterface 图片资源仓库接口
type RepositoryInterface interface {
	// GetByHash 通过内容哈希获取
	GetByHash(ctx context.Context, hash string) (*models.Asset, error)
	// GetByID 通过 ID 获取
	GetByID(ctx context.Context, id uint) (*models.Asset, error)
	// ExistsByURL 公开链接是否属于某个已存储的图片
	ExistsByURL(ctx context.Context, url string) (bool, error)
	// LockByURL 在事务中确认链接存在并加共享锁，与删除串行
	LockByURL(ctx context.Context, url string) (bool, error)
	// Create 插入新记录
	Create(ctx context.Context, asset *models.Asset) error
	// Delete 物理删除记录
	Delete(ctx context.Context, asset *models.Asset) error
	// List 按创建顺序列出全部记录
	List(ctx context.Context) ([]*models.Asset, error)
}

// 确保 Repository 实现了 RepositoryInterface
var _ RepositoryInterface = (*Repository)(nil)

// Repository 图片资源仓库
type Repository struct {
	db database.Provider
}

// NewRepository 创建新的图片资源仓库
func NewRepository(db database.Provider) *Repository {
	return &Repository{db: db}
}

// GetByHash 通过内容哈希获取
func (r *Repository) GetByHash(ctx context.Context, hash string) (*models.Asset, error) {
	var asset models.Asset
	err := database.Conn(ctx, r.db).Where("content_hash = ?", hash).First(&asset).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &asset, nil
}

// GetByID 通过 ID 获取
func (r *Repository) GetByID(ctx context.Context, id uint) (*models.Asset, error) {
	var asset models.Asset
	err := database.Conn(ctx, r.db).First(&asset, id).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &asset, nil
}

// ExistsByURL 公开链接是否存在
func (r *Repository) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&models.Asset{}).Where("public_url = ?", url).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check asset url: %w", err)
	}
	return count > 0, nil
}

// LockByURL 以 FOR SHARE 读取记录，删除未提交前会阻塞
// sqlite 不支持行锁，驱动会忽略该子句，串行化由立即事务的库级写锁保证
func (r *Repository) LockByURL(ctx context.Context, url string) (bool, error) {
	var asset models.Asset
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Select("id").
		Where("public_url = ?", url).
		First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock asset url: %w", err)
	}
	return true, nil
}

// Create 插入新记录，唯一约束冲突返回 ErrDuplicateHash
func (r *Repository) Create(ctx context.Context, asset *models.Asset) error {
	if err := asset.Validate(); err != nil {
		return err
	}
	if asset.Revision == 0 {
		asset.Revision = 1
	}

	err := database.Conn(ctx, r.db).Create(asset).Error
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateHash, asset.ContentHash)
		}
		return fmt.Errorf("failed to create asset: %w", err)
	}
	return nil
}

// Delete 物理删除记录
func (r *Repository) Delete(ctx context.Context, asset *models.Asset) error {
	result := database.Conn(ctx, r.db).Delete(&models.Asset{}, asset.ID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete asset %d: %w", asset.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List 按创建顺序列出全部记录
func (r *Repository) List(ctx context.Context) ([]*models.Asset, error) {
	var list []*models.Asset
	err := database.Conn(ctx, r.db).Order("id asc").Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return list, nil
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// isUniqueViolation 识别唯一约束冲突
// 开启 TranslateError 时驱动返回 gorm.ErrDuplicatedKey，否则回退到错误文本
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
