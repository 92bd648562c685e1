package menuitems

import (
	"context"
	"errors"
	"fmt"

	"github.com/anoixa/storefront-assets/database"
	"github.com/anoixa/storefront-assets/database/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound 菜单项不存在
	ErrNotFound = errors.New("menu item not found")
	// ErrMaxImages 图片数量已达上限
	ErrMaxImages = fmt.Errorf("menu item has reached the maximum of %d images", models.MenuItemMaxImages)
	// ErrImageNotInMenuItem 要移除的链接不在菜单项中
	ErrImageNotInMenuItem = errors.New("the url provided is not part of the menu item")
)

// Repository 菜单项仓库（只覆盖图片引用部分）
type Repository struct {
	db database.Provider
}

// NewRepository 创建菜单项仓库
func NewRepository(db database.Provider) *Repository {
	return &Repository{db: db}
}

// Name 引用来源名称
func (r *Repository) Name() string {
	return "menu item"
}

// ReferencesURL 是否有菜单项引用了该链接
func (r *Repository) ReferencesURL(ctx context.Context, url string) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&models.MenuItemImage{}).Where("image_url = ?", url).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check menu item references: %w", err)
	}
	return count > 0, nil
}

// Create 新建菜单项
func (r *Repository) Create(ctx context.Context, item *models.MenuItem) error {
	if len(item.Images) > models.MenuItemMaxImages {
		return ErrMaxImages
	}
	for i := range item.Images {
		item.Images[i].Position = i
	}
	if err := database.Conn(ctx, r.db).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create menu item: %w", err)
	}
	return nil
}

// GetByID 获取菜单项及其图片
func (r *Repository) GetByID(ctx context.Context, id uint) (*models.MenuItem, error) {
	var item models.MenuItem
	err := database.Conn(ctx, r.db).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		First(&item, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load menu item %d: %w", id, err)
	}
	return &item, nil
}

// AddImage 追加图片链接，调用方负责确认链接属于已存储的图片
func (r *Repository) AddImage(ctx context.Context, id uint, url string) (*models.MenuItem, error) {
	err := database.RunInTx(ctx, r.db, func(txCtx context.Context) error {
		item, err := r.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if !item.CanAddImage() {
			return ErrMaxImages
		}
		position := 0
		if n := len(item.Images); n > 0 {
			position = item.Images[n-1].Position + 1
		}
		return database.Conn(txCtx, r.db).Create(&models.MenuItemImage{
			MenuItemID: item.ID,
			Position:   position,
			ImageURL:   url,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// RemoveImage 移除一个图片链接
func (r *Repository) RemoveImage(ctx context.Context, id uint, url string) (*models.MenuItem, error) {
	err := database.RunInTx(ctx, r.db, func(txCtx context.Context) error {
		item, err := r.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		for _, img := range item.Images {
			if img.ImageURL == url {
				return database.Conn(txCtx, r.db).Delete(&models.MenuItemImage{}, img.ID).Error
			}
		}
		return ErrImageNotInMenuItem
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}
