package banners

import (
	"context"
	"errors"
	"fmt"

	"github.com/anoixa/storefront-assets/database"
	"github.com/anoixa/storefront-assets/database/models"
	"gorm.io/gorm"
)

var (
	// ErrMaxImages 横幅图片数量已达上限
	ErrMaxImages = fmt.Errorf("banner has reached the maximum of %d images", models.BannerMaxImages)
	// ErrImageNotInBanner 要移除的链接不在横幅中
	ErrImageNotInBanner = errors.New("the url provided is not part of the banner")
)

// Repository 横幅仓库，站点只有一个横幅
type Repository struct {
	db database.Provider
}

// NewRepository 创建横幅仓库
func NewRepository(db database.Provider) *Repository {
	return &Repository{db: db}
}

// Name 引用来源名称
func (r *Repository) Name() string {
	return "banner"
}

// ReferencesURL 是否有横幅引用了该链接
func (r *Repository) ReferencesURL(ctx context.Context, url string) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&models.BannerImage{}).Where("image_url = ?", url).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check banner references: %w", err)
	}
	return count > 0, nil
}

// Get 获取横幅（不存在时创建空横幅）
func (r *Repository) Get(ctx context.Context) (*models.Banner, error) {
	var banner models.Banner
	err := database.Conn(ctx, r.db).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Order("id asc").
		FirstOrCreate(&banner).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load banner: %w", err)
	}
	return &banner, nil
}

// UpdateText 更新标题和描述
func (r *Repository) UpdateText(ctx context.Context, title, description string) (*models.Banner, error) {
	var banner *models.Banner
	err := database.RunInTx(ctx, r.db, func(txCtx context.Context) error {
		var err error
		banner, err = r.Get(txCtx)
		if err != nil {
			return err
		}
		return database.Conn(txCtx, r.db).Model(banner).Updates(map[string]interface{}{
			"title":       title,
			"description": description,
			"revision":    gorm.Expr("revision + 1"),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx)
}

// AddImage 追加图片链接，调用方负责确认链接属于已存储的图片
func (r *Repository) AddImage(ctx context.Context, url string) (*models.Banner, error) {
	err := database.RunInTx(ctx, r.db, func(txCtx context.Context) error {
		banner, err := r.Get(txCtx)
		if err != nil {
			return err
		}
		if !banner.CanAddImage() {
			return ErrMaxImages
		}
		position := 0
		if n := len(banner.Images); n > 0 {
			position = banner.Images[n-1].Position + 1
		}
		return database.Conn(txCtx, r.db).Create(&models.BannerImage{
			BannerID: banner.ID,
			Position: position,
			ImageURL: url,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx)
}

// RemoveImage 移除一个图片链接（只移除第一次出现的位置）
func (r *Repository) RemoveImage(ctx context.Context, url string) (*models.Banner, error) {
	err := database.RunInTx(ctx, r.db, func(txCtx context.Context) error {
		banner, err := r.Get(txCtx)
		if err != nil {
			return err
		}
		for _, img := range banner.Images {
			if img.ImageURL == url {
				return database.Conn(txCtx, r.db).Delete(&models.BannerImage{}, img.ID).Error
			}
		}
		return ErrImageNotInBanner
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx)
}
