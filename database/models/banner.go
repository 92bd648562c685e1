package models

import "time"

// BannerMaxImages 横幅最多引用的图片数量
const BannerMaxImages = 5

// Banner 首页横幅，按 URL 值引用图片（不持有外键）
type Banner struct {
	ID          uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string        `gorm:"type:varchar(255)" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	Images      []BannerImage `gorm:"foreignKey:BannerID;constraint:OnDelete:CASCADE" json:"-"`
	Revision    uint          `gorm:"not null;default:1" json:"-"`
	CreatedAt   time.Time     `json:"-"`
	UpdatedAt   time.Time     `json:"-"`
}

// BannerImage 横幅图片列表中的一项，Position 保持顺序
type BannerImage struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	BannerID uint   `gorm:"not null;index:idx_banner_image_position,priority:1"`
	Position int    `gorm:"not null;index:idx_banner_image_position,priority:2"`
	ImageURL string `gorm:"type:varchar(1024);not null;index"`
}

// ImageURLs 按顺序返回图片链接
func (b *Banner) ImageURLs() []string {
	urls := make([]string, 0, len(b.Images))
	for _, img := range b.Images {
		urls = append(urls, img.ImageURL)
	}
	return urls
}

// CanAddImage 是否还能追加图片
func (b *Banner) CanAddImage() bool {
	return len(b.Images) < BannerMaxImages
}
