package models

import "time"

// MenuItemMaxImages 菜单项最多引用的图片数量
const MenuItemMaxImages = 3

// MenuItem 菜单项，只保留图片引用相关字段
type MenuItem struct {
	ID          uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string          `gorm:"type:varchar(255);not null" json:"title"`
	Subtitle    string          `gorm:"type:varchar(255)" json:"subtitle"`
	Description string          `gorm:"type:text" json:"description"`
	Price       int             `json:"price"`
	Available   bool            `gorm:"not null;default:true" json:"available"`
	Images      []MenuItemImage `gorm:"foreignKey:MenuItemID;constraint:OnDelete:CASCADE" json:"-"`
	Revision    uint            `gorm:"not null;default:1" json:"-"`
	CreatedAt   time.Time       `json:"-"`
	UpdatedAt   time.Time       `json:"-"`
}

// MenuItemImage 菜单项图片列表中的一项
type MenuItemImage struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	MenuItemID uint   `gorm:"not null;index:idx_menu_item_image_position,priority:1"`
	Position   int    `gorm:"not null;index:idx_menu_item_image_position,priority:2"`
	ImageURL   string `gorm:"type:varchar(1024);not null;index"`
}

// ImageURLs 按顺序返回图片链接
func (m *MenuItem) ImageURLs() []string {
	urls := make([]string, 0, len(m.Images))
	for _, img := range m.Images {
		urls = append(urls, img.ImageURL)
	}
	return urls
}

// CanAddImage 是否还能追加图片
func (m *MenuItem) CanAddImage() bool {
	return len(m.Images) < MenuItemMaxImages
}
