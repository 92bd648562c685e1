package models

import (
	"errors"
	"time"
)

// ErrIncompleteAsset 远程标识与公开链接必须同时存在
var ErrIncompleteAsset = errors.New("asset must carry both remote id and public url")

// Asset 一张已上传到远程对象存储的图片
// 按内容哈希寻址；创建后除 Revision 外不再修改，删除为物理删除，
// 以便同一内容日后可以重新上传
type Asset struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ContentHash string `gorm:"type:varchar(64);uniqueIndex:idx_asset_content_hash;not null" json:"content_hash"`
	RemoteID    string `gorm:"type:varchar(255);not null" json:"remote_id"`
	PublicURL   string `gorm:"type:varchar(1024);uniqueIndex:idx_asset_public_url;not null" json:"public_url"`
	Driver      string `gorm:"type:varchar(32);not null;default:cloudinary" json:"driver"`

	MimeType string `gorm:"type:varchar(64)" json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`

	// 乐观锁版本号，与其他实体保持一致
	Revision uint `gorm:"not null;default:1" json:"revision"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate 入库前校验
func (a *Asset) Validate() error {
	if a.ContentHash == "" {
		return errors.New("asset content hash is empty")
	}
	if a.RemoteID == "" || a.PublicURL == "" {
		return ErrIncompleteAsset
	}
	return nil
}
