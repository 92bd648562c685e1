// Package reference 判断图片链接是否仍被其他实体引用
package reference

import (
	"context"
	"fmt"
)

// Referencer 持有图片链接的实体
type Referencer interface {
	// Name 实体名称，用于错误信息
	Name() string
	// ReferencesURL 是否有该实体引用了 url
	ReferencesURL(ctx context.Context, url string) (bool, error)
}

// Checker 依次询问各个实体，任一引用即视为被引用
type Checker struct {
	referencers []Referencer
}

// NewChecker 创建引用检查器
func NewChecker(referencers ...Referencer) *Checker {
	return &Checker{referencers: referencers}
}

// IsReferenced 返回是否被引用以及第一个引用它的实体名称
// 在删除事务中调用时，ctx 携带的事务会被各仓库复用
func (c *Checker) IsReferenced(ctx context.Context, url string) (bool, string, error) {
	for _, r := range c.referencers {
		ok, err := r.ReferencesURL(ctx, url)
		if err != nil {
			return false, "", fmt.Errorf("failed to check %s references: %w", r.Name(), err)
		}
		if ok {
			return true, r.Name(), nil
		}
	}
	return false, "", nil
}
