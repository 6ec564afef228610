// Package domain 定义商品目录相关的业务领域模型。
package domain

import (
	"time"
)

// ProductStatus 定义商品状态类型
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"   // 正常销售
	ProductStatusInactive ProductStatus = "inactive" // 暂停销售
)

// Product 表示商品领域模型。
// 价格与成本均以最小货币单位（分）存储。Cost 只由采购收货更新
// （最后一次收货成本覆盖旧值），销售永远不修改它。
type Product struct {
	ID        int64         `json:"id"`
	OrgID     int64         `json:"org_id"`
	SKU       string        `json:"sku"`
	Name      string        `json:"name"`
	Category  string        `json:"category"`
	Price     int64         `json:"price"`
	Cost      int64         `json:"cost"`
	Status    ProductStatus `json:"status"`
	ImageURL  string        `json:"image_url"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// IsAvailable 判断商品是否可售
func (p *Product) IsAvailable() bool {
	return p.Status == ProductStatusActive
}

// CreateProductRequest 表示创建商品请求
type CreateProductRequest struct {
	SKU      string `json:"sku" binding:"required,min=1,max=100"`
	Name     string `json:"name" binding:"required,min=1,max=255"`
	Category string `json:"category"`
	Price    int64  `json:"price" binding:"required,gt=0"`
	Cost     int64  `json:"cost" binding:"min=0"`
	ImageURL string `json:"image_url"`
}

// UpdateProductRequest 表示更新商品请求
type UpdateProductRequest struct {
	Name     *string        `json:"name"`
	Category *string        `json:"category"`
	Price    *int64         `json:"price"`
	Status   *ProductStatus `json:"status"`
	ImageURL *string        `json:"image_url"`
}

// ProductListRequest 表示商品列表查询请求
type ProductListRequest struct {
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Category *string `json:"category"`
	Keyword  *string `json:"keyword"`
}

// ProductListResponse 表示商品列表查询响应
type ProductListResponse struct {
	Products []*Product `json:"products"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}
