// Package domain 定义库存台账相关的业务领域模型和核心业务规则。
package domain

import (
	"time"
)

// DefaultMinStock 是 (商品, 门店) 尚无库存记录时使用的低库存阈值。
const DefaultMinStock = 5

// StockLevel 表示某商品在某门店的物理库存台账。
// Quantity 只记录实际在库数量；已分配数量从活动订单实时推导，
// 永远不落库（见 AllocationService）。
type StockLevel struct {
	ID          int64     `json:"id"`
	OrgID       int64     `json:"org_id"`
	BranchID    int64     `json:"branch_id"`
	ProductID   int64     `json:"product_id"`
	Quantity    int       `json:"quantity"`
	MinStock    int       `json:"min_stock"`
	BinLocation string    `json:"bin_location"`
	Version     int       `json:"version"` // 乐观锁版本号
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MovementType 定义库存变动类型
type MovementType string

const (
	MovementTypeStockIn    MovementType = "STOCK_IN"   // 手工入库
	MovementTypeStockOut   MovementType = "STOCK_OUT"  // 手工出库
	MovementTypeAdjustment MovementType = "ADJUSTMENT" // 盘点修正
	MovementTypeRestock    MovementType = "RESTOCK"    // 退货回库
	MovementTypePOReceipt  MovementType = "PO_RECEIPT" // 采购收货
)

// IsManual 判断变动是否来自手工库存调整操作
func (t MovementType) IsManual() bool {
	switch t {
	case MovementTypeStockIn, MovementTypeStockOut, MovementTypeAdjustment:
		return true
	}
	return false
}

// StockMovement 表示一条只追加的库存变动审计记录。
// Quantity 是带符号的实际变化量，用于事后对账。
type StockMovement struct {
	ID        int64        `json:"id"`
	OrgID     int64        `json:"org_id"`
	BranchID  int64        `json:"branch_id"`
	ProductID int64        `json:"product_id"`
	Type      MovementType `json:"type"`
	Quantity  int          `json:"quantity"`
	Note      string       `json:"note"`
	UserID    int64        `json:"user_id"`
	Reference string       `json:"reference"` // 关联单号（订单号/采购单号），可为空
	CreatedAt time.Time    `json:"created_at"`
}

// AdjustStockRequest 表示手工库存调整请求。
// STOCK_IN 的 Quantity 必须为正；STOCK_OUT 与 ADJUSTMENT 的
// Quantity 是直接施加的带符号增量。
type AdjustStockRequest struct {
	ProductID int64        `json:"product_id" binding:"required"`
	Quantity  int          `json:"quantity" binding:"required"`
	Type      MovementType `json:"type" binding:"required"`
	Note      string       `json:"note"`
}

// UpdateBinLocationRequest 表示货位更新请求，纯元数据修改，不产生变动记录。
type UpdateBinLocationRequest struct {
	BranchID    int64  `json:"branch_id"`
	BinLocation string `json:"bin_location"`
}

// MovementListRequest 表示库存变动查询请求
type MovementListRequest struct {
	Page      int           `json:"page"`
	PageSize  int           `json:"page_size"`
	BranchID  *int64        `json:"branch_id"`
	ProductID *int64        `json:"product_id"`
	Type      *MovementType `json:"type"`
}

// MovementListResponse 表示库存变动查询响应
type MovementListResponse struct {
	Movements []*StockMovement `json:"movements"`
	Total     int64            `json:"total"`
	Page      int              `json:"page"`
	PageSize  int              `json:"page_size"`
}

// StockView 表示某商品在某门店的分配视图：
// Available = Physical - Allocated，每次读取均重新计算。
// Available 可以为负，表示超卖，是需要上报的信号而非错误。
type StockView struct {
	ProductID int64 `json:"product_id"`
	BranchID  int64 `json:"branch_id"`
	Physical  int   `json:"physical"`
	Allocated int   `json:"allocated"`
	Available int   `json:"available"`
	MinStock  int   `json:"min_stock"`
	LowStock  bool  `json:"low_stock"`
	Oversold  bool  `json:"oversold"`
}
