package domain

import "time"

// POStatus 定义采购单状态
type POStatus string

const (
	POStatusOpen      POStatus = "OPEN"
	POStatusReceiving POStatus = "RECEIVING"
	POStatusReceived  POStatus = "RECEIVED"
	POStatusCancelled POStatus = "CANCELLED"
)

// POItem 表示采购单行。UnitCost 是本次采购的进货单价（分），
// 收货时会写回商品的成本字段。
type POItem struct {
	ID              int64 `json:"id"`
	PurchaseOrderID int64 `json:"purchase_order_id"`
	ProductID       int64 `json:"product_id"`
	Quantity        int   `json:"quantity"`
	UnitCost        int64 `json:"unit_cost"`
}

// PurchaseOrder 表示采购单。
// 只有 OPEN 状态的采购单可以收货；RECEIVING 是收货过程中的
// 瞬时状态，用于阻止并发重复收货。
type PurchaseOrder struct {
	ID           int64      `json:"id"`
	ReferenceNo  string     `json:"reference_no"`
	OrgID        int64      `json:"org_id"`
	BranchID     int64      `json:"branch_id"`
	SupplierID   int64      `json:"supplier_id"`
	Status       POStatus   `json:"status"`
	Items        []*POItem  `json:"items"`
	TotalCost    int64      `json:"total_cost"`
	Notes        string     `json:"notes,omitempty"`
	OrderDate    time.Time  `json:"order_date"`
	ReceivedDate *time.Time `json:"received_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ComputeTotalCost 返回所有行的数量×单价之和
func (po *PurchaseOrder) ComputeTotalCost() int64 {
	var total int64
	for _, it := range po.Items {
		total += int64(it.Quantity) * it.UnitCost
	}
	return total
}

// CreatePORequest 表示创建采购单请求
type CreatePORequest struct {
	SupplierID int64              `json:"supplier_id" binding:"required"`
	Items      []CreatePOItemSpec `json:"items" binding:"required"`
	Notes      string             `json:"notes"`
}

// CreatePOItemSpec 表示创建采购单时的单行描述
type CreatePOItemSpec struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
	UnitCost  int64 `json:"unit_cost"`
}

// POListRequest 表示采购单列表查询请求
type POListRequest struct {
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Status   *POStatus `json:"status"`
}

// POListResponse 表示采购单列表查询响应
type POListResponse struct {
	PurchaseOrders []*PurchaseOrder `json:"purchase_orders"`
	Total          int64            `json:"total"`
	Page           int              `json:"page"`
	PageSize       int              `json:"page_size"`
}
