// Package domain 定义销售订单及其履约状态机的领域模型。
package domain

import (
	"time"
)

// OrderType 定义订单（交易）类型
type OrderType string

const (
	OrderTypeSale       OrderType = "SALE"
	OrderTypeStockIn    OrderType = "STOCK_IN"
	OrderTypeStockOut   OrderType = "STOCK_OUT"
	OrderTypeAdjustment OrderType = "ADJUSTMENT"
)

// OrderStatus 定义订单的财务状态，与物流状态相互独立。
type OrderStatus string

const (
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

// FulfillmentStatus 定义订单的物流（履约）状态
type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "PENDING"
	FulfillmentPicked    FulfillmentStatus = "PICKED"
	FulfillmentPacked    FulfillmentStatus = "PACKED"
	FulfillmentShipped   FulfillmentStatus = "SHIPPED"
	FulfillmentDelivered FulfillmentStatus = "DELIVERED"
	FulfillmentCancelled FulfillmentStatus = "CANCELLED"
	FulfillmentReturned  FulfillmentStatus = "RETURNED"
)

// fulfillmentTransitions 是履约状态机的转换表。
// 主干只能前进：PENDING → PICKED → PACKED → SHIPPED → DELIVERED；
// CANCELLED/RETURNED 通过取消操作侧向进入（见 Order.CancelOutcome）。
var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentPending: {FulfillmentPicked, FulfillmentCancelled},
	FulfillmentPicked:  {FulfillmentPacked},
	FulfillmentPacked:  {FulfillmentShipped},
	FulfillmentShipped: {FulfillmentDelivered, FulfillmentCancelled, FulfillmentReturned},
	FulfillmentDelivered: {FulfillmentCancelled, FulfillmentReturned},
}

// CanTransition 判断履约状态能否从 from 变更为 to
func CanTransition(from, to FulfillmentStatus) bool {
	for _, next := range fulfillmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ActiveFulfillmentStatuses 是参与库存分配计算的履约状态集合。
// 订单进入 DELIVERED/CANCELLED/RETURNED 后视为已结清，不再占用分配。
var ActiveFulfillmentStatuses = []FulfillmentStatus{
	FulfillmentPending,
	FulfillmentPicked,
	FulfillmentPacked,
	FulfillmentShipped,
}

// IsActiveFulfillment 判断状态是否属于占用分配的活动集合
func IsActiveFulfillment(s FulfillmentStatus) bool {
	for _, a := range ActiveFulfillmentStatuses {
		if a == s {
			return true
		}
	}
	return false
}

// IsTerminalFulfillment 判断履约状态是否为终态（不允许任何后续转换）
func IsTerminalFulfillment(s FulfillmentStatus) bool {
	return s == FulfillmentCancelled || s == FulfillmentReturned
}

// ShippingInfo 表示发货信息。PACKED → SHIPPED 要求承运商与运单号均非空。
type ShippingInfo struct {
	Carrier        string     `json:"carrier"`
	TrackingNumber string     `json:"tracking_number"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

// OrderItem 表示订单行。UnitPrice 与 UnitCost 都是下单时刻的快照，
// 之后商品价格/成本变化不影响历史订单。
type OrderItem struct {
	ID        int64  `json:"id"`
	OrderID   int64  `json:"order_id"`
	ProductID int64  `json:"product_id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	UnitCost  int64  `json:"unit_cost"`
}

// Order 表示销售交易领域模型。
// 金额以最小货币单位（分）存储。订单创建后只能通过显式的
// 状态变更操作修改；进入终态后除取消/退货字段外不可变。
type Order struct {
	ID                 int64             `json:"id"`
	OrderNumber        string            `json:"order_number"`
	OrgID              int64             `json:"org_id"`
	BranchID           int64             `json:"branch_id"`
	Type               OrderType         `json:"type"`
	Status             OrderStatus       `json:"status"`
	FulfillmentStatus  FulfillmentStatus `json:"fulfillment_status"`
	Items              []*OrderItem      `json:"items"`
	Total              int64             `json:"total"`
	PaymentMethod      string            `json:"payment_method"`
	CustomerID         int64             `json:"customer_id,omitempty"`
	ExternalRef        string            `json:"external_ref,omitempty"`
	Shipping           *ShippingInfo     `json:"shipping,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	UserID             int64             `json:"user_id"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// HasShipped 判断货物是否已经离开门店（到达过 SHIPPED 或 DELIVERED）
func (o *Order) HasShipped() bool {
	return o.FulfillmentStatus == FulfillmentShipped || o.FulfillmentStatus == FulfillmentDelivered
}

// CancelOutcome 返回取消操作应落入的履约/财务状态。
// 履约标签反映货物是否实际出库：未发货记 CANCELLED，已发货记 RETURNED。
// 财务状态：已支付（COMPLETED）的订单转 REFUNDED，否则转 CANCELLED。
func (o *Order) CancelOutcome() (FulfillmentStatus, OrderStatus) {
	fulfillment := FulfillmentCancelled
	if o.HasShipped() {
		fulfillment = FulfillmentReturned
	}
	financial := OrderStatusCancelled
	if o.Status == OrderStatusCompleted {
		financial = OrderStatusRefunded
	}
	return fulfillment, financial
}

// ItemQuantity 返回订单中指定商品的数量之和
func (o *Order) ItemQuantity(productID int64) int {
	total := 0
	for _, it := range o.Items {
		if it.ProductID == productID {
			total += it.Quantity
		}
	}
	return total
}

// FulfillmentUpdateRequest 表示单个订单的履约状态变更请求
type FulfillmentUpdateRequest struct {
	Status         FulfillmentStatus `json:"status" binding:"required"`
	Carrier        string            `json:"carrier"`
	TrackingNumber string            `json:"tracking_number"`
}

// BulkStatusRequest 表示批量履约状态变更请求
type BulkStatusRequest struct {
	IDs    []int64           `json:"ids" binding:"required"`
	Status FulfillmentStatus `json:"status" binding:"required"`
}

// BulkStatusResult 表示批量变更中单个订单的结果。
// 单个失败不会阻断其余订单，调用方拿到逐单结果。
type BulkStatusResult struct {
	OrderID int64  `json:"order_id"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// CancelOrderRequest 表示取消/退货请求。Reason 必填。
type CancelOrderRequest struct {
	Reason  string `json:"reason" binding:"required"`
	Restock bool   `json:"restock"`
}

// ScanRequest 表示扫码完成请求
type ScanRequest struct {
	Code string `json:"code" binding:"required"`
}

// ScanResult 表示扫码完成的结果。
// AlreadyDelivered 为 true 时是无变更的幂等命中。
type ScanResult struct {
	Order            *Order `json:"order"`
	AlreadyDelivered bool   `json:"already_delivered"`
}

// OrderListRequest 表示订单列表查询请求
type OrderListRequest struct {
	Page              int                `json:"page"`
	PageSize          int                `json:"page_size"`
	BranchID          *int64             `json:"branch_id"`
	Type              *OrderType         `json:"type"`
	Status            *OrderStatus       `json:"status"`
	FulfillmentStatus *FulfillmentStatus `json:"fulfillment_status"`
}

// OrderListResponse 表示订单列表查询响应
type OrderListResponse struct {
	Orders   []*Order `json:"orders"`
	Total    int64    `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}
