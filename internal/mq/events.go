// Package mq 提供基于RabbitMQ的业务事件投递。
// 库存变动、订单生命周期与采购收货都会产出事件，供下游
// 报表与对账消费；投递失败只记日志，不阻断业务主流程。
package mq

import "time"

// 事件路由键
const (
	RoutingKeyStockMovement = "stock.movement"
	RoutingKeyOrderCreated  = "order.created"
	RoutingKeyOrderStatus   = "order.status"
	RoutingKeyOrderCancel   = "order.cancelled"
	RoutingKeyPOReceived    = "purchase.received"
)

// StockMovementEvent 库存变动事件
type StockMovementEvent struct {
	MovementID int64     `json:"movement_id"`
	OrgID      int64     `json:"org_id"`
	BranchID   int64     `json:"branch_id"`
	ProductID  int64     `json:"product_id"`
	Type       string    `json:"type"`
	Quantity   int       `json:"quantity"`
	Note       string    `json:"note,omitempty"`
	UserID     int64     `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderLifecycleEvent 订单生命周期事件
type OrderLifecycleEvent struct {
	OrderID           int64     `json:"order_id"`
	OrderNumber       string    `json:"order_number"`
	OrgID             int64     `json:"org_id"`
	BranchID          int64     `json:"branch_id"`
	Status            string    `json:"status"`
	FulfillmentStatus string    `json:"fulfillment_status"`
	Total             int64     `json:"total"`
	Reason            string    `json:"reason,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// PurchaseOrderEvent 采购单事件
type PurchaseOrderEvent struct {
	PurchaseOrderID int64     `json:"purchase_order_id"`
	ReferenceNo     string    `json:"reference_no"`
	OrgID           int64     `json:"org_id"`
	BranchID        int64     `json:"branch_id"`
	Status          string    `json:"status"`
	TotalCost       int64     `json:"total_cost"`
	OccurredAt      time.Time `json:"occurred_at"`
}
