package domain

import "time"

// CartItem 表示收银台购物车中的一行
type CartItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// HeldOrder 表示挂起的购物车。收银员可以挂单服务下一位顾客，
// 之后按 ID 恢复继续结账。挂单只存在于内存，不触碰库存。
type HeldOrder struct {
	ID        string      `json:"id"`
	OrgID     int64       `json:"org_id"`
	BranchID  int64       `json:"branch_id"`
	UserID    int64       `json:"user_id"`
	Items     []*CartItem `json:"items"`
	Note      string      `json:"note,omitempty"`
	HeldAt    time.Time   `json:"held_at"`
}

// CheckoutRequest 表示结账请求。
// AutoDeliver 为 true 时订单直接落地为 DELIVERED（现场交付），
// 否则进入 PENDING 等待履约流程。
type CheckoutRequest struct {
	Items         []CartItem `json:"items" binding:"required"`
	PaymentMethod string     `json:"payment_method" binding:"required"`
	CustomerID    int64      `json:"customer_id"`
	ExternalRef   string     `json:"external_ref"`
	AutoDeliver   bool       `json:"auto_deliver"`
}

// HoldRequest 表示挂单请求
type HoldRequest struct {
	Items []CartItem `json:"items" binding:"required"`
	Note  string     `json:"note"`
}
