package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stockflow/stockflow/internal/domain"
	"github.com/stockflow/stockflow/internal/mq"
	"github.com/stockflow/stockflow/internal/repo"
)

// FulfillmentService 定义订单履约状态机接口
type FulfillmentService interface {
	GetOrder(orgID, id int64) (*domain.Order, error)
	ListOrders(orgID int64, req *domain.OrderListRequest) (*domain.OrderListResponse, error)

	// Transition 沿主干推进履约状态；取消/退货走 Cancel
	Transition(orgID, orderID int64, req *domain.FulfillmentUpdateRequest) (*domain.Order, error)
	// BulkTransition 批量推进，逐单结果，单个失败不阻断其余
	BulkTransition(orgID int64, req *domain.BulkStatusRequest) []*domain.BulkStatusResult
	// Cancel 从任意非终态取消订单，可选回库
	Cancel(orgID, orderID, userID int64, req *domain.CancelOrderRequest) (*domain.Order, error)
	// ScanComplete 扫码直达 DELIVERED，按运单号/订单号/外部单号匹配
	ScanComplete(orgID int64, req *domain.ScanRequest) (*domain.ScanResult, error)
}

// fulfillmentService 实现FulfillmentService接口
type fulfillmentService struct {
	orderRepo repo.OrderRepository
	stockRepo repo.StockRepository
	publisher mq.EventPublisher
	logger    *zap.Logger
}

// NewFulfillmentService 创建履约服务实例
func NewFulfillmentService(orderRepo repo.OrderRepository, stockRepo repo.StockRepository, publisher mq.EventPublisher, logger *zap.Logger) FulfillmentService {
	return &fulfillmentService{
		orderRepo: orderRepo,
		stockRepo: stockRepo,
		publisher: publisher,
		logger:    logger,
	}
}

// GetOrder 获取订单详情
func (s *fulfillmentService) GetOrder(orgID, id int64) (*domain.Order, error) {
	if orgID <= 0 {
		return nil, domain.ErrScopeRequired
	}
	order, err := s.orderRepo.GetByID(orgID, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %d", domain.ErrNotFound, id)
	}
	return order, nil
}

// ListOrders 分页查询订单
func (s *fulfillmentService) ListOrders(orgID int64, req *domain.OrderListRequest) (*domain.OrderListResponse, error) {
	if orgID <= 0 {
		return nil, domain.ErrScopeRequired
	}

	orders, total, err := s.orderRepo.List(orgID, req)
	if err != nil {
		return nil, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return &domain.OrderListResponse{
		Orders:   orders,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// Transition 推进履约状态。
// 只接受主干目标（PICKED/PACKED/SHIPPED/DELIVERED）；转入 SHIPPED
// 必须带承运商与运单号，转入 SHIPPED/DELIVERED 时记录时间戳。
func (s *fulfillmentService) Transition(orgID, orderID int64, req *domain.FulfillmentUpdateRequest) (*domain.Order, error) {
	order, err := s.GetOrder(orgID, orderID)
	if err != nil {
		return nil, err
	}

	to := req.Status
	if to == domain.FulfillmentCancelled || to == domain.FulfillmentReturned {
		return nil, fmt.Errorf("%w: cancellation must go through the cancel operation", domain.ErrValidation)
	}
	if !domain.CanTransition(order.FulfillmentStatus, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.FulfillmentStatus, to)
	}

	now := time.Now()
	switch to {
	case domain.FulfillmentShipped:
		if strings.TrimSpace(req.Carrier) == "" || strings.TrimSpace(req.TrackingNumber) == "" {
			return nil, fmt.Errorf("%w: carrier and tracking number are required to ship", domain.ErrValidation)
		}
		order.Shipping = &domain.ShippingInfo{
			Carrier:        req.Carrier,
			TrackingNumber: req.TrackingNumber,
			ShippedAt:      &now,
		}
	case domain.FulfillmentDelivered:
		if order.Shipping == nil {
			order.Shipping = &domain.ShippingInfo{}
		}
		order.Shipping.DeliveredAt = &now
	}

	order.FulfillmentStatus = to
	if err := s.orderRepo.UpdateFulfillment(order); err != nil {
		return nil, err
	}

	s.publishOrderEvent(mq.RoutingKeyOrderStatus, order, "")
	return order, nil
}

// BulkTransition 批量推进履约状态
func (s *fulfillmentService) BulkTransition(orgID int64, req *domain.BulkStatusRequest) []*domain.BulkStatusResult {
	results := make([]*domain.BulkStatusResult, 0, len(req.IDs))
	for _, id := range req.IDs {
		_, err := s.Transition(orgID, id, &domain.FulfillmentUpdateRequest{Status: req.Status})
		result := &domain.BulkStatusResult{OrderID: id, OK: err == nil}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results
}

// Cancel 取消订单。
// 履约标签按是否已发货落 CANCELLED 或 RETURNED，已支付订单转 REFUNDED。
// Restock 只对已发货订单生效：货真正离开过门店才需要回库；
// 未发货订单从未扣减物理库存，取消本身就释放了分配，再回库会重复加。
func (s *fulfillmentService) Cancel(orgID, orderID, userID int64, req *domain.CancelOrderRequest) (*domain.Order, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: cancellation reason is required", domain.ErrValidation)
	}

	order, err := s.GetOrder(orgID, orderID)
	if err != nil {
		return nil, err
	}
	if domain.IsTerminalFulfillment(order.FulfillmentStatus) {
		return nil, fmt.Errorf("%w: order already %s", domain.ErrInvalidTransition, order.FulfillmentStatus)
	}

	wasShipped := order.HasShipped()
	fulfillment, financial := order.CancelOutcome()
	order.FulfillmentStatus = fulfillment
	order.Status = financial
	order.CancellationReason = req.Reason

	if err := s.orderRepo.UpdateCancellation(order); err != nil {
		return nil, err
	}

	if req.Restock && wasShipped {
		if err := s.restockItems(order, userID); err != nil {
			return nil, err
		}
	}

	s.publishOrderEvent(mq.RoutingKeyOrderCancel, order, req.Reason)
	return order, nil
}

func (s *fulfillmentService) restockItems(order *domain.Order, userID int64) error {
	for _, item := range order.Items {
		if _, err := s.stockRepo.Ensure(order.OrgID, order.BranchID, item.ProductID); err != nil {
			return err
		}
		if err := s.stockRepo.AdjustQuantity(order.OrgID, order.BranchID, item.ProductID, item.Quantity); err != nil {
			return err
		}
		movement := &domain.StockMovement{
			OrgID:     order.OrgID,
			BranchID:  order.BranchID,
			ProductID: item.ProductID,
			Type:      domain.MovementTypeRestock,
			Quantity:  item.Quantity,
			Note:      "order return restock",
			UserID:    userID,
			Reference: order.OrderNumber,
		}
		if err := s.stockRepo.CreateMovement(movement); err != nil {
			s.logger.Error("restock applied but movement record failed",
				zap.Int64("order_id", order.ID),
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
			return err
		}
	}
	return nil
}

// ScanComplete 扫码完成订单。
// 命中已 DELIVERED 的订单是幂等命中，返回 AlreadyDelivered 不报错；
// 命中终态订单报非法转换。其余状态直达 DELIVERED，跳过中间状态。
func (s *fulfillmentService) ScanComplete(orgID int64, req *domain.ScanRequest) (*domain.ScanResult, error) {
	if orgID <= 0 {
		return nil, domain.ErrScopeRequired
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, fmt.Errorf("%w: scan code is required", domain.ErrValidation)
	}

	order, err := s.orderRepo.FindByScanCode(orgID, code)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: no order matches code %q", domain.ErrNotFound, code)
	}

	if order.FulfillmentStatus == domain.FulfillmentDelivered {
		return &domain.ScanResult{Order: order, AlreadyDelivered: true}, nil
	}
	if domain.IsTerminalFulfillment(order.FulfillmentStatus) {
		return nil, fmt.Errorf("%w: order is %s", domain.ErrInvalidTransition, order.FulfillmentStatus)
	}

	now := time.Now()
	if order.Shipping == nil {
		order.Shipping = &domain.ShippingInfo{}
	}
	order.Shipping.DeliveredAt = &now
	order.FulfillmentStatus = domain.FulfillmentDelivered

	if err := s.orderRepo.UpdateFulfillment(order); err != nil {
		return nil, err
	}

	s.publishOrderEvent(mq.RoutingKeyOrderStatus, order, "")
	return &domain.ScanResult{Order: order}, nil
}

func (s *fulfillmentService) publishOrderEvent(routingKey string, order *domain.Order, reason string) {
	event := &mq.OrderLifecycleEvent{
		OrderID:           order.ID,
		OrderNumber:       order.OrderNumber,
		OrgID:             order.OrgID,
		BranchID:          order.BranchID,
		Status:            string(order.Status),
		FulfillmentStatus: string(order.FulfillmentStatus),
		Total:             order.Total,
		Reason:            reason,
		OccurredAt:        time.Now(),
	}
	if err := s.publisher.Publish(context.Background(), routingKey, event); err != nil {
		s.logger.Warn("failed to publish order event",
			zap.Int64("order_id", order.ID), zap.Error(err))
	}
}
