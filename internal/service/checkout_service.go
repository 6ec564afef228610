package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stockflow/stockflow/internal/domain"
	"github.com/stockflow/stockflow/internal/mq"
	"github.com/stockflow/stockflow/internal/repo"
)

// CheckoutService 定义收银台业务接口。
// 购物车与挂单只存在于内存；结账不做任何库存扣减，
// 库存占用完全由订单的履约状态推导。
type CheckoutService interface {
	// 购物车
	GetCart(orgID, branchID, userID int64) []*domain.CartItem
	SetCartItem(orgID, branchID, userID int64, productID int64, quantity int) error
	ClearCart(orgID, branchID, userID int64)

	// 挂单
	Hold(orgID, branchID, userID int64, req *domain.HoldRequest) (*domain.HeldOrder, error)
	ListHeld(orgID, branchID int64) []*domain.HeldOrder
	Resume(orgID, branchID, userID int64, holdID string) ([]*domain.CartItem, error)

	// Checkout 创建销售订单，价格与成本取下单时刻快照
	Checkout(orgID, branchID, userID int64, req *domain.CheckoutRequest) (*domain.Order, error)
}

// checkoutService 实现CheckoutService接口
type checkoutService struct {
	productRepo repo.ProductRepository
	stockRepo   repo.StockRepository
	orderRepo   repo.OrderRepository
	publisher   mq.EventPublisher
	logger      *zap.Logger

	mu    sync.Mutex
	carts map[string][]*domain.CartItem
	held  map[string]*domain.HeldOrder
}

// NewCheckoutService 创建收银台服务实例
func NewCheckoutService(productRepo repo.ProductRepository, stockRepo repo.StockRepository, orderRepo repo.OrderRepository, publisher mq.EventPublisher, logger *zap.Logger) CheckoutService {
	return &checkoutService{
		productRepo: productRepo,
		stockRepo:   stockRepo,
		orderRepo:   orderRepo,
		publisher:   publisher,
		logger:      logger,
		carts:       make(map[string][]*domain.CartItem),
		held:        make(map[string]*domain.HeldOrder),
	}
}

func cartKey(orgID, branchID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", orgID, branchID, userID)
}

// GetCart 返回当前购物车内容
func (s *checkoutService) GetCart(orgID, branchID, userID int64) []*domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[cartKey(orgID, branchID, userID)]
	out := make([]*domain.CartItem, len(items))
	for i, it := range items {
		copied := *it
		out[i] = &copied
	}
	return out
}

// SetCartItem 设置购物车行数量，数量为 0 表示移除该行
func (s *checkoutService) SetCartItem(orgID, branchID, userID int64, productID int64, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: quantity cannot be negative", domain.ErrValidation)
	}

	product, err := s.productRepo.GetByID(orgID, productID)
	if err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("%w: product %d", domain.ErrNotFound, productID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := cartKey(orgID, branchID, userID)
	items := s.carts[key]
	for i, it := range items {
		if it.ProductID == productID {
			if quantity == 0 {
				s.carts[key] = append(items[:i], items[i+1:]...)
			} else {
				it.Quantity = quantity
			}
			return nil
		}
	}
	if quantity > 0 {
		s.carts[key] = append(items, &domain.CartItem{ProductID: productID, Quantity: quantity})
	}
	return nil
}

// ClearCart 清空购物车
func (s *checkoutService) ClearCart(orgID, branchID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, cartKey(orgID, branchID, userID))
}

// Hold 挂起当前购物车，返回可恢复的挂单
func (s *checkoutService) Hold(orgID, branchID, userID int64, req *domain.HoldRequest) (*domain.HeldOrder, error) {
	if err := validateScope(orgID, branchID); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: cannot hold an empty cart", domain.ErrValidation)
	}

	items := make([]*domain.CartItem, len(req.Items))
	for i := range req.Items {
		if req.Items[i].Quantity <= 0 {
			return nil, fmt.Errorf("%w: item quantity must be positive", domain.ErrValidation)
		}
		copied := req.Items[i]
		items[i] = &copied
	}

	hold := &domain.HeldOrder{
		ID:       uuid.NewString(),
		OrgID:    orgID,
		BranchID: branchID,
		UserID:   userID,
		Items:    items,
		Note:     req.Note,
		HeldAt:   time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.held[hold.ID] = hold
	delete(s.carts, cartKey(orgID, branchID, userID))
	return hold, nil
}

// ListHeld 列出门店的全部挂单
func (s *checkoutService) ListHeld(orgID, branchID int64) []*domain.HeldOrder {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.HeldOrder
	for _, h := range s.held {
		if h.OrgID == orgID && h.BranchID == branchID {
			out = append(out, h)
		}
	}
	return out
}

// Resume 恢复挂单到当前购物车，挂单随即删除
func (s *checkoutService) Resume(orgID, branchID, userID int64, holdID string) ([]*domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hold, ok := s.held[holdID]
	if !ok || hold.OrgID != orgID || hold.BranchID != branchID {
		return nil, fmt.Errorf("%w: held order %s", domain.ErrNotFound, holdID)
	}

	delete(s.held, holdID)
	s.carts[cartKey(orgID, branchID, userID)] = hold.Items
	return hold.Items, nil
}

// Checkout 创建销售订单。
// 财务状态直接落 COMPLETED（收银台一手交钱一手记账）；
// 履约状态默认 PENDING 进入拣货流程，AutoDeliver 时直接 DELIVERED
// （现场带走，不占用分配）。不触碰物理库存。
func (s *checkoutService) Checkout(orgID, branchID, userID int64, req *domain.CheckoutRequest) (*domain.Order, error) {
	if err := validateScope(orgID, branchID); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", domain.ErrValidation)
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return nil, fmt.Errorf("%w: payment method is required", domain.ErrValidation)
	}

	ids := make([]int64, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item quantity must be positive", domain.ErrValidation)
		}
		ids = append(ids, it.ProductID)
	}

	products, err := s.productRepo.GetByIDs(orgID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var (
		items []*domain.OrderItem
		total int64
	)
	for _, it := range req.Items {
		product, ok := byID[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, it.ProductID)
		}
		if !product.IsAvailable() {
			return nil, fmt.Errorf("%w: product %s is not for sale", domain.ErrValidation, product.SKU)
		}
		items = append(items, &domain.OrderItem{
			ProductID: product.ID,
			SKU:       product.SKU,
			Name:      product.Name,
			Quantity:  it.Quantity,
			UnitPrice: product.Price,
			UnitCost:  product.Cost,
		})
		total += int64(it.Quantity) * product.Price
	}

	fulfillment := domain.FulfillmentPending
	if req.AutoDeliver {
		fulfillment = domain.FulfillmentDelivered
	}

	order := &domain.Order{
		OrderNumber:       newOrderNumber(),
		OrgID:             orgID,
		BranchID:          branchID,
		Type:              domain.OrderTypeSale,
		Status:            domain.OrderStatusCompleted,
		FulfillmentStatus: fulfillment,
		Items:             items,
		Total:             total,
		PaymentMethod:     req.PaymentMethod,
		CustomerID:        req.CustomerID,
		ExternalRef:       req.ExternalRef,
		UserID:            userID,
	}

	// 首次售出的商品此刻建立零库存台账，让它立即出现在库存视图里
	for _, it := range items {
		if _, err := s.stockRepo.Ensure(orgID, branchID, it.ProductID); err != nil {
			return nil, err
		}
	}

	if err := s.orderRepo.Create(order); err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.carts, cartKey(orgID, branchID, userID))
	s.mu.Unlock()

	s.publishOrderEvent(mq.RoutingKeyOrderCreated, order, "")
	return order, nil
}

func (s *checkoutService) publishOrderEvent(routingKey string, order *domain.Order, reason string) {
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

// newOrderNumber 生成订单号：日期前缀加短随机段，便于口头沟通
func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("SO-%s-%s", time.Now().Format("20060102"), suffix)
}
