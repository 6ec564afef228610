package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stockflow/stockflow/internal/domain"
	"github.com/stockflow/stockflow/internal/mq"
	"github.com/stockflow/stockflow/internal/repo"
)

// PurchasingService 定义采购业务接口
type PurchasingService interface {
	// 采购单
	CreatePO(orgID, branchID int64, req *domain.CreatePORequest) (*domain.PurchaseOrder, error)
	GetPO(orgID, id int64) (*domain.PurchaseOrder, error)
	ListPOs(orgID int64, req *domain.POListRequest) (*domain.POListResponse, error)
	// Receive 收货：逐行加库存、写流水、更新商品成本
	Receive(orgID, poID, userID int64) (*domain.PurchaseOrder, error)
	CancelPO(orgID, poID int64) (*domain.PurchaseOrder, error)

	// 供应商
	CreateSupplier(orgID int64, req *domain.CreateSupplierRequest) (*domain.Supplier, error)
	ListSuppliers(orgID int64) ([]*domain.Supplier, error)
}

// purchasingService 实现PurchasingService接口
type purchasingService struct {
	poRepo       repo.PurchaseOrderRepository
	stockRepo    repo.StockRepository
	productRepo  repo.ProductRepository
	supplierRepo repo.SupplierRepository
	publisher    mq.EventPublisher
	logger       *zap.Logger
}

// NewPurchasingService 创建采购服务实例
func NewPurchasingService(poRepo repo.PurchaseOrderRepository, stockRepo repo.StockRepository, productRepo repo.ProductRepository, supplierRepo repo.SupplierRepository, publisher mq.EventPublisher, logger *zap.Logger) PurchasingService {
	return &purchasingService{
		poRepo:       poRepo,
		stockRepo:    stockRepo,
		productRepo:  productRepo,
		supplierRepo: supplierRepo,
		publisher:    publisher,
		logger:       logger,
	}
}

// CreatePO 创建采购单，初始状态 OPEN
func (s *purchasingService) CreatePO(orgID, branchID int64, req *domain.CreatePORequest) (*domain.PurchaseOrder, error) {
	if err := validateScope(orgID, branchID); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: purchase order needs at least one item", domain.ErrValidation)
	}

	supplier, err := s.supplierRepo.GetByID(orgID, req.SupplierID)
	if err != nil {
		return nil, err
	}
	if supplier == nil {
		return nil, fmt.Errorf("%w: supplier %d", domain.ErrNotFound, req.SupplierID)
	}

	items := make([]*domain.POItem, 0, len(req.Items))
	for _, spec := range req.Items {
		if spec.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item quantity must be positive", domain.ErrValidation)
		}
		if spec.UnitCost < 0 {
			return nil, fmt.Errorf("%w: unit cost cannot be negative", domain.ErrValidation)
		}
		product, err := s.productRepo.GetByID(orgID, spec.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, spec.ProductID)
		}
		items = append(items, &domain.POItem{
			ProductID: spec.ProductID,
			Quantity:  spec.Quantity,
			UnitCost:  spec.UnitCost,
		})
	}

	po := &domain.PurchaseOrder{
		ReferenceNo: newPOReference(),
		OrgID:       orgID,
		BranchID:    branchID,
		SupplierID:  req.SupplierID,
		Status:      domain.POStatusOpen,
		Items:       items,
		Notes:       req.Notes,
		OrderDate:   time.Now(),
	}
	po.TotalCost = po.ComputeTotalCost()

	if err := s.poRepo.Create(po); err != nil {
		return nil, err
	}
	return po, nil
}

// GetPO 获取采购单详情
func (s *purchasingService) GetPO(orgID, id int64) (*domain.PurchaseOrder, error) {
	if orgID <= 0 {
		return nil, domain.ErrScopeRequired
	}
	po, err := s.poRepo.GetByID(orgID, id)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, fmt.Errorf("%w: purchase order %d", domain.ErrNotFound, id)
	}
	return po, nil
}

// ListPOs 分页查询采购单
func (s *purchasingService) ListPOs(orgID int64, req *domain.POListRequest) (*domain.POListResponse, error) {
	if orgID <= 0 {
		return nil, domain.ErrScopeRequired
	}

	pos, total, err := s.poRepo.List(orgID, req)
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
	return &domain.POListResponse{
		PurchaseOrders: pos,
		Total:          total,
		Page:           page,
		PageSize:       pageSize,
	}, nil
}

// Receive 采购收货。
// 先用 CAS 把 OPEN 翻成 RECEIVING，并发重复收货只有一方能赢；
// 然后逐行加库存、写 PO_RECEIPT 流水、把进价写回商品成本。
// 任何一行失败时回滚已入库的行并把状态翻回 OPEN，允许重试。
func (s *purchasingService) Receive(orgID, poID, userID int64) (*domain.PurchaseOrder, error) {
	po, err := s.GetPO(orgID, poID)
	if err != nil {
		return nil, err
	}
	if po.Status != domain.POStatusOpen {
		return nil, fmt.Errorf("%w: purchase order is %s", domain.ErrInvalidTransition, po.Status)
	}

	if err := s.poRepo.UpdateStatusIf(orgID, poID, domain.POStatusOpen, domain.POStatusReceiving); err != nil {
		return nil, fmt.Errorf("%w: purchase order is no longer open", domain.ErrInvalidTransition)
	}

	var applied []*domain.POItem
	for _, item := range po.Items {
		if _, err := s.stockRepo.Ensure(orgID, po.BranchID, item.ProductID); err != nil {
			s.rollbackReceive(po, applied)
			return nil, err
		}
		if err := s.stockRepo.AdjustQuantity(orgID, po.BranchID, item.ProductID, item.Quantity); err != nil {
			s.rollbackReceive(po, applied)
			return nil, err
		}
		applied = append(applied, item)

		movement := &domain.StockMovement{
			OrgID:     orgID,
			BranchID:  po.BranchID,
			ProductID: item.ProductID,
			Type:      domain.MovementTypePOReceipt,
			Quantity:  item.Quantity,
			Note:      "purchase order receipt",
			UserID:    userID,
			Reference: po.ReferenceNo,
		}
		if err := s.stockRepo.CreateMovement(movement); err != nil {
			s.rollbackReceive(po, applied)
			return nil, err
		}

		// 最后一次收货的进价覆盖商品成本
		if err := s.productRepo.UpdateCost(orgID, item.ProductID, item.UnitCost); err != nil {
			s.rollbackReceive(po, applied)
			return nil, err
		}
	}

	receivedAt := time.Now()
	if err := s.poRepo.MarkReceived(orgID, poID, receivedAt); err != nil {
		s.rollbackReceive(po, applied)
		return nil, err
	}

	po.Status = domain.POStatusReceived
	po.ReceivedDate = &receivedAt

	s.publishPOEvent(po)
	return po, nil
}

// rollbackReceive 撤销已入库的行并把采购单翻回 OPEN。
// 回滚失败只能记日志，留给人工对账。
func (s *purchasingService) rollbackReceive(po *domain.PurchaseOrder, applied []*domain.POItem) {
	for _, item := range applied {
		if err := s.stockRepo.AdjustQuantity(po.OrgID, po.BranchID, item.ProductID, -item.Quantity); err != nil {
			s.logger.Error("failed to roll back received stock",
				zap.Int64("purchase_order_id", po.ID),
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
		}
	}
	if err := s.poRepo.UpdateStatusIf(po.OrgID, po.ID, domain.POStatusReceiving, domain.POStatusOpen); err != nil {
		s.logger.Error("failed to reset purchase order status after rollback",
			zap.Int64("purchase_order_id", po.ID),
			zap.Error(err))
	}
}

// CancelPO 取消尚未收货的采购单
func (s *purchasingService) CancelPO(orgID, poID int64) (*domain.PurchaseOrder, error) {
	po, err := s.GetPO(orgID, poID)
	if err != nil {
		return nil, err
	}
	if po.Status != domain.POStatusOpen {
		return nil, fmt.Errorf("%w: purchase order is %s", domain.ErrInvalidTransition, po.Status)
	}

	if err := s.poRepo.UpdateStatusIf(orgID, poID, domain.POStatusOpen, domain.POStatusCancelled); err != nil {
		return nil, fmt.Errorf("%w: purchase order is no longer open", domain.ErrInvalidTransition)
	}
	po.Status = domain.POStatusCancelled
	return po, nil
}

// CreateSupplier 创建供应商
func (s *purchasingService) CreateSupplier(orgID int64, req *domain.CreateSupplierRequest) (*domain.Supplier, error) {
	if orgID <= 0 {
		return nil, domain.ErrScopeRequired
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: supplier name is required", domain.ErrValidation)
	}

	supplier := &domain.Supplier{
		OrgID:   orgID,
		Name:    req.Name,
		Contact: req.Contact,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	}
	if err := s.supplierRepo.Create(supplier); err != nil {
		return nil, err
	}
	return supplier, nil
}

// ListSuppliers 列出供应商
func (s *purchasingService) ListSuppliers(orgID int64) ([]*domain.Supplier, error) {
	if orgID <= 0 {
		return nil, domain.ErrScopeRequired
	}
	return s.supplierRepo.List(orgID)
}

func (s *purchasingService) publishPOEvent(po *domain.PurchaseOrder) {
	event := &mq.PurchaseOrderEvent{
		PurchaseOrderID: po.ID,
		ReferenceNo:     po.ReferenceNo,
		OrgID:           po.OrgID,
		BranchID:        po.BranchID,
		Status:          string(po.Status),
		TotalCost:       po.TotalCost,
		OccurredAt:      time.Now(),
	}
	if err := s.publisher.Publish(context.Background(), mq.RoutingKeyPOReceived, event); err != nil {
		s.logger.Warn("failed to publish purchase order event",
			zap.Int64("purchase_order_id", po.ID), zap.Error(err))
	}
}

// newPOReference 生成采购单号
func newPOReference() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("PO-%s-%s", time.Now().Format("20060102"), suffix)
}
