package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stockflow/stockflow/internal/domain"
	"github.com/stockflow/stockflow/internal/mq"
	"github.com/stockflow/stockflow/internal/repo"
)

// StockService 定义手工库存操作接口
type StockService interface {
	// AdjustStock 施加手工库存变更并写入流水
	AdjustStock(orgID, branchID, userID int64, req *domain.AdjustStockRequest) (*domain.StockMovement, error)
	UpdateBinLocation(orgID, branchID, productID int64, bin string) error
	SetMinStock(orgID, branchID, productID int64, minStock int) error
	ListMovements(orgID int64, req *domain.MovementListRequest) (*domain.MovementListResponse, error)
}

// stockService 实现StockService接口
type stockService struct {
	stockRepo   repo.StockRepository
	productRepo repo.ProductRepository
	publisher   mq.EventPublisher
	logger      *zap.Logger
}

// NewStockService 创建库存操作服务实例
func NewStockService(stockRepo repo.StockRepository, productRepo repo.ProductRepository, publisher mq.EventPublisher, logger *zap.Logger) StockService {
	return &stockService{
		stockRepo:   stockRepo,
		productRepo: productRepo,
		publisher:   publisher,
		logger:      logger,
	}
}

// AdjustStock 手工库存调整。
// STOCK_IN 的数量必须为正；STOCK_OUT 与 ADJUSTMENT 携带带符号增量，
// 因此 +N 入库后 -N 出库恰好回到原值。把库存推到负数的增量
// 在存储层被守卫条件拒绝。
func (s *stockService) AdjustStock(orgID, branchID, userID int64, req *domain.AdjustStockRequest) (*domain.StockMovement, error) {
	if err := validateScope(orgID, branchID); err != nil {
		return nil, err
	}
	if req.Quantity == 0 {
		return nil, fmt.Errorf("%w: quantity must be non-zero", domain.ErrValidation)
	}
	if !req.Type.IsManual() {
		return nil, fmt.Errorf("%w: unsupported movement type %q", domain.ErrValidation, req.Type)
	}
	if req.Type == domain.MovementTypeStockIn && req.Quantity < 0 {
		return nil, fmt.Errorf("%w: STOCK_IN quantity must be positive", domain.ErrValidation)
	}

	product, err := s.productRepo.GetByID(orgID, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, req.ProductID)
	}

	// 惰性建行：首次调整时创建零库存台账
	if _, err := s.stockRepo.Ensure(orgID, branchID, req.ProductID); err != nil {
		return nil, err
	}

	if err := s.stockRepo.AdjustQuantity(orgID, branchID, req.ProductID, req.Quantity); err != nil {
		return nil, err
	}

	movement := &domain.StockMovement{
		OrgID:     orgID,
		BranchID:  branchID,
		ProductID: req.ProductID,
		Type:      req.Type,
		Quantity:  req.Quantity,
		Note:      req.Note,
		UserID:    userID,
	}
	if err := s.stockRepo.CreateMovement(movement); err != nil {
		// 库存已变更但流水写入失败，必须把不一致暴露到日志
		s.logger.Error("stock adjusted but movement record failed",
			zap.Int64("product_id", req.ProductID),
			zap.Int("quantity", req.Quantity),
			zap.Error(err))
		return nil, err
	}

	s.publishMovement(movement)
	return movement, nil
}

func (s *stockService) publishMovement(m *domain.StockMovement) {
	event := &mq.StockMovementEvent{
		MovementID: m.ID,
		OrgID:      m.OrgID,
		BranchID:   m.BranchID,
		ProductID:  m.ProductID,
		Type:       string(m.Type),
		Quantity:   m.Quantity,
		Note:       m.Note,
		UserID:     m.UserID,
		OccurredAt: time.Now(),
	}
	if err := s.publisher.Publish(context.Background(), mq.RoutingKeyStockMovement, event); err != nil {
		s.logger.Warn("failed to publish stock movement event",
			zap.Int64("movement_id", m.ID), zap.Error(err))
	}
}

// UpdateBinLocation 更新货位，纯元数据操作，不产生流水
func (s *stockService) UpdateBinLocation(orgID, branchID, productID int64, bin string) error {
	if err := validateScope(orgID, branchID); err != nil {
		return err
	}
	if _, err := s.stockRepo.Ensure(orgID, branchID, productID); err != nil {
		return err
	}
	return s.stockRepo.UpdateBinLocation(orgID, branchID, productID, bin)
}

// SetMinStock 设置低库存阈值
func (s *stockService) SetMinStock(orgID, branchID, productID int64, minStock int) error {
	if err := validateScope(orgID, branchID); err != nil {
		return err
	}
	if minStock < 0 {
		return fmt.Errorf("%w: min stock cannot be negative", domain.ErrValidation)
	}
	if _, err := s.stockRepo.Ensure(orgID, branchID, productID); err != nil {
		return err
	}
	return s.stockRepo.UpdateMinStock(orgID, branchID, productID, minStock)
}

// ListMovements 分页查询库存流水
func (s *stockService) ListMovements(orgID int64, req *domain.MovementListRequest) (*domain.MovementListResponse, error) {
	if orgID <= 0 {
		return nil, domain.ErrScopeRequired
	}

	movements, total, err := s.stockRepo.ListMovements(orgID, req)
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
	return &domain.MovementListResponse{
		Movements: movements,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	}, nil
}
