// Package service 实现库存分配与订单履约的业务逻辑层。
package service

import (
	"fmt"

	"github.com/stockflow/stockflow/internal/domain"
	"github.com/stockflow/stockflow/internal/repo"
)

// AllocationService 定义库存分配计算接口。
// 已分配数量永远不落库，每次读取都从活动订单实时推导，
// 所以订单状态一旦变化，可用库存立即随之变化。
type AllocationService interface {
	PhysicalStock(orgID, branchID, productID int64) (int, error)
	AllocatedStock(orgID, branchID, productID int64) (int, error)
	AvailableStock(orgID, branchID, productID int64) (int, error)
	StockView(orgID, branchID, productID int64) (*domain.StockView, error)
	BranchStockViews(orgID, branchID int64) ([]*domain.StockView, error)
	LowStockAlerts(orgID, branchID int64) ([]*LowStockAlert, error)
}

// LowStockAlert 低库存警告，按可用库存（而非物理库存）判定
type LowStockAlert struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	ProductSKU  string `json:"product_sku"`
	BranchID    int64  `json:"branch_id"`
	Available   int    `json:"available"`
	MinStock    int    `json:"min_stock"`
	Shortage    int    `json:"shortage"`
}

// allocationService 实现AllocationService接口
type allocationService struct {
	stockRepo   repo.StockRepository
	orderRepo   repo.OrderRepository
	productRepo repo.ProductRepository
}

// NewAllocationService 创建分配计算服务实例
func NewAllocationService(stockRepo repo.StockRepository, orderRepo repo.OrderRepository, productRepo repo.ProductRepository) AllocationService {
	return &allocationService{
		stockRepo:   stockRepo,
		orderRepo:   orderRepo,
		productRepo: productRepo,
	}
}

func validateScope(orgID, branchID int64) error {
	if orgID <= 0 || branchID <= 0 {
		return domain.ErrScopeRequired
	}
	return nil
}

// PhysicalStock 返回实际在库数量。没有库存记录视为 0，不报错。
func (s *allocationService) PhysicalStock(orgID, branchID, productID int64) (int, error) {
	if err := validateScope(orgID, branchID); err != nil {
		return 0, err
	}

	level, err := s.stockRepo.GetByProduct(orgID, branchID, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to get stock level: %w", err)
	}
	if level == nil {
		return 0, nil
	}
	return level.Quantity, nil
}

// AllocatedStock 返回活动 SALE 订单占用的数量
func (s *allocationService) AllocatedStock(orgID, branchID, productID int64) (int, error) {
	if err := validateScope(orgID, branchID); err != nil {
		return 0, err
	}
	return s.orderRepo.AllocatedQuantity(orgID, branchID, productID)
}

// AvailableStock 返回可承诺数量：物理库存减去已分配。可以为负。
func (s *allocationService) AvailableStock(orgID, branchID, productID int64) (int, error) {
	view, err := s.StockView(orgID, branchID, productID)
	if err != nil {
		return 0, err
	}
	return view.Available, nil
}

// StockView 返回单个商品的完整分配视图
func (s *allocationService) StockView(orgID, branchID, productID int64) (*domain.StockView, error) {
	if err := validateScope(orgID, branchID); err != nil {
		return nil, err
	}

	level, err := s.stockRepo.GetByProduct(orgID, branchID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stock level: %w", err)
	}

	physical := 0
	minStock := domain.DefaultMinStock
	if level != nil {
		physical = level.Quantity
		minStock = level.MinStock
	}

	allocated, err := s.orderRepo.AllocatedQuantity(orgID, branchID, productID)
	if err != nil {
		return nil, err
	}

	available := physical - allocated
	return &domain.StockView{
		ProductID: productID,
		BranchID:  branchID,
		Physical:  physical,
		Allocated: allocated,
		Available: available,
		MinStock:  minStock,
		LowStock:  available <= minStock,
		Oversold:  available < 0,
	}, nil
}

// BranchStockViews 返回门店全量分配视图。
// 一次分组聚合拿到所有商品的已分配数量，避免逐商品查询。
func (s *allocationService) BranchStockViews(orgID, branchID int64) ([]*domain.StockView, error) {
	if err := validateScope(orgID, branchID); err != nil {
		return nil, err
	}

	levels, err := s.stockRepo.ListByBranch(orgID, branchID)
	if err != nil {
		return nil, err
	}

	allocated, err := s.orderRepo.AllocatedByBranch(orgID, branchID)
	if err != nil {
		return nil, err
	}

	views := make([]*domain.StockView, 0, len(levels))
	seen := make(map[int64]bool, len(levels))
	for _, level := range levels {
		alloc := allocated[level.ProductID]
		available := level.Quantity - alloc
		views = append(views, &domain.StockView{
			ProductID: level.ProductID,
			BranchID:  branchID,
			Physical:  level.Quantity,
			Allocated: alloc,
			Available: available,
			MinStock:  level.MinStock,
			LowStock:  available <= level.MinStock,
			Oversold:  available < 0,
		})
		seen[level.ProductID] = true
	}

	// 有活动订单但尚无库存行的商品：物理库存按 0 计，仍然要出现在视图里
	for productID, alloc := range allocated {
		if seen[productID] || alloc == 0 {
			continue
		}
		views = append(views, &domain.StockView{
			ProductID: productID,
			BranchID:  branchID,
			Physical:  0,
			Allocated: alloc,
			Available: -alloc,
			MinStock:  domain.DefaultMinStock,
			LowStock:  true,
			Oversold:  true,
		})
	}
	return views, nil
}

// LowStockAlerts 返回门店低库存警告列表
func (s *allocationService) LowStockAlerts(orgID, branchID int64) ([]*LowStockAlert, error) {
	views, err := s.BranchStockViews(orgID, branchID)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, v := range views {
		if v.LowStock {
			ids = append(ids, v.ProductID)
		}
	}
	if len(ids) == 0 {
		return []*LowStockAlert{}, nil
	}

	products, err := s.productRepo.GetByIDs(orgID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var alerts []*LowStockAlert
	for _, v := range views {
		if !v.LowStock {
			continue
		}
		alert := &LowStockAlert{
			ProductID: v.ProductID,
			BranchID:  branchID,
			Available: v.Available,
			MinStock:  v.MinStock,
			Shortage:  v.MinStock - v.Available,
		}
		if p, ok := byID[v.ProductID]; ok {
			alert.ProductName = p.Name
			alert.ProductSKU = p.SKU
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}
