package service

import (
	"fmt"
	"time"

	"github.com/stockflow/stockflow/internal/domain"
	"github.com/stockflow/stockflow/internal/repo"
)

// Mock ProductRepository for testing
type mockProductRepository struct {
	products map[int64]*domain.Product
	nextID   int64
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products: make(map[int64]*domain.Product),
		nextID:   1,
	}
}

func (m *mockProductRepository) Create(product *domain.Product) error {
	for _, p := range m.products {
		if p.OrgID == product.OrgID && p.SKU == product.SKU {
			return fmt.Errorf("SKU already exists")
		}
	}
	product.ID = m.nextID
	m.nextID++
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) GetByID(orgID, id int64) (*domain.Product, error) {
	product, exists := m.products[id]
	if !exists || product.OrgID != orgID {
		return nil, nil
	}
	return product, nil
}

func (m *mockProductRepository) GetBySKU(orgID int64, sku string) (*domain.Product, error) {
	for _, p := range m.products {
		if p.OrgID == orgID && p.SKU == sku {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProductRepository) Update(product *domain.Product) error {
	existing, exists := m.products[product.ID]
	if !exists || existing.OrgID != product.OrgID {
		return fmt.Errorf("product not found")
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) List(orgID int64, req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	var result []*domain.Product
	for _, p := range m.products {
		if p.OrgID == orgID {
			result = append(result, p)
		}
	}
	return result, int64(len(result)), nil
}

func (m *mockProductRepository) GetByIDs(orgID int64, ids []int64) ([]*domain.Product, error) {
	var result []*domain.Product
	for _, id := range ids {
		if p, exists := m.products[id]; exists && p.OrgID == orgID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockProductRepository) UpdateCost(orgID, id int64, cost int64) error {
	p, exists := m.products[id]
	if !exists || p.OrgID != orgID {
		return fmt.Errorf("product not found")
	}
	p.Cost = cost
	return nil
}

// Mock StockRepository for testing
type mockStockRepository struct {
	levels    map[string]*domain.StockLevel
	movements []*domain.StockMovement
	nextID    int64

	adjustErr   error
	movementErr error
}

func newMockStockRepository() *mockStockRepository {
	return &mockStockRepository{
		levels: make(map[string]*domain.StockLevel),
		nextID: 1,
	}
}

func stockKey(orgID, branchID, productID int64) string {
	return fmt.Sprintf("%d:%d:%d", orgID, branchID, productID)
}

func (m *mockStockRepository) GetByProduct(orgID, branchID, productID int64) (*domain.StockLevel, error) {
	return m.levels[stockKey(orgID, branchID, productID)], nil
}

func (m *mockStockRepository) Ensure(orgID, branchID, productID int64) (*domain.StockLevel, error) {
	key := stockKey(orgID, branchID, productID)
	if level, exists := m.levels[key]; exists {
		return level, nil
	}
	level := &domain.StockLevel{
		ID:        m.nextID,
		OrgID:     orgID,
		BranchID:  branchID,
		ProductID: productID,
		Quantity:  0,
		MinStock:  domain.DefaultMinStock,
	}
	m.nextID++
	m.levels[key] = level
	return level, nil
}

func (m *mockStockRepository) AdjustQuantity(orgID, branchID, productID int64, delta int) error {
	if m.adjustErr != nil {
		return m.adjustErr
	}
	level, exists := m.levels[stockKey(orgID, branchID, productID)]
	if !exists {
		return domain.ErrNotFound
	}
	if level.Quantity+delta < 0 {
		return domain.ErrInsufficientStock
	}
	level.Quantity += delta
	level.Version++
	return nil
}

func (m *mockStockRepository) UpdateBinLocation(orgID, branchID, productID int64, bin string) error {
	level, exists := m.levels[stockKey(orgID, branchID, productID)]
	if !exists {
		return domain.ErrNotFound
	}
	level.BinLocation = bin
	return nil
}

func (m *mockStockRepository) UpdateMinStock(orgID, branchID, productID int64, minStock int) error {
	level, exists := m.levels[stockKey(orgID, branchID, productID)]
	if !exists {
		return domain.ErrNotFound
	}
	level.MinStock = minStock
	return nil
}

func (m *mockStockRepository) ListByBranch(orgID, branchID int64) ([]*domain.StockLevel, error) {
	var result []*domain.StockLevel
	for _, level := range m.levels {
		if level.OrgID == orgID && level.BranchID == branchID {
			result = append(result, level)
		}
	}
	return result, nil
}

func (m *mockStockRepository) ListByOrg(orgID int64) ([]*domain.StockLevel, error) {
	var result []*domain.StockLevel
	for _, level := range m.levels {
		if level.OrgID == orgID {
			result = append(result, level)
		}
	}
	return result, nil
}

func (m *mockStockRepository) CreateMovement(movement *domain.StockMovement) error {
	if m.movementErr != nil {
		return m.movementErr
	}
	movement.ID = m.nextID
	m.nextID++
	movement.CreatedAt = time.Now()
	m.movements = append(m.movements, movement)
	return nil
}

func (m *mockStockRepository) ListMovements(orgID int64, req *domain.MovementListRequest) ([]*domain.StockMovement, int64, error) {
	var result []*domain.StockMovement
	for _, mv := range m.movements {
		if mv.OrgID != orgID {
			continue
		}
		if req.BranchID != nil && mv.BranchID != *req.BranchID {
			continue
		}
		if req.ProductID != nil && mv.ProductID != *req.ProductID {
			continue
		}
		if req.Type != nil && mv.Type != *req.Type {
			continue
		}
		result = append(result, mv)
	}
	return result, int64(len(result)), nil
}

// Mock OrderRepository for testing
type mockOrderRepository struct {
	orders map[int64]*domain.Order
	nextID int64
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{
		orders: make(map[int64]*domain.Order),
		nextID: 1,
	}
}

func (m *mockOrderRepository) Create(order *domain.Order) error {
	order.ID = m.nextID
	m.nextID++
	order.CreatedAt = time.Now()
	for _, item := range order.Items {
		item.ID = m.nextID
		m.nextID++
		item.OrderID = order.ID
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepository) GetByID(orgID, id int64) (*domain.Order, error) {
	order, exists := m.orders[id]
	if !exists || order.OrgID != orgID {
		return nil, nil
	}
	return order, nil
}

func (m *mockOrderRepository) GetByNumber(orgID int64, number string) (*domain.Order, error) {
	for _, o := range m.orders {
		if o.OrgID == orgID && o.OrderNumber == number {
			return o, nil
		}
	}
	return nil, nil
}

func (m *mockOrderRepository) List(orgID int64, req *domain.OrderListRequest) ([]*domain.Order, int64, error) {
	var result []*domain.Order
	for _, o := range m.orders {
		if o.OrgID != orgID {
			continue
		}
		if req.BranchID != nil && o.BranchID != *req.BranchID {
			continue
		}
		if req.FulfillmentStatus != nil && o.FulfillmentStatus != *req.FulfillmentStatus {
			continue
		}
		result = append(result, o)
	}
	return result, int64(len(result)), nil
}

func (m *mockOrderRepository) UpdateFulfillment(order *domain.Order) error {
	if _, exists := m.orders[order.ID]; !exists {
		return fmt.Errorf("order not found")
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepository) UpdateCancellation(order *domain.Order) error {
	if _, exists := m.orders[order.ID]; !exists {
		return fmt.Errorf("order not found")
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepository) AllocatedQuantity(orgID, branchID, productID int64) (int, error) {
	total := 0
	for _, o := range m.orders {
		if o.OrgID != orgID || o.BranchID != branchID || o.Type != domain.OrderTypeSale {
			continue
		}
		if !domain.IsActiveFulfillment(o.FulfillmentStatus) {
			continue
		}
		total += o.ItemQuantity(productID)
	}
	return total, nil
}

func (m *mockOrderRepository) AllocatedByBranch(orgID, branchID int64) (map[int64]int, error) {
	result := make(map[int64]int)
	for _, o := range m.orders {
		if o.OrgID != orgID || o.BranchID != branchID || o.Type != domain.OrderTypeSale {
			continue
		}
		if !domain.IsActiveFulfillment(o.FulfillmentStatus) {
			continue
		}
		for _, item := range o.Items {
			result[item.ProductID] += item.Quantity
		}
	}
	return result, nil
}

func (m *mockOrderRepository) FindByScanCode(orgID int64, code string) (*domain.Order, error) {
	// Tracking number wins over order number, order number over external ref
	var byNumber, byRef *domain.Order
	for _, o := range m.orders {
		if o.OrgID != orgID {
			continue
		}
		if o.Shipping != nil && o.Shipping.TrackingNumber == code {
			return o, nil
		}
		if o.OrderNumber == code {
			byNumber = o
		}
		if o.ExternalRef == code {
			byRef = o
		}
	}
	if byNumber != nil {
		return byNumber, nil
	}
	return byRef, nil
}

// Mock PurchaseOrderRepository for testing
type mockPurchaseOrderRepository struct {
	orders map[int64]*domain.PurchaseOrder
	nextID int64
}

func newMockPurchaseOrderRepository() *mockPurchaseOrderRepository {
	return &mockPurchaseOrderRepository{
		orders: make(map[int64]*domain.PurchaseOrder),
		nextID: 1,
	}
}

func (m *mockPurchaseOrderRepository) Create(po *domain.PurchaseOrder) error {
	po.ID = m.nextID
	m.nextID++
	po.CreatedAt = time.Now()
	for _, item := range po.Items {
		item.ID = m.nextID
		m.nextID++
		item.PurchaseOrderID = po.ID
	}
	m.orders[po.ID] = po
	return nil
}

func (m *mockPurchaseOrderRepository) GetByID(orgID, id int64) (*domain.PurchaseOrder, error) {
	po, exists := m.orders[id]
	if !exists || po.OrgID != orgID {
		return nil, nil
	}
	return po, nil
}

func (m *mockPurchaseOrderRepository) List(orgID int64, req *domain.POListRequest) ([]*domain.PurchaseOrder, int64, error) {
	var result []*domain.PurchaseOrder
	for _, po := range m.orders {
		if po.OrgID != orgID {
			continue
		}
		if req.Status != nil && po.Status != *req.Status {
			continue
		}
		result = append(result, po)
	}
	return result, int64(len(result)), nil
}

func (m *mockPurchaseOrderRepository) UpdateStatusIf(orgID, id int64, from, to domain.POStatus) error {
	po, exists := m.orders[id]
	if !exists || po.OrgID != orgID || po.Status != from {
		return domain.ErrInvalidTransition
	}
	po.Status = to
	return nil
}

func (m *mockPurchaseOrderRepository) MarkReceived(orgID, id int64, receivedAt time.Time) error {
	po, exists := m.orders[id]
	if !exists || po.OrgID != orgID {
		return domain.ErrNotFound
	}
	po.Status = domain.POStatusReceived
	po.ReceivedDate = &receivedAt
	return nil
}

// Mock SupplierRepository for testing
type mockSupplierRepository struct {
	suppliers map[int64]*domain.Supplier
	nextID    int64
}

func newMockSupplierRepository() *mockSupplierRepository {
	return &mockSupplierRepository{
		suppliers: make(map[int64]*domain.Supplier),
		nextID:    1,
	}
}

func (m *mockSupplierRepository) Create(supplier *domain.Supplier) error {
	supplier.ID = m.nextID
	m.nextID++
	m.suppliers[supplier.ID] = supplier
	return nil
}

func (m *mockSupplierRepository) GetByID(orgID, id int64) (*domain.Supplier, error) {
	s, exists := m.suppliers[id]
	if !exists || s.OrgID != orgID {
		return nil, nil
	}
	return s, nil
}

func (m *mockSupplierRepository) List(orgID int64) ([]*domain.Supplier, error) {
	var result []*domain.Supplier
	for _, s := range m.suppliers {
		if s.OrgID == orgID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *mockSupplierRepository) Update(supplier *domain.Supplier) error {
	existing, exists := m.suppliers[supplier.ID]
	if !exists || existing.OrgID != supplier.OrgID {
		return fmt.Errorf("supplier not found")
	}
	m.suppliers[supplier.ID] = supplier
	return nil
}

// Interface compliance checks
var (
	_ repo.ProductRepository       = (*mockProductRepository)(nil)
	_ repo.StockRepository         = (*mockStockRepository)(nil)
	_ repo.OrderRepository         = (*mockOrderRepository)(nil)
	_ repo.PurchaseOrderRepository = (*mockPurchaseOrderRepository)(nil)
	_ repo.SupplierRepository      = (*mockSupplierRepository)(nil)
)
