package service

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/stockflow/stockflow/internal/domain"
	"github.com/stockflow/stockflow/internal/mq"
)

type purchasingFixture struct {
	service      PurchasingService
	poRepo       *mockPurchaseOrderRepository
	stockRepo    *mockStockRepository
	productRepo  *mockProductRepository
	supplierRepo *mockSupplierRepository
}

func newPurchasingFixture(t *testing.T) *purchasingFixture {
	t.Helper()
	f := &purchasingFixture{
		poRepo:       newMockPurchaseOrderRepository(),
		stockRepo:    newMockStockRepository(),
		productRepo:  newMockProductRepository(),
		supplierRepo: newMockSupplierRepository(),
	}
	f.service = NewPurchasingService(f.poRepo, f.stockRepo, f.productRepo, f.supplierRepo, mq.NewNopPublisher(), zap.NewNop())
	return f
}

func seedSupplier(t *testing.T, supplierRepo *mockSupplierRepository, orgID int64) *domain.Supplier {
	t.Helper()
	supplier := &domain.Supplier{OrgID: orgID, Name: "Acme Beverages"}
	if err := supplierRepo.Create(supplier); err != nil {
		t.Fatalf("Failed to seed supplier: %v", err)
	}
	return supplier
}

func TestPurchasingService_CreatePO(t *testing.T) {
	f := newPurchasingFixture(t)
	supplier := seedSupplier(t, f.supplierRepo, 1)
	product := seedProduct(t, f.productRepo, 1, "PO-001")

	po, err := f.service.CreatePO(1, 1, &domain.CreatePORequest{
		SupplierID: supplier.ID,
		Items: []domain.CreatePOItemSpec{
			{ProductID: product.ID, Quantity: 10, UnitCost: 150},
			{ProductID: product.ID, Quantity: 5, UnitCost: 140},
		},
		Notes: "weekly replenishment",
	})
	if err != nil {
		t.Fatalf("CreatePO() error = %v", err)
	}

	if po.Status != domain.POStatusOpen {
		t.Errorf("Status = %v, want OPEN", po.Status)
	}
	if !strings.HasPrefix(po.ReferenceNo, "PO-") {
		t.Errorf("ReferenceNo %q should have PO- prefix", po.ReferenceNo)
	}
	if want := int64(10*150 + 5*140); po.TotalCost != want {
		t.Errorf("TotalCost = %v, want %v", po.TotalCost, want)
	}
	if len(po.Items) != 2 {
		t.Errorf("item count = %v, want 2", len(po.Items))
	}
}

func TestPurchasingService_CreatePOValidation(t *testing.T) {
	f := newPurchasingFixture(t)
	supplier := seedSupplier(t, f.supplierRepo, 1)
	product := seedProduct(t, f.productRepo, 1, "POV-001")

	tests := []struct {
		name    string
		req     *domain.CreatePORequest
		wantErr error
	}{
		{
			name:    "no items",
			req:     &domain.CreatePORequest{SupplierID: supplier.ID},
			wantErr: domain.ErrValidation,
		},
		{
			name: "unknown supplier",
			req: &domain.CreatePORequest{
				SupplierID: 999,
				Items:      []domain.CreatePOItemSpec{{ProductID: product.ID, Quantity: 1}},
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "zero quantity",
			req: &domain.CreatePORequest{
				SupplierID: supplier.ID,
				Items:      []domain.CreatePOItemSpec{{ProductID: product.ID, Quantity: 0}},
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "negative unit cost",
			req: &domain.CreatePORequest{
				SupplierID: supplier.ID,
				Items:      []domain.CreatePOItemSpec{{ProductID: product.ID, Quantity: 1, UnitCost: -5}},
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "unknown product",
			req: &domain.CreatePORequest{
				SupplierID: supplier.ID,
				Items:      []domain.CreatePOItemSpec{{ProductID: 999, Quantity: 1}},
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CreatePO(1, 1, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreatePO() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPurchasingService_Receive(t *testing.T) {
	f := newPurchasingFixture(t)
	supplier := seedSupplier(t, f.supplierRepo, 1)
	product := seedProduct(t, f.productRepo, 1, "RCV-001")
	product.Cost = 100

	po, err := f.service.CreatePO(1, 1, &domain.CreatePORequest{
		SupplierID: supplier.ID,
		Items:      []domain.CreatePOItemSpec{{ProductID: product.ID, Quantity: 20, UnitCost: 130}},
	})
	if err != nil {
		t.Fatalf("CreatePO() error = %v", err)
	}

	received, err := f.service.Receive(1, po.ID, 7)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}

	if received.Status != domain.POStatusReceived {
		t.Errorf("Status = %v, want RECEIVED", received.Status)
	}
	if received.ReceivedDate == nil {
		t.Error("ReceivedDate should be set")
	}

	level, _ := f.stockRepo.GetByProduct(1, 1, product.ID)
	if level == nil || level.Quantity != 20 {
		t.Errorf("stock after receive = %+v, want quantity 20", level)
	}

	// Last receipt cost overwrites the product cost
	if product.Cost != 130 {
		t.Errorf("product Cost = %v, want 130", product.Cost)
	}

	if len(f.stockRepo.movements) != 1 {
		t.Fatalf("movement count = %v, want 1", len(f.stockRepo.movements))
	}
	mv := f.stockRepo.movements[0]
	if mv.Type != domain.MovementTypePOReceipt {
		t.Errorf("movement Type = %v, want PO_RECEIPT", mv.Type)
	}
	if mv.Reference != po.ReferenceNo {
		t.Errorf("movement Reference = %q, want %q", mv.Reference, po.ReferenceNo)
	}
}

func TestPurchasingService_ReceiveTwice(t *testing.T) {
	f := newPurchasingFixture(t)
	supplier := seedSupplier(t, f.supplierRepo, 1)
	product := seedProduct(t, f.productRepo, 1, "DBL-001")

	po, err := f.service.CreatePO(1, 1, &domain.CreatePORequest{
		SupplierID: supplier.ID,
		Items:      []domain.CreatePOItemSpec{{ProductID: product.ID, Quantity: 10, UnitCost: 100}},
	})
	if err != nil {
		t.Fatalf("CreatePO() error = %v", err)
	}

	if _, err := f.service.Receive(1, po.ID, 1); err != nil {
		t.Fatalf("first Receive() error = %v", err)
	}
	if _, err := f.service.Receive(1, po.ID, 1); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("second Receive() error = %v, want ErrInvalidTransition", err)
	}

	// Stock must only have been credited once
	level, _ := f.stockRepo.GetByProduct(1, 1, product.ID)
	if level.Quantity != 10 {
		t.Errorf("Quantity after double receive = %v, want 10", level.Quantity)
	}
}

func TestPurchasingService_ReceiveRollback(t *testing.T) {
	f := newPurchasingFixture(t)
	supplier := seedSupplier(t, f.supplierRepo, 1)
	good := seedProduct(t, f.productRepo, 1, "RB-001")
	doomed := seedProduct(t, f.productRepo, 1, "RB-002")

	po, err := f.service.CreatePO(1, 1, &domain.CreatePORequest{
		SupplierID: supplier.ID,
		Items: []domain.CreatePOItemSpec{
			{ProductID: good.ID, Quantity: 10, UnitCost: 100},
			{ProductID: doomed.ID, Quantity: 5, UnitCost: 200},
		},
	})
	if err != nil {
		t.Fatalf("CreatePO() error = %v", err)
	}

	// Second line blows up on the cost write-back
	delete(f.productRepo.products, doomed.ID)

	if _, err := f.service.Receive(1, po.ID, 1); err == nil {
		t.Fatal("Receive() expected error when a line fails")
	}

	// First line's stock credit was rolled back
	level, _ := f.stockRepo.GetByProduct(1, 1, good.ID)
	if level.Quantity != 0 {
		t.Errorf("Quantity after rollback = %v, want 0", level.Quantity)
	}

	// Purchase order is back to OPEN and can be retried
	stored, _ := f.poRepo.GetByID(1, po.ID)
	if stored.Status != domain.POStatusOpen {
		t.Errorf("Status after rollback = %v, want OPEN", stored.Status)
	}
}

func TestPurchasingService_ReceiveAdjustFailure(t *testing.T) {
	f := newPurchasingFixture(t)
	supplier := seedSupplier(t, f.supplierRepo, 1)
	product := seedProduct(t, f.productRepo, 1, "AF-001")

	po, err := f.service.CreatePO(1, 1, &domain.CreatePORequest{
		SupplierID: supplier.ID,
		Items:      []domain.CreatePOItemSpec{{ProductID: product.ID, Quantity: 10, UnitCost: 100}},
	})
	if err != nil {
		t.Fatalf("CreatePO() error = %v", err)
	}

	f.stockRepo.adjustErr = errors.New("storage unavailable")
	if _, err := f.service.Receive(1, po.ID, 1); err == nil {
		t.Fatal("Receive() expected error when stock adjust fails")
	}

	stored, _ := f.poRepo.GetByID(1, po.ID)
	if stored.Status != domain.POStatusOpen {
		t.Errorf("Status after failed receive = %v, want OPEN", stored.Status)
	}
}

func TestPurchasingService_CancelPO(t *testing.T) {
	f := newPurchasingFixture(t)
	supplier := seedSupplier(t, f.supplierRepo, 1)
	product := seedProduct(t, f.productRepo, 1, "CXL-001")

	po, err := f.service.CreatePO(1, 1, &domain.CreatePORequest{
		SupplierID: supplier.ID,
		Items:      []domain.CreatePOItemSpec{{ProductID: product.ID, Quantity: 10, UnitCost: 100}},
	})
	if err != nil {
		t.Fatalf("CreatePO() error = %v", err)
	}

	cancelled, err := f.service.CancelPO(1, po.ID)
	if err != nil {
		t.Fatalf("CancelPO() error = %v", err)
	}
	if cancelled.Status != domain.POStatusCancelled {
		t.Errorf("Status = %v, want CANCELLED", cancelled.Status)
	}

	// Cancelled orders can be neither received nor re-cancelled
	if _, err := f.service.Receive(1, po.ID, 1); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("Receive() cancelled PO = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.service.CancelPO(1, po.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("CancelPO() twice = %v, want ErrInvalidTransition", err)
	}
}

func TestPurchasingService_Suppliers(t *testing.T) {
	f := newPurchasingFixture(t)

	supplier, err := f.service.CreateSupplier(1, &domain.CreateSupplierRequest{
		Name:    "Acme Beverages",
		Contact: "Lee",
		Email:   "orders@acme.example",
	})
	if err != nil {
		t.Fatalf("CreateSupplier() error = %v", err)
	}
	if supplier.ID == 0 {
		t.Error("CreateSupplier() should assign an id")
	}

	if _, err := f.service.CreateSupplier(1, &domain.CreateSupplierRequest{Name: "  "}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("CreateSupplier() blank name = %v, want ErrValidation", err)
	}

	suppliers, err := f.service.ListSuppliers(1)
	if err != nil {
		t.Fatalf("ListSuppliers() error = %v", err)
	}
	if len(suppliers) != 1 {
		t.Errorf("ListSuppliers() = %d suppliers, want 1", len(suppliers))
	}

	// Other org sees nothing
	suppliers, err = f.service.ListSuppliers(2)
	if err != nil {
		t.Fatalf("ListSuppliers() error = %v", err)
	}
	if len(suppliers) != 0 {
		t.Errorf("ListSuppliers() other org = %d suppliers, want 0", len(suppliers))
	}
}
