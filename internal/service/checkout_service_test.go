package service

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/stockflow/stockflow/internal/domain"
	"github.com/stockflow/stockflow/internal/mq"
)

func newCheckoutFixture(t *testing.T) (CheckoutService, *mockProductRepository, *mockStockRepository, *mockOrderRepository) {
	t.Helper()
	productRepo := newMockProductRepository()
	stockRepo := newMockStockRepository()
	orderRepo := newMockOrderRepository()
	service := NewCheckoutService(productRepo, stockRepo, orderRepo, mq.NewNopPublisher(), zap.NewNop())
	return service, productRepo, stockRepo, orderRepo
}

func TestCheckoutService_Checkout(t *testing.T) {
	service, productRepo, stockRepo, _ := newCheckoutFixture(t)

	coffee := seedProduct(t, productRepo, 1, "COF-001")
	coffee.Price = 450
	coffee.Cost = 200
	mug := seedProduct(t, productRepo, 1, "MUG-001")
	mug.Price = 1200
	mug.Cost = 700

	order, err := service.Checkout(1, 1, 9, &domain.CheckoutRequest{
		Items: []domain.CartItem{
			{ProductID: coffee.ID, Quantity: 2},
			{ProductID: mug.ID, Quantity: 1},
		},
		PaymentMethod: "card",
		CustomerID:    33,
	})
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}

	if order.Total != 2*450+1200 {
		t.Errorf("order Total = %v, want %v", order.Total, 2*450+1200)
	}
	if order.Status != domain.OrderStatusCompleted {
		t.Errorf("order Status = %v, want COMPLETED", order.Status)
	}
	if order.FulfillmentStatus != domain.FulfillmentPending {
		t.Errorf("order FulfillmentStatus = %v, want PENDING", order.FulfillmentStatus)
	}
	if !strings.HasPrefix(order.OrderNumber, "SO-") {
		t.Errorf("order number %q should have SO- prefix", order.OrderNumber)
	}
	if order.CustomerID != 33 || order.UserID != 9 {
		t.Errorf("order scope = customer %v / user %v, want 33 / 9", order.CustomerID, order.UserID)
	}

	// Checkout never touches physical stock but does open ledger rows
	for _, p := range []*domain.Product{coffee, mug} {
		level, _ := stockRepo.GetByProduct(1, 1, p.ID)
		if level == nil {
			t.Fatalf("stock ledger row missing for product %d", p.ID)
		}
		if level.Quantity != 0 {
			t.Errorf("product %d Quantity = %v, want 0", p.ID, level.Quantity)
		}
	}
}

func TestCheckoutService_CheckoutSnapshots(t *testing.T) {
	service, productRepo, _, orderRepo := newCheckoutFixture(t)

	product := seedProduct(t, productRepo, 1, "SNAP-001")
	product.Price = 500
	product.Cost = 300

	order, err := service.Checkout(1, 1, 1, &domain.CheckoutRequest{
		Items:         []domain.CartItem{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod: "cash",
	})
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}

	// Later price changes must not affect the stored order
	product.Price = 999
	product.Cost = 888

	stored, _ := orderRepo.GetByID(1, order.ID)
	item := stored.Items[0]
	if item.UnitPrice != 500 {
		t.Errorf("item UnitPrice = %v, want snapshot 500", item.UnitPrice)
	}
	if item.UnitCost != 300 {
		t.Errorf("item UnitCost = %v, want snapshot 300", item.UnitCost)
	}
	if item.SKU != "SNAP-001" {
		t.Errorf("item SKU = %q, want SNAP-001", item.SKU)
	}
}

func TestCheckoutService_CheckoutAutoDeliver(t *testing.T) {
	service, productRepo, _, orderRepo := newCheckoutFixture(t)
	product := seedProduct(t, productRepo, 1, "WALK-001")

	order, err := service.Checkout(1, 1, 1, &domain.CheckoutRequest{
		Items:         []domain.CartItem{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod: "cash",
		AutoDeliver:   true,
	})
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	if order.FulfillmentStatus != domain.FulfillmentDelivered {
		t.Errorf("FulfillmentStatus = %v, want DELIVERED", order.FulfillmentStatus)
	}

	// Walk-out orders never hold an allocation
	allocated, err := orderRepo.AllocatedQuantity(1, 1, product.ID)
	if err != nil {
		t.Fatalf("AllocatedQuantity() error = %v", err)
	}
	if allocated != 0 {
		t.Errorf("AllocatedQuantity() = %v, want 0", allocated)
	}
}

func TestCheckoutService_CheckoutValidation(t *testing.T) {
	service, productRepo, _, _ := newCheckoutFixture(t)
	active := seedProduct(t, productRepo, 1, "VAL-001")
	inactive := seedProduct(t, productRepo, 1, "VAL-002")
	inactive.Status = domain.ProductStatusInactive

	tests := []struct {
		name    string
		req     *domain.CheckoutRequest
		wantErr error
	}{
		{
			name:    "empty cart",
			req:     &domain.CheckoutRequest{PaymentMethod: "cash"},
			wantErr: domain.ErrValidation,
		},
		{
			name: "missing payment method",
			req: &domain.CheckoutRequest{
				Items: []domain.CartItem{{ProductID: active.ID, Quantity: 1}},
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "zero quantity",
			req: &domain.CheckoutRequest{
				Items:         []domain.CartItem{{ProductID: active.ID, Quantity: 0}},
				PaymentMethod: "cash",
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "unknown product",
			req: &domain.CheckoutRequest{
				Items:         []domain.CartItem{{ProductID: 999, Quantity: 1}},
				PaymentMethod: "cash",
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "inactive product",
			req: &domain.CheckoutRequest{
				Items:         []domain.CartItem{{ProductID: inactive.ID, Quantity: 1}},
				PaymentMethod: "cash",
			},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Checkout(1, 1, 1, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Checkout() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckoutService_Cart(t *testing.T) {
	service, productRepo, _, _ := newCheckoutFixture(t)
	product := seedProduct(t, productRepo, 1, "CART-001")

	if err := service.SetCartItem(1, 1, 5, product.ID, 2); err != nil {
		t.Fatalf("SetCartItem() error = %v", err)
	}
	if err := service.SetCartItem(1, 1, 5, product.ID, 3); err != nil {
		t.Fatalf("SetCartItem() update error = %v", err)
	}

	items := service.GetCart(1, 1, 5)
	if len(items) != 1 || items[0].Quantity != 3 {
		t.Fatalf("GetCart() = %+v, want one line with quantity 3", items)
	}

	// Another cashier's cart is isolated
	if got := service.GetCart(1, 1, 6); len(got) != 0 {
		t.Errorf("GetCart() for other user = %+v, want empty", got)
	}

	// Zero removes the line
	if err := service.SetCartItem(1, 1, 5, product.ID, 0); err != nil {
		t.Fatalf("SetCartItem(0) error = %v", err)
	}
	if got := service.GetCart(1, 1, 5); len(got) != 0 {
		t.Errorf("GetCart() after removal = %+v, want empty", got)
	}

	if err := service.SetCartItem(1, 1, 5, 999, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("SetCartItem() unknown product = %v, want ErrNotFound", err)
	}
	if err := service.SetCartItem(1, 1, 5, product.ID, -1); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("SetCartItem() negative = %v, want ErrValidation", err)
	}
}

func TestCheckoutService_HoldAndResume(t *testing.T) {
	service, productRepo, _, _ := newCheckoutFixture(t)
	product := seedProduct(t, productRepo, 1, "HOLD-001")

	if err := service.SetCartItem(1, 1, 5, product.ID, 2); err != nil {
		t.Fatalf("SetCartItem() error = %v", err)
	}

	hold, err := service.Hold(1, 1, 5, &domain.HoldRequest{
		Items: []domain.CartItem{{ProductID: product.ID, Quantity: 2}},
		Note:  "customer forgot wallet",
	})
	if err != nil {
		t.Fatalf("Hold() error = %v", err)
	}
	if hold.ID == "" {
		t.Fatal("Hold() returned empty id")
	}

	// Hold clears the live cart
	if got := service.GetCart(1, 1, 5); len(got) != 0 {
		t.Errorf("GetCart() after hold = %+v, want empty", got)
	}

	held := service.ListHeld(1, 1)
	if len(held) != 1 {
		t.Fatalf("ListHeld() = %d entries, want 1", len(held))
	}

	items, err := service.Resume(1, 1, 5, hold.ID)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Errorf("Resume() items = %+v, want one line with quantity 2", items)
	}
	if got := service.GetCart(1, 1, 5); len(got) != 1 {
		t.Errorf("GetCart() after resume = %+v, want one line", got)
	}

	// A hold can only be resumed once
	if _, err := service.Resume(1, 1, 5, hold.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Resume() second time = %v, want ErrNotFound", err)
	}
}

func TestCheckoutService_HoldValidation(t *testing.T) {
	service, _, _, _ := newCheckoutFixture(t)

	if _, err := service.Hold(1, 1, 1, &domain.HoldRequest{}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Hold() empty cart = %v, want ErrValidation", err)
	}
	if _, err := service.Hold(1, 1, 1, &domain.HoldRequest{
		Items: []domain.CartItem{{ProductID: 1, Quantity: 0}},
	}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Hold() zero quantity = %v, want ErrValidation", err)
	}

	// Holds from another branch are invisible
	if _, err := service.Resume(1, 2, 1, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Resume() unknown hold = %v, want ErrNotFound", err)
	}
}

func TestCheckoutService_CheckoutClearsCart(t *testing.T) {
	service, productRepo, _, _ := newCheckoutFixture(t)
	product := seedProduct(t, productRepo, 1, "CLR-001")

	if err := service.SetCartItem(1, 1, 5, product.ID, 2); err != nil {
		t.Fatalf("SetCartItem() error = %v", err)
	}
	if _, err := service.Checkout(1, 1, 5, &domain.CheckoutRequest{
		Items:         []domain.CartItem{{ProductID: product.ID, Quantity: 2}},
		PaymentMethod: "cash",
	}); err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	if got := service.GetCart(1, 1, 5); len(got) != 0 {
		t.Errorf("GetCart() after checkout = %+v, want empty", got)
	}
}
