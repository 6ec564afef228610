package service

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/stockflow/stockflow/internal/domain"
	"github.com/stockflow/stockflow/internal/mq"
)

func newFulfillmentFixture(t *testing.T) (FulfillmentService, *mockOrderRepository, *mockStockRepository) {
	t.Helper()
	orderRepo := newMockOrderRepository()
	stockRepo := newMockStockRepository()
	service := NewFulfillmentService(orderRepo, stockRepo, mq.NewNopPublisher(), zap.NewNop())
	return service, orderRepo, stockRepo
}

func seedOrder(t *testing.T, orderRepo *mockOrderRepository, status domain.FulfillmentStatus) *domain.Order {
	t.Helper()
	order := &domain.Order{
		OrgID:             1,
		BranchID:          1,
		Type:              domain.OrderTypeSale,
		Status:            domain.OrderStatusCompleted,
		FulfillmentStatus: status,
		Items: []*domain.OrderItem{
			{ProductID: 10, Quantity: 2, UnitPrice: 450},
		},
		Total: 900,
	}
	if err := orderRepo.Create(order); err != nil {
		t.Fatalf("Failed to seed order: %v", err)
	}
	order.OrderNumber = fmt.Sprintf("SO-20260829-T%04d", order.ID)
	return order
}

func TestFulfillmentService_Transition(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.FulfillmentStatus
		req     *domain.FulfillmentUpdateRequest
		wantErr error
	}{
		{
			name: "pending to picked",
			from: domain.FulfillmentPending,
			req:  &domain.FulfillmentUpdateRequest{Status: domain.FulfillmentPicked},
		},
		{
			name: "picked to packed",
			from: domain.FulfillmentPicked,
			req:  &domain.FulfillmentUpdateRequest{Status: domain.FulfillmentPacked},
		},
		{
			name: "packed to shipped with tracking",
			from: domain.FulfillmentPacked,
			req: &domain.FulfillmentUpdateRequest{
				Status:         domain.FulfillmentShipped,
				Carrier:        "DHL",
				TrackingNumber: "JD0123456789",
			},
		},
		{
			name: "shipped to delivered",
			from: domain.FulfillmentShipped,
			req:  &domain.FulfillmentUpdateRequest{Status: domain.FulfillmentDelivered},
		},
		{
			name:    "skip ahead is rejected",
			from:    domain.FulfillmentPending,
			req:     &domain.FulfillmentUpdateRequest{Status: domain.FulfillmentShipped, Carrier: "DHL", TrackingNumber: "X"},
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:    "backwards is rejected",
			from:    domain.FulfillmentPacked,
			req:     &domain.FulfillmentUpdateRequest{Status: domain.FulfillmentPicked},
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:    "ship without carrier",
			from:    domain.FulfillmentPacked,
			req:     &domain.FulfillmentUpdateRequest{Status: domain.FulfillmentShipped, TrackingNumber: "JD0123456789"},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "ship without tracking number",
			from:    domain.FulfillmentPacked,
			req:     &domain.FulfillmentUpdateRequest{Status: domain.FulfillmentShipped, Carrier: "DHL"},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "cancel target must use cancel operation",
			from:    domain.FulfillmentPending,
			req:     &domain.FulfillmentUpdateRequest{Status: domain.FulfillmentCancelled},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "returned target must use cancel operation",
			from:    domain.FulfillmentShipped,
			req:     &domain.FulfillmentUpdateRequest{Status: domain.FulfillmentReturned},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "out of terminal state",
			from:    domain.FulfillmentCancelled,
			req:     &domain.FulfillmentUpdateRequest{Status: domain.FulfillmentPicked},
			wantErr: domain.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, orderRepo, _ := newFulfillmentFixture(t)
			order := seedOrder(t, orderRepo, tt.from)

			updated, err := service.Transition(1, order.ID, tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Transition() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transition() error = %v", err)
			}
			if updated.FulfillmentStatus != tt.req.Status {
				t.Errorf("FulfillmentStatus = %v, want %v", updated.FulfillmentStatus, tt.req.Status)
			}
			if tt.req.Status == domain.FulfillmentShipped {
				if updated.Shipping == nil || updated.Shipping.ShippedAt == nil {
					t.Error("shipping to SHIPPED should record shipped time")
				}
				if updated.Shipping.Carrier != tt.req.Carrier {
					t.Errorf("Carrier = %q, want %q", updated.Shipping.Carrier, tt.req.Carrier)
				}
			}
			if tt.req.Status == domain.FulfillmentDelivered {
				if updated.Shipping == nil || updated.Shipping.DeliveredAt == nil {
					t.Error("transition to DELIVERED should record delivered time")
				}
			}
		})
	}
}

func TestFulfillmentService_TransitionUnknownOrder(t *testing.T) {
	service, _, _ := newFulfillmentFixture(t)

	_, err := service.Transition(1, 999, &domain.FulfillmentUpdateRequest{Status: domain.FulfillmentPicked})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Transition() unknown order = %v, want ErrNotFound", err)
	}
}

func TestFulfillmentService_BulkTransition(t *testing.T) {
	service, orderRepo, _ := newFulfillmentFixture(t)

	ok1 := seedOrder(t, orderRepo, domain.FulfillmentPending)
	bad := seedOrder(t, orderRepo, domain.FulfillmentShipped)
	ok2 := seedOrder(t, orderRepo, domain.FulfillmentPending)

	results := service.BulkTransition(1, &domain.BulkStatusRequest{
		IDs:    []int64{ok1.ID, bad.ID, ok2.ID},
		Status: domain.FulfillmentPicked,
	})
	if len(results) != 3 {
		t.Fatalf("BulkTransition() returned %d results, want 3", len(results))
	}

	if !results[0].OK || !results[2].OK {
		t.Errorf("valid orders should succeed: %+v", results)
	}
	if results[1].OK || results[1].Error == "" {
		t.Errorf("invalid order should fail with message: %+v", results[1])
	}

	// One failure does not block the others
	first, _ := orderRepo.GetByID(1, ok1.ID)
	if first.FulfillmentStatus != domain.FulfillmentPicked {
		t.Errorf("order %d status = %v, want PICKED", ok1.ID, first.FulfillmentStatus)
	}
}

func TestFulfillmentService_Cancel(t *testing.T) {
	tests := []struct {
		name            string
		from            domain.FulfillmentStatus
		financial       domain.OrderStatus
		restock         bool
		wantFulfillment domain.FulfillmentStatus
		wantFinancial   domain.OrderStatus
		wantRestocked   int
	}{
		{
			name:            "pending order cancels without restock",
			from:            domain.FulfillmentPending,
			financial:       domain.OrderStatusCompleted,
			restock:         true,
			wantFulfillment: domain.FulfillmentCancelled,
			wantFinancial:   domain.OrderStatusRefunded,
			// Never shipped: physical stock was never decremented, restock would double-count
			wantRestocked: 0,
		},
		{
			name:            "shipped order becomes returned and restocks",
			from:            domain.FulfillmentShipped,
			financial:       domain.OrderStatusCompleted,
			restock:         true,
			wantFulfillment: domain.FulfillmentReturned,
			wantFinancial:   domain.OrderStatusRefunded,
			wantRestocked:   2,
		},
		{
			name:            "shipped order without restock",
			from:            domain.FulfillmentShipped,
			financial:       domain.OrderStatusCompleted,
			restock:         false,
			wantFulfillment: domain.FulfillmentReturned,
			wantFinancial:   domain.OrderStatusRefunded,
			wantRestocked:   0,
		},
		{
			name:            "unpaid order cancels without refund",
			from:            domain.FulfillmentPending,
			financial:       domain.OrderStatusPending,
			wantFulfillment: domain.FulfillmentCancelled,
			wantFinancial:   domain.OrderStatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, orderRepo, stockRepo := newFulfillmentFixture(t)
			order := seedOrder(t, orderRepo, tt.from)
			order.Status = tt.financial
			seedStock(t, stockRepo, 1, 1, 10, 5, 5)

			cancelled, err := service.Cancel(1, order.ID, 7, &domain.CancelOrderRequest{
				Reason:  "customer changed their mind",
				Restock: tt.restock,
			})
			if err != nil {
				t.Fatalf("Cancel() error = %v", err)
			}
			if cancelled.FulfillmentStatus != tt.wantFulfillment {
				t.Errorf("FulfillmentStatus = %v, want %v", cancelled.FulfillmentStatus, tt.wantFulfillment)
			}
			if cancelled.Status != tt.wantFinancial {
				t.Errorf("Status = %v, want %v", cancelled.Status, tt.wantFinancial)
			}
			if cancelled.CancellationReason == "" {
				t.Error("CancellationReason should be recorded")
			}

			level, _ := stockRepo.GetByProduct(1, 1, 10)
			if got := level.Quantity - 5; got != tt.wantRestocked {
				t.Errorf("restocked quantity = %v, want %v", got, tt.wantRestocked)
			}
			if tt.wantRestocked > 0 {
				if len(stockRepo.movements) != 1 {
					t.Fatalf("movement count = %v, want 1", len(stockRepo.movements))
				}
				mv := stockRepo.movements[0]
				if mv.Type != domain.MovementTypeRestock {
					t.Errorf("movement Type = %v, want RESTOCK", mv.Type)
				}
				if mv.Reference != order.OrderNumber {
					t.Errorf("movement Reference = %q, want %q", mv.Reference, order.OrderNumber)
				}
			}
		})
	}
}

func TestFulfillmentService_CancelValidation(t *testing.T) {
	service, orderRepo, _ := newFulfillmentFixture(t)
	order := seedOrder(t, orderRepo, domain.FulfillmentPending)

	if _, err := service.Cancel(1, order.ID, 1, &domain.CancelOrderRequest{}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Cancel() without reason = %v, want ErrValidation", err)
	}

	cancelled := seedOrder(t, orderRepo, domain.FulfillmentCancelled)
	if _, err := service.Cancel(1, cancelled.ID, 1, &domain.CancelOrderRequest{Reason: "again"}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("Cancel() terminal order = %v, want ErrInvalidTransition", err)
	}
}

func TestFulfillmentService_ScanComplete(t *testing.T) {
	service, orderRepo, _ := newFulfillmentFixture(t)

	order := seedOrder(t, orderRepo, domain.FulfillmentShipped)
	order.Shipping = &domain.ShippingInfo{Carrier: "DHL", TrackingNumber: "JD0001"}

	result, err := service.ScanComplete(1, &domain.ScanRequest{Code: "JD0001"})
	if err != nil {
		t.Fatalf("ScanComplete() error = %v", err)
	}
	if result.AlreadyDelivered {
		t.Error("first scan should not report AlreadyDelivered")
	}
	if result.Order.FulfillmentStatus != domain.FulfillmentDelivered {
		t.Errorf("FulfillmentStatus = %v, want DELIVERED", result.Order.FulfillmentStatus)
	}
	if result.Order.Shipping.DeliveredAt == nil {
		t.Error("scan should record delivered time")
	}

	// Second scan of the same parcel is an idempotent hit
	result, err = service.ScanComplete(1, &domain.ScanRequest{Code: "JD0001"})
	if err != nil {
		t.Fatalf("ScanComplete() second scan error = %v", err)
	}
	if !result.AlreadyDelivered {
		t.Error("second scan should report AlreadyDelivered")
	}
}

func TestFulfillmentService_ScanCompleteSkipsStates(t *testing.T) {
	service, orderRepo, _ := newFulfillmentFixture(t)

	// A pending order scanned at the door jumps straight to DELIVERED
	order := seedOrder(t, orderRepo, domain.FulfillmentPending)

	result, err := service.ScanComplete(1, &domain.ScanRequest{Code: order.OrderNumber})
	if err != nil {
		t.Fatalf("ScanComplete() error = %v", err)
	}
	if result.Order.FulfillmentStatus != domain.FulfillmentDelivered {
		t.Errorf("FulfillmentStatus = %v, want DELIVERED", result.Order.FulfillmentStatus)
	}
}

func TestFulfillmentService_ScanCompleteErrors(t *testing.T) {
	service, orderRepo, _ := newFulfillmentFixture(t)

	if _, err := service.ScanComplete(1, &domain.ScanRequest{Code: "  "}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("ScanComplete() blank code = %v, want ErrValidation", err)
	}
	if _, err := service.ScanComplete(1, &domain.ScanRequest{Code: "NO-SUCH"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ScanComplete() unknown code = %v, want ErrNotFound", err)
	}

	cancelled := seedOrder(t, orderRepo, domain.FulfillmentCancelled)
	if _, err := service.ScanComplete(1, &domain.ScanRequest{Code: cancelled.OrderNumber}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("ScanComplete() cancelled order = %v, want ErrInvalidTransition", err)
	}
}
