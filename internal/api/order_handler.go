package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/stockflow/stockflow/internal/domain"
	"github.com/stockflow/stockflow/internal/middleware"
	"github.com/stockflow/stockflow/internal/resp"
	"github.com/stockflow/stockflow/internal/service"
)

// OrderHandler 订单履约相关的HTTP处理器
type OrderHandler struct {
	fulfillmentService service.FulfillmentService
	logger             *zap.Logger
}

// NewOrderHandler 创建订单处理器实例
func NewOrderHandler(fulfillmentService service.FulfillmentService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		fulfillmentService: fulfillmentService,
		logger:             logger,
	}
}

// GetOrder 获取订单详情
// GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, _ := scopeFromRequest(r)

	id, ok := pathID(r, 4) // /api/v1/orders/{id}
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order ID", reqID, "")
		return
	}

	order, err := h.fulfillmentService.GetOrder(orgID, id)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "get order", err)
		return
	}
	resp.OK(w, order, reqID, "")
}

// ListOrders 分页查询订单
// GET /api/v1/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, _ := scopeFromRequest(r)

	req := &domain.OrderListRequest{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 50),
		BranchID: queryInt64Ptr(r, "branch_id"),
	}
	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		t := domain.OrderType(v)
		req.Type = &t
	}
	if v := q.Get("status"); v != "" {
		s := domain.OrderStatus(v)
		req.Status = &s
	}
	if v := q.Get("fulfillment_status"); v != "" {
		f := domain.FulfillmentStatus(v)
		req.FulfillmentStatus = &f
	}

	result, err := h.fulfillmentService.ListOrders(orgID, req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "list orders", err)
		return
	}
	resp.OK(w, result, reqID, "")
}

// UpdateFulfillment 推进订单履约状态
// PUT /api/v1/orders/{id}/fulfillment
func (h *OrderHandler) UpdateFulfillment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, _ := scopeFromRequest(r)

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order ID", reqID, "")
		return
	}

	var req domain.FulfillmentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	order, err := h.fulfillmentService.Transition(orgID, id, &req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "update fulfillment", err)
		return
	}
	resp.OK(w, order, reqID, "")
}

// BulkUpdateFulfillment 批量推进履约状态
// POST /api/v1/orders/bulk-status
func (h *OrderHandler) BulkUpdateFulfillment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, _ := scopeFromRequest(r)

	var req domain.BulkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if len(req.IDs) == 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "ids cannot be empty", reqID, "")
		return
	}

	results := h.fulfillmentService.BulkTransition(orgID, &req)
	resp.OK(w, results, reqID, "")
}

// CancelOrder 取消订单
// POST /api/v1/orders/{id}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, userID := scopeFromRequest(r)

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order ID", reqID, "")
		return
	}

	var req domain.CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	order, err := h.fulfillmentService.Cancel(orgID, id, userID, &req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "cancel order", err)
		return
	}
	resp.OK(w, order, reqID, "")
}

// ScanComplete 扫码完成订单
// POST /api/v1/orders/scan
func (h *OrderHandler) ScanComplete(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, _ := scopeFromRequest(r)

	var req domain.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	result, err := h.fulfillmentService.ScanComplete(orgID, &req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "scan complete", err)
		return
	}
	resp.OK(w, result, reqID, "")
}
