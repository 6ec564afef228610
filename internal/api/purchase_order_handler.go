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

// PurchaseOrderHandler 采购相关的HTTP处理器
type PurchaseOrderHandler struct {
	purchasingService service.PurchasingService
	logger            *zap.Logger
}

// NewPurchaseOrderHandler 创建采购处理器实例
func NewPurchaseOrderHandler(purchasingService service.PurchasingService, logger *zap.Logger) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{
		purchasingService: purchasingService,
		logger:            logger,
	}
}

// CreatePO 创建采购单
// POST /api/v1/purchase-orders
func (h *PurchaseOrderHandler) CreatePO(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, branchID, _ := scopeFromRequest(r)

	var req domain.CreatePORequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	po, err := h.purchasingService.CreatePO(orgID, branchID, &req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "create purchase order", err)
		return
	}
	resp.OK(w, po, reqID, "")
}

// GetPO 获取采购单详情
// GET /api/v1/purchase-orders/{id}
func (h *PurchaseOrderHandler) GetPO(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, _ := scopeFromRequest(r)

	id, ok := pathID(r, 4) // /api/v1/purchase-orders/{id}
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid purchase order ID", reqID, "")
		return
	}

	po, err := h.purchasingService.GetPO(orgID, id)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "get purchase order", err)
		return
	}
	resp.OK(w, po, reqID, "")
}

// ListPOs 分页查询采购单
// GET /api/v1/purchase-orders
func (h *PurchaseOrderHandler) ListPOs(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, _ := scopeFromRequest(r)

	req := &domain.POListRequest{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 50),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		s := domain.POStatus(v)
		req.Status = &s
	}

	result, err := h.purchasingService.ListPOs(orgID, req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "list purchase orders", err)
		return
	}
	resp.OK(w, result, reqID, "")
}

// Receive 采购收货
// POST /api/v1/purchase-orders/{id}/receive
func (h *PurchaseOrderHandler) Receive(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, userID := scopeFromRequest(r)

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid purchase order ID", reqID, "")
		return
	}

	po, err := h.purchasingService.Receive(orgID, id, userID)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "receive purchase order", err)
		return
	}
	resp.OK(w, po, reqID, "")
}

// CancelPO 取消采购单
// POST /api/v1/purchase-orders/{id}/cancel
func (h *PurchaseOrderHandler) CancelPO(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, _ := scopeFromRequest(r)

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid purchase order ID", reqID, "")
		return
	}

	po, err := h.purchasingService.CancelPO(orgID, id)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "cancel purchase order", err)
		return
	}
	resp.OK(w, po, reqID, "")
}

// CreateSupplier 创建供应商
// POST /api/v1/suppliers
func (h *PurchaseOrderHandler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, _ := scopeFromRequest(r)

	var req domain.CreateSupplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	supplier, err := h.purchasingService.CreateSupplier(orgID, &req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "create supplier", err)
		return
	}
	resp.OK(w, supplier, reqID, "")
}

// ListSuppliers 列出供应商
// GET /api/v1/suppliers
func (h *PurchaseOrderHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, _ := scopeFromRequest(r)

	suppliers, err := h.purchasingService.ListSuppliers(orgID)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "list suppliers", err)
		return
	}
	resp.OK(w, suppliers, reqID, "")
}
