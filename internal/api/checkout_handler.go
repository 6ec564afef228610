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

// CheckoutHandler 收银台相关的HTTP处理器
type CheckoutHandler struct {
	checkoutService service.CheckoutService
	logger          *zap.Logger
}

// NewCheckoutHandler 创建收银台处理器实例
func NewCheckoutHandler(checkoutService service.CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		logger:          logger,
	}
}

// Checkout 结账
// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, branchID, userID := scopeFromRequest(r)

	var req domain.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	order, err := h.checkoutService.Checkout(orgID, branchID, userID, &req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "checkout", err)
		return
	}
	resp.OK(w, order, reqID, "")
}

// GetCart 获取当前购物车
// GET /api/v1/cart
func (h *CheckoutHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, branchID, userID := scopeFromRequest(r)

	items := h.checkoutService.GetCart(orgID, branchID, userID)
	resp.OK(w, items, reqID, "")
}

// SetCartItem 设置购物车行
// PUT /api/v1/cart/items
func (h *CheckoutHandler) SetCartItem(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, branchID, userID := scopeFromRequest(r)

	var req domain.CartItem
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	if err := h.checkoutService.SetCartItem(orgID, branchID, userID, req.ProductID, req.Quantity); err != nil {
		writeServiceError(w, h.logger, reqID, "set cart item", err)
		return
	}
	resp.OK(w, h.checkoutService.GetCart(orgID, branchID, userID), reqID, "")
}

// ClearCart 清空购物车
// DELETE /api/v1/cart
func (h *CheckoutHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, branchID, userID := scopeFromRequest(r)

	h.checkoutService.ClearCart(orgID, branchID, userID)
	resp.OK(w, nil, reqID, "")
}

// Hold 挂单
// POST /api/v1/cart/hold
func (h *CheckoutHandler) Hold(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, branchID, userID := scopeFromRequest(r)

	var req domain.HoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	hold, err := h.checkoutService.Hold(orgID, branchID, userID, &req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "hold cart", err)
		return
	}
	resp.OK(w, hold, reqID, "")
}

// ListHeld 列出挂单
// GET /api/v1/cart/held
func (h *CheckoutHandler) ListHeld(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, branchID, _ := scopeFromRequest(r)

	resp.OK(w, h.checkoutService.ListHeld(orgID, branchID), reqID, "")
}

// Resume 恢复挂单
// POST /api/v1/cart/held/{id}/resume
func (h *CheckoutHandler) Resume(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, branchID, userID := scopeFromRequest(r)

	holdID, ok := pathSegment(r, 5) // /api/v1/cart/held/{id}/resume
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid hold ID", reqID, "")
		return
	}

	items, err := h.checkoutService.Resume(orgID, branchID, userID, holdID)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "resume held order", err)
		return
	}
	resp.OK(w, items, reqID, "")
}
