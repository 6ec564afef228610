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

// StockHandler 库存相关的HTTP处理器
type StockHandler struct {
	allocationService service.AllocationService
	stockService      service.StockService
	logger            *zap.Logger
}

// NewStockHandler 创建库存处理器实例
func NewStockHandler(allocationService service.AllocationService, stockService service.StockService, logger *zap.Logger) *StockHandler {
	return &StockHandler{
		allocationService: allocationService,
		stockService:      stockService,
		logger:            logger,
	}
}

// GetStockView 获取单个商品的分配视图
// GET /api/v1/stock/{product_id}
func (h *StockHandler) GetStockView(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, branchID, _ := scopeFromRequest(r)

	productID, ok := pathID(r, 4) // /api/v1/stock/{product_id}
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	view, err := h.allocationService.StockView(orgID, branchID, productID)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "get stock view", err)
		return
	}
	resp.OK(w, view, reqID, "")
}

// ListBranchStock 获取门店全量分配视图
// GET /api/v1/stock
func (h *StockHandler) ListBranchStock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, branchID, _ := scopeFromRequest(r)

	views, err := h.allocationService.BranchStockViews(orgID, branchID)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "list branch stock", err)
		return
	}
	resp.OK(w, views, reqID, "")
}

// LowStockAlerts 低库存警告
// GET /api/v1/stock/alerts
func (h *StockHandler) LowStockAlerts(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, branchID, _ := scopeFromRequest(r)

	alerts, err := h.allocationService.LowStockAlerts(orgID, branchID)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "low stock alerts", err)
		return
	}
	resp.OK(w, alerts, reqID, "")
}

// AdjustStock 手工库存调整
// POST /api/v1/stock/adjust
func (h *StockHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, branchID, userID := scopeFromRequest(r)

	var req domain.AdjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	movement, err := h.stockService.AdjustStock(orgID, branchID, userID, &req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "adjust stock", err)
		return
	}
	resp.OK(w, movement, reqID, "")
}

// UpdateBinLocation 更新货位
// PUT /api/v1/stock/{product_id}/bin
func (h *StockHandler) UpdateBinLocation(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, branchID, _ := scopeFromRequest(r)

	productID, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	var req domain.UpdateBinLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	if err := h.stockService.UpdateBinLocation(orgID, branchID, productID, req.BinLocation); err != nil {
		writeServiceError(w, h.logger, reqID, "update bin location", err)
		return
	}
	resp.OK(w, nil, reqID, "")
}

// SetMinStock 设置低库存阈值
// PUT /api/v1/stock/{product_id}/min-stock
func (h *StockHandler) SetMinStock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, branchID, _ := scopeFromRequest(r)

	productID, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	var req struct {
		MinStock int `json:"min_stock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	if err := h.stockService.SetMinStock(orgID, branchID, productID, req.MinStock); err != nil {
		writeServiceError(w, h.logger, reqID, "set min stock", err)
		return
	}
	resp.OK(w, nil, reqID, "")
}

// ListMovements 查询库存流水
// GET /api/v1/stock/movements
func (h *StockHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, _ := scopeFromRequest(r)

	req := &domain.MovementListRequest{
		Page:      queryInt(r, "page", 1),
		PageSize:  queryInt(r, "page_size", 50),
		BranchID:  queryInt64Ptr(r, "branch_id"),
		ProductID: queryInt64Ptr(r, "product_id"),
	}
	if v := r.URL.Query().Get("type"); v != "" {
		t := domain.MovementType(v)
		req.Type = &t
	}

	result, err := h.stockService.ListMovements(orgID, req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "list movements", err)
		return
	}
	resp.OK(w, result, reqID, "")
}
