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

// ProductHandler 商品相关的HTTP处理器
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler 创建商品处理器实例
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// CreateProduct 创建商品
// POST /api/v1/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, _ := scopeFromRequest(r)

	var req domain.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	product, err := h.productService.CreateProduct(orgID, &req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "create product", err)
		return
	}
	resp.OK(w, product, reqID, "")
}

// GetProduct 获取商品详情
// GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, _ := scopeFromRequest(r)

	id, ok := pathID(r, 4) // /api/v1/products/{id}
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	product, err := h.productService.GetProduct(orgID, id)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "get product", err)
		return
	}
	resp.OK(w, product, reqID, "")
}

// UpdateProduct 更新商品
// PUT /api/v1/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, _ := scopeFromRequest(r)

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	var req domain.UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	product, err := h.productService.UpdateProduct(orgID, id, &req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "update product", err)
		return
	}
	resp.OK(w, product, reqID, "")
}

// ListProducts 分页查询商品
// GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	orgID, _, _ := scopeFromRequest(r)

	req := &domain.ProductListRequest{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 50),
	}
	q := r.URL.Query()
	if v := q.Get("category"); v != "" {
		req.Category = &v
	}
	if v := q.Get("keyword"); v != "" {
		req.Keyword = &v
	}

	result, err := h.productService.ListProducts(orgID, req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "list products", err)
		return
	}
	resp.OK(w, result, reqID, "")
}
