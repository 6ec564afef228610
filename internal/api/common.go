// Package api 提供库存分配与订单履约的HTTP处理器实现。
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/stockflow/stockflow/internal/domain"
	"github.com/stockflow/stockflow/internal/middleware"
	"github.com/stockflow/stockflow/internal/resp"
)

// writeServiceError 统一把服务层错误映射为HTTP响应。
// 参数类错误回 400，缺失回 404，状态冲突与库存不足回 409，
// 其余按内部错误处理并打日志。
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, reqID, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrScopeRequired):
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
	case errors.Is(err, domain.ErrNotFound):
		resp.Error(w, http.StatusNotFound, resp.CodeNotFound, err.Error(), reqID, "")
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrInsufficientStock):
		resp.Error(w, http.StatusConflict, resp.CodeConflict, err.Error(), reqID, "")
	default:
		logger.Error(op+" failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, op+" failed", reqID, "")
	}
}

// pathID 从URL路径的指定段解析int64 ID
func pathID(r *http.Request, index int) (int64, bool) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) <= index {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[index], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pathSegment 返回URL路径的指定段
func pathSegment(r *http.Request, index int) (string, bool) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) <= index || parts[index] == "" {
		return "", false
	}
	return parts[index], true
}

// queryInt 解析查询参数中的整数，缺失或非法时返回默认值
func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// queryInt64Ptr 解析查询参数中的int64，缺失时返回nil
func queryInt64Ptr(r *http.Request, key string) *int64 {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return &n
		}
	}
	return nil
}

// scopeFromRequest 从上下文提取组织/门店作用域与操作者
func scopeFromRequest(r *http.Request) (orgID, branchID, userID int64) {
	ctx := r.Context()
	orgID = middleware.OrgIDFromContext(ctx)
	branchID = middleware.BranchIDFromContext(ctx)
	if user := middleware.UserFromContext(ctx); user != nil {
		userID = user.ID
	}
	return orgID, branchID, userID
}
