// Package middleware 提供组织/门店作用域中间件。
package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/stockflow/stockflow/internal/resp"
)

const (
	contextKeyOrgID    contextKey = "org_id"
	contextKeyBranchID contextKey = "branch_id"

	headerOrgID    = "X-Org-ID"
	headerBranchID = "X-Branch-ID"
)

// Scope 从请求头解析组织与门店 ID 并注入上下文。
// 所有库存与订单操作都要求显式作用域，缺失直接拒绝。
func Scope() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := RequestIDFromContext(r.Context())

			orgID, err := strconv.ParseInt(r.Header.Get(headerOrgID), 10, 64)
			if err != nil || orgID <= 0 {
				resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "valid X-Org-ID header required", reqID, "")
				return
			}
			branchID, err := strconv.ParseInt(r.Header.Get(headerBranchID), 10, 64)
			if err != nil || branchID <= 0 {
				resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "valid X-Branch-ID header required", reqID, "")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyOrgID, orgID)
			ctx = context.WithValue(ctx, contextKeyBranchID, branchID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OrgIDFromContext 从上下文读取组织 ID，缺失返回 0
func OrgIDFromContext(ctx context.Context) int64 {
	if v, ok := ctx.Value(contextKeyOrgID).(int64); ok {
		return v
	}
	return 0
}

// BranchIDFromContext 从上下文读取门店 ID，缺失返回 0
func BranchIDFromContext(ctx context.Context) int64 {
	if v, ok := ctx.Value(contextKeyBranchID).(int64); ok {
		return v
	}
	return 0
}
