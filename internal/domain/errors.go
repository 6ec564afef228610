// Package domain 定义库存分配与订单履约引擎的业务领域模型和核心业务规则。
package domain

import "errors"

// 引擎级错误分类。所有服务层错误都通过 %w 包装到这些哨兵错误上，
// HTTP 层用 errors.Is 做状态码映射。
var (
	// ErrValidation 表示请求参数不满足业务规则（空购物车、数量非法、缺少原因等）。
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition 表示不在状态转换表中的履约状态变更，
	// 或对已收货的采购单重复收货。
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNotFound 表示商品/门店/订单/采购单不存在，或扫码无匹配。
	ErrNotFound = errors.New("not found")

	// ErrScopeRequired 表示操作缺少组织或门店上下文。
	ErrScopeRequired = errors.New("org and branch scope required")

	// ErrInsufficientStock 表示物理库存不允许该变更（扣减后将为负）。
	ErrInsufficientStock = errors.New("insufficient stock")
)
