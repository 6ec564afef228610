// Package router 提供 HTTP 路由设置和中间件配置功能
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stockflow/stockflow/internal/api"
	"github.com/stockflow/stockflow/internal/cache"
	"github.com/stockflow/stockflow/internal/config"
	"github.com/stockflow/stockflow/internal/limiter"
	"github.com/stockflow/stockflow/internal/middleware"
	"github.com/stockflow/stockflow/internal/service"
)

// Dependencies 包含路由设置所需的所有依赖
type Dependencies struct {
	ProductHandler       *api.ProductHandler
	StockHandler         *api.StockHandler
	OrderHandler         *api.OrderHandler
	CheckoutHandler      *api.CheckoutHandler
	PurchaseOrderHandler *api.PurchaseOrderHandler
	JWTService           service.JWTService
	Cache                cache.Cache
	RateLimiter          limiter.Limiter // 可为 nil，表示不限流
}

// Router 路由器接口
type Router interface {
	Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler
}

// GinRouter Gin路由器实现
type GinRouter struct {
	engine *gin.Engine
	deps   *Dependencies
	logger *zap.Logger
}

// New 创建新的路由器实例
func New() Router {
	return &GinRouter{}
}

// Setup 设置路由和中间件。
// 外层横切中间件（请求ID/恢复/超时/CORS/访问日志）由调用方在
// net/http 层包装，这里只负责业务路由与业务级中间件。
func (r *GinRouter) Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler {
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r.engine = gin.New()
	r.deps = deps
	r.logger = lg

	r.setupRoutes(cfg)
	return r.engine
}

// setupRoutes 设置所有路由
func (r *GinRouter) setupRoutes(cfg *config.Config) {
	r.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": cfg.App.Version,
		})
	})

	authMW := adapt(middleware.AuthMiddleware(r.deps.JWTService, r.logger))
	scopeMW := adapt(middleware.Scope())
	adminMW := adapt(middleware.RequireAdmin(r.logger))

	v1 := r.engine.Group("/api/v1")
	v1.Use(authMW, scopeMW)
	{
		// 商品目录
		products := v1.Group("/products")
		{
			products.GET("", r.wrap(r.deps.ProductHandler.ListProducts))
			products.POST("", adminMW, r.wrap(r.deps.ProductHandler.CreateProduct))
			products.GET("/:id", r.wrap(r.deps.ProductHandler.GetProduct))
			products.PUT("/:id", adminMW, r.wrap(r.deps.ProductHandler.UpdateProduct))
		}

		// 库存台账与分配视图
		stock := v1.Group("/stock")
		{
			stock.GET("", r.wrap(r.deps.StockHandler.ListBranchStock))
			stock.GET("/alerts", r.wrap(r.deps.StockHandler.LowStockAlerts))
			stock.GET("/movements", r.wrap(r.deps.StockHandler.ListMovements))
			stock.POST("/adjust", r.wrap(r.deps.StockHandler.AdjustStock))
			stock.GET("/:product_id", r.wrap(r.deps.StockHandler.GetStockView))
			stock.PUT("/:product_id/bin", r.wrap(r.deps.StockHandler.UpdateBinLocation))
			stock.PUT("/:product_id/min-stock", r.wrap(r.deps.StockHandler.SetMinStock))
		}

		// 订单履约
		orders := v1.Group("/orders")
		{
			orders.GET("", r.wrap(r.deps.OrderHandler.ListOrders))
			orders.POST("/bulk-status", r.wrap(r.deps.OrderHandler.BulkUpdateFulfillment))
			orders.POST("/scan", r.wrap(r.deps.OrderHandler.ScanComplete))
			orders.GET("/:id", r.wrap(r.deps.OrderHandler.GetOrder))
			orders.PUT("/:id/fulfillment", r.wrap(r.deps.OrderHandler.UpdateFulfillment))
			orders.POST("/:id/cancel", r.wrap(r.deps.OrderHandler.CancelOrder))
		}

		// 结账：限流 + 幂等保护
		checkout := http.Handler(http.HandlerFunc(r.deps.CheckoutHandler.Checkout))
		checkout = middleware.Idempotency(r.deps.Cache, 24*time.Hour, r.logger)(checkout)
		if r.deps.RateLimiter != nil && cfg.RateLimit.Enabled {
			v1.POST("/checkout", r.rateLimitMiddleware(), gin.WrapH(checkout))
		} else {
			v1.POST("/checkout", gin.WrapH(checkout))
		}

		// 收银台购物车与挂单
		cart := v1.Group("/cart")
		{
			cart.GET("", r.wrap(r.deps.CheckoutHandler.GetCart))
			cart.DELETE("", r.wrap(r.deps.CheckoutHandler.ClearCart))
			cart.PUT("/items", r.wrap(r.deps.CheckoutHandler.SetCartItem))
			cart.POST("/hold", r.wrap(r.deps.CheckoutHandler.Hold))
			cart.GET("/held", r.wrap(r.deps.CheckoutHandler.ListHeld))
			cart.POST("/held/:id/resume", r.wrap(r.deps.CheckoutHandler.Resume))
		}

		// 采购
		pos := v1.Group("/purchase-orders")
		{
			pos.GET("", r.wrap(r.deps.PurchaseOrderHandler.ListPOs))
			pos.POST("", r.wrap(r.deps.PurchaseOrderHandler.CreatePO))
			pos.GET("/:id", r.wrap(r.deps.PurchaseOrderHandler.GetPO))
			pos.POST("/:id/receive", r.wrap(r.deps.PurchaseOrderHandler.Receive))
			pos.POST("/:id/cancel", adminMW, r.wrap(r.deps.PurchaseOrderHandler.CancelPO))
		}

		suppliers := v1.Group("/suppliers")
		{
			suppliers.GET("", r.wrap(r.deps.PurchaseOrderHandler.ListSuppliers))
			suppliers.POST("", adminMW, r.wrap(r.deps.PurchaseOrderHandler.CreateSupplier))
		}
	}
}

// wrap 将标准的 http.HandlerFunc 包装为 gin.HandlerFunc
func (r *GinRouter) wrap(handler func(http.ResponseWriter, *http.Request)) gin.HandlerFunc {
	return gin.WrapF(handler)
}

// rateLimitMiddleware 结账限流，按用户维度计数
func (r *GinRouter) rateLimitMiddleware() gin.HandlerFunc {
	return limiter.CheckoutRateLimitMiddleware(r.deps.RateLimiter)
}

// adapt 将 net/http 风格的中间件适配为 gin 中间件。
// 中间件吞掉请求（未调用 next）时中止 gin 的处理链。
func adapt(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		mw(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			passed = true
			c.Request = req
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}
