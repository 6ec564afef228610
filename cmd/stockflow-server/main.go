package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stockflow/stockflow/internal/api"
	"github.com/stockflow/stockflow/internal/cache"
	"github.com/stockflow/stockflow/internal/config"
	"github.com/stockflow/stockflow/internal/database"
	"github.com/stockflow/stockflow/internal/limiter"
	"github.com/stockflow/stockflow/internal/logger"
	mw "github.com/stockflow/stockflow/internal/middleware"
	"github.com/stockflow/stockflow/internal/mq"
	"github.com/stockflow/stockflow/internal/repo"
	"github.com/stockflow/stockflow/internal/router"
	"github.com/stockflow/stockflow/internal/service"
)

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %v", err)
	}

	return cfg, lg, nil
}

// initDatabase 初始化数据库连接并执行迁移
func initDatabase(cfg *config.Config, lg *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// 在HTTP服务器启动前执行迁移，确保处理请求时表结构已就绪
	migrationsDir := cfg.Migrations.Dir
	lg.Sugar().Infow("using migrations directory", "path", migrationsDir)

	if err := db.RunMigrations(migrationsDir); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %v", err)
	}

	return db, nil
}

// initCache 初始化缓存实例
func initCache(cfg *config.Config, lg *zap.Logger) cache.Cache {
	var cacheInstance cache.Cache
	if cfg.Cache.Enabled {
		switch cfg.Cache.Type {
		case "redis":
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			redisCache, err := cache.NewRedisCache(redisAddr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				lg.Sugar().Warnw("failed to connect to Redis, falling back to memory cache", "error", err)
				cacheInstance = cache.NewMemoryCache()
				lg.Sugar().Infow("cache enabled", "type", "memory (fallback)", "ttl", cfg.Cache.TTL)
			} else {
				cacheInstance = redisCache
				lg.Sugar().Infow("cache enabled", "type", "redis", "addr", redisAddr, "ttl", cfg.Cache.TTL)
			}
		case "memory":
			cacheInstance = cache.NewMemoryCache()
			lg.Sugar().Infow("cache enabled", "type", "memory", "ttl", cfg.Cache.TTL)
		default:
			lg.Sugar().Warnw("unknown cache type, using memory cache", "type", cfg.Cache.Type)
			cacheInstance = cache.NewMemoryCache()
			lg.Sugar().Infow("cache enabled", "type", "memory (default)", "ttl", cfg.Cache.TTL)
		}
	} else {
		cacheInstance = cache.NewNullCache()
		lg.Sugar().Infow("cache disabled")
	}
	return cacheInstance
}

// initPublisher 初始化事件发布器，MQ未启用或连接失败时退化为空实现
func initPublisher(cfg *config.Config, lg *zap.Logger) mq.EventPublisher {
	if !cfg.MQ.Enabled {
		lg.Sugar().Infow("mq disabled, events will be dropped")
		return mq.NewNopPublisher()
	}

	publisher, err := mq.NewAMQPPublisher(cfg.MQ.URL, cfg.MQ.Exchange, lg)
	if err != nil {
		lg.Sugar().Warnw("failed to connect to RabbitMQ, events will be dropped", "error", err)
		return mq.NewNopPublisher()
	}

	lg.Sugar().Infow("mq enabled", "exchange", cfg.MQ.Exchange)
	return publisher
}

// initRateLimiter 初始化结算接口限流器，未启用时返回 nil
func initRateLimiter(cfg *config.Config, lg *zap.Logger) limiter.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	rateLimiter, err := limiter.NewTokenBucketLimiter(client, &limiter.Config{
		Rate:      cfg.RateLimit.Rate,
		Window:    cfg.RateLimit.Window,
		Burst:     cfg.RateLimit.Burst,
		KeyPrefix: "limiter:checkout",
	})
	if err != nil {
		lg.Sugar().Warnw("failed to initialize rate limiter, rate limiting disabled", "error", err)
		return nil
	}

	lg.Sugar().Infow("rate limiting enabled", "rate", cfg.RateLimit.Rate, "burst", cfg.RateLimit.Burst, "window", cfg.RateLimit.Window)
	return rateLimiter
}

// initDependencies 初始化应用依赖（仓储、服务、处理器）
func initDependencies(cfg *config.Config, db *database.DB, cacheInstance cache.Cache, publisher mq.EventPublisher, rateLimiter limiter.Limiter, lg *zap.Logger) *router.Dependencies {
	// 依赖注入链：仓储 -> 服务 -> API处理器
	baseProductRepo := repo.NewProductRepository(db.DB)
	stockRepo := repo.NewStockRepository(db.DB)
	orderRepo := repo.NewOrderRepository(db.DB)
	poRepo := repo.NewPurchaseOrderRepository(db.DB)
	supplierRepo := repo.NewSupplierRepository(db.DB)

	// 可选缓存装饰器
	var productRepo repo.ProductRepository
	if cfg.Cache.Enabled {
		productRepo = repo.NewCachedProductRepository(baseProductRepo, cacheInstance, cfg.Cache.TTL)
	} else {
		productRepo = baseProductRepo
	}

	jwtService := service.NewJWTService(cfg, lg)
	productService := service.NewProductService(productRepo)
	allocationService := service.NewAllocationService(stockRepo, orderRepo, productRepo)
	stockService := service.NewStockService(stockRepo, productRepo, publisher, lg)
	checkoutService := service.NewCheckoutService(productRepo, stockRepo, orderRepo, publisher, lg)
	fulfillmentService := service.NewFulfillmentService(orderRepo, stockRepo, publisher, lg)
	purchasingService := service.NewPurchasingService(poRepo, stockRepo, productRepo, supplierRepo, publisher, lg)

	return &router.Dependencies{
		ProductHandler:       api.NewProductHandler(productService, lg),
		StockHandler:         api.NewStockHandler(allocationService, stockService, lg),
		OrderHandler:         api.NewOrderHandler(fulfillmentService, lg),
		CheckoutHandler:      api.NewCheckoutHandler(checkoutService, lg),
		PurchaseOrderHandler: api.NewPurchaseOrderHandler(purchasingService, lg),
		JWTService:           jwtService,
		Cache:                cacheInstance,
		RateLimiter:          rateLimiter,
	}
}

// setupRoutes 设置业务路由并包装横切中间件
func setupRoutes(cfg *config.Config, deps *router.Dependencies, lg *zap.Logger) http.Handler {
	businessHandler := router.New().Setup(cfg, deps, lg)

	// 构建中间件链：请求进入时执行顺序为 access log → CORS → timeout → recovery → request ID
	// 响应返回时执行顺序为 request ID → recovery → timeout → CORS → access log
	handler := mw.RequestID(businessHandler)
	handler = mw.Recovery(lg)(handler)
	handler = mw.Timeout(cfg.App.RequestTimeout)(handler)
	handler = mw.CORS(mw.CORSConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
	})(handler)
	handler = mw.AccessLog(lg)(handler)

	return handler
}

// startServer 启动服务器并处理优雅关闭
func startServer(cfg *config.Config, handler http.Handler, lg *zap.Logger) {
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	lg.Sugar().Infow("server starting", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	select {
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			lg.Sugar().Fatalw("server error", "err", err)
		}
	case <-quit:
		lg.Sugar().Infow("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Sugar().Errorw("server shutdown error", "err", err)
	}
	lg.Sugar().Infow("server exited")
}

// main 为应用入口，协调各个组件的初始化和启动
func main() {
	// 1) 加载配置和初始化日志
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		log.Fatalf("failed to initialize config and logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	// 2) 初始化数据库连接并执行迁移
	db, err := initDatabase(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to initialize database", "err", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			lg.Sugar().Errorw("failed to close database connection", "err", err)
		}
	}()

	// 3) 初始化缓存
	cacheInstance := initCache(cfg, lg)
	defer func() { _ = cacheInstance.Close() }()

	// 4) 初始化事件发布器
	publisher := initPublisher(cfg, lg)
	defer func() { _ = publisher.Close() }()

	// 5) 初始化限流器
	rateLimiter := initRateLimiter(cfg, lg)

	// 6) 初始化应用依赖（仓储、服务、处理器）
	deps := initDependencies(cfg, db, cacheInstance, publisher, rateLimiter, lg)

	// 7) 设置路由和中间件
	handler := setupRoutes(cfg, deps, lg)

	// 8) 启动服务器
	startServer(cfg, handler, lg)
}
