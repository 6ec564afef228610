// Package repo 提供带缓存的商品仓储实现
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/stockflow/stockflow/internal/cache"
	"github.com/stockflow/stockflow/internal/domain"
)

// CachedProductRepository 带缓存的商品仓储。
// 只缓存商品主数据；库存与订单永远不走缓存，保证分配计算实时准确。
type CachedProductRepository struct {
	repo  ProductRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedProductRepository 创建带缓存的商品仓储
func NewCachedProductRepository(repo ProductRepository, cache cache.Cache, ttl time.Duration) ProductRepository {
	return &CachedProductRepository{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
	}
}

// Create 创建商品（清除相关缓存）
func (r *CachedProductRepository) Create(product *domain.Product) error {
	if err := r.repo.Create(product); err != nil {
		return err
	}

	ctx := context.Background()
	r.cache.Del(ctx, r.productKey(product.OrgID, product.ID))
	r.cache.Del(ctx, r.skuKey(product.OrgID, product.SKU))
	return nil
}

// GetByID 根据ID获取商品（带缓存）
func (r *CachedProductRepository) GetByID(orgID, id int64) (*domain.Product, error) {
	ctx := context.Background()
	cacheKey := r.productKey(orgID, id)

	var product domain.Product
	if err := r.cache.Get(ctx, cacheKey, &product); err == nil {
		return &product, nil
	}

	result, err := r.repo.GetByID(orgID, id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	r.cache.Set(ctx, cacheKey, result, r.ttl)
	return result, nil
}

// GetBySKU 根据SKU获取商品（带缓存）
func (r *CachedProductRepository) GetBySKU(orgID int64, sku string) (*domain.Product, error) {
	ctx := context.Background()
	cacheKey := r.skuKey(orgID, sku)

	var product domain.Product
	if err := r.cache.Get(ctx, cacheKey, &product); err == nil {
		return &product, nil
	}

	result, err := r.repo.GetBySKU(orgID, sku)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	r.cache.Set(ctx, cacheKey, result, r.ttl)
	// 同时缓存ID索引
	r.cache.Set(ctx, r.productKey(orgID, result.ID), result, r.ttl)
	return result, nil
}

// Update 更新商品（失效缓存）
func (r *CachedProductRepository) Update(product *domain.Product) error {
	if err := r.repo.Update(product); err != nil {
		return err
	}

	ctx := context.Background()
	r.cache.Del(ctx, r.productKey(product.OrgID, product.ID))
	r.cache.Del(ctx, r.skuKey(product.OrgID, product.SKU))
	return nil
}

// UpdateCost 更新商品成本（失效缓存）
func (r *CachedProductRepository) UpdateCost(orgID, id int64, cost int64) error {
	if err := r.repo.UpdateCost(orgID, id, cost); err != nil {
		return err
	}
	r.cache.Del(context.Background(), r.productKey(orgID, id))
	return nil
}

// List 商品列表直接透传数据库，分页组合太多不值得缓存
func (r *CachedProductRepository) List(orgID int64, req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	return r.repo.List(orgID, req)
}

// GetByIDs 批量获取透传数据库
func (r *CachedProductRepository) GetByIDs(orgID int64, ids []int64) ([]*domain.Product, error) {
	return r.repo.GetByIDs(orgID, ids)
}

func (r *CachedProductRepository) productKey(orgID, id int64) string {
	return fmt.Sprintf("product:%d:%d", orgID, id)
}

func (r *CachedProductRepository) skuKey(orgID int64, sku string) string {
	return fmt.Sprintf("product:%d:sku:%s", orgID, sku)
}
