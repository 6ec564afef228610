package service

import (
	"fmt"
	"strings"

	"github.com/stockflow/stockflow/internal/domain"
	"github.com/stockflow/stockflow/internal/repo"
)

// ProductService 定义商品目录业务接口
type ProductService interface {
	CreateProduct(orgID int64, req *domain.CreateProductRequest) (*domain.Product, error)
	GetProduct(orgID, id int64) (*domain.Product, error)
	UpdateProduct(orgID, id int64, req *domain.UpdateProductRequest) (*domain.Product, error)
	ListProducts(orgID int64, req *domain.ProductListRequest) (*domain.ProductListResponse, error)
}

// productService 实现ProductService接口
type productService struct {
	productRepo repo.ProductRepository
}

// NewProductService 创建商品服务实例
func NewProductService(productRepo repo.ProductRepository) ProductService {
	return &productService{productRepo: productRepo}
}

// CreateProduct 创建商品，SKU 在组织内唯一
func (s *productService) CreateProduct(orgID int64, req *domain.CreateProductRequest) (*domain.Product, error) {
	if orgID <= 0 {
		return nil, domain.ErrScopeRequired
	}
	sku := strings.TrimSpace(req.SKU)
	if sku == "" {
		return nil, fmt.Errorf("%w: sku is required", domain.ErrValidation)
	}
	if req.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", domain.ErrValidation)
	}

	existing, err := s.productRepo.GetBySKU(orgID, sku)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: sku %q already exists", domain.ErrValidation, sku)
	}

	product := &domain.Product{
		OrgID:    orgID,
		SKU:      sku,
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		Cost:     req.Cost,
		Status:   domain.ProductStatusActive,
		ImageURL: req.ImageURL,
	}
	if err := s.productRepo.Create(product); err != nil {
		return nil, err
	}
	return product, nil
}

// GetProduct 获取商品详情
func (s *productService) GetProduct(orgID, id int64) (*domain.Product, error) {
	if orgID <= 0 {
		return nil, domain.ErrScopeRequired
	}
	product, err := s.productRepo.GetByID(orgID, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, id)
	}
	return product, nil
}

// UpdateProduct 局部更新商品。成本不在这里改，只随采购收货变化。
func (s *productService) UpdateProduct(orgID, id int64, req *domain.UpdateProductRequest) (*domain.Product, error) {
	product, err := s.GetProduct(orgID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return nil, fmt.Errorf("%w: price must be positive", domain.ErrValidation)
		}
		product.Price = *req.Price
	}
	if req.Status != nil {
		if *req.Status != domain.ProductStatusActive && *req.Status != domain.ProductStatusInactive {
			return nil, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, *req.Status)
		}
		product.Status = *req.Status
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}

	if err := s.productRepo.Update(product); err != nil {
		return nil, err
	}
	return product, nil
}

// ListProducts 分页查询商品
func (s *productService) ListProducts(orgID int64, req *domain.ProductListRequest) (*domain.ProductListResponse, error) {
	if orgID <= 0 {
		return nil, domain.ErrScopeRequired
	}

	products, total, err := s.productRepo.List(orgID, req)
	if err != nil {
		return nil, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return &domain.ProductListResponse{
		Products: products,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}
