package repo

import (
	"database/sql"
	"fmt"

	"github.com/stockflow/stockflow/internal/domain"
)

// ProductRepository 定义商品数据访问接口
type ProductRepository interface {
	// 基本CRUD操作
	Create(product *domain.Product) error
	GetByID(orgID, id int64) (*domain.Product, error)
	GetBySKU(orgID int64, sku string) (*domain.Product, error)
	Update(product *domain.Product) error

	// 查询操作
	List(orgID int64, req *domain.ProductListRequest) ([]*domain.Product, int64, error)
	GetByIDs(orgID int64, ids []int64) ([]*domain.Product, error)

	// UpdateCost 收货时写回最新进货成本
	UpdateCost(orgID, id int64, cost int64) error
}

// productRepo 实现ProductRepository接口
type productRepo struct {
	db *sql.DB
}

// NewProductRepository 创建商品仓储实例
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepo{db: db}
}

const productColumns = "id, org_id, sku, name, category, price, cost, status, image_url, created_at, updated_at"

func scanProduct(row interface{ Scan(...interface{}) error }) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.OrgID,
		&p.SKU,
		&p.Name,
		&p.Category,
		&p.Price,
		&p.Cost,
		&p.Status,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create 创建商品
func (r *productRepo) Create(product *domain.Product) error {
	query := `
		INSERT INTO products (org_id, sku, name, category, price, cost, status, image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		product.OrgID,
		product.SKU,
		product.Name,
		product.Category,
		product.Price,
		product.Cost,
		product.Status,
		product.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	product.ID = id
	return nil
}

// GetByID 根据ID获取商品
func (r *productRepo) GetByID(orgID, id int64) (*domain.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE org_id = ? AND id = ?
	`, productColumns)

	p, err := scanProduct(r.db.QueryRow(query, orgID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by id: %w", err)
	}
	return p, nil
}

// GetBySKU 根据SKU获取商品
func (r *productRepo) GetBySKU(orgID int64, sku string) (*domain.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE org_id = ? AND sku = ?
	`, productColumns)

	p, err := scanProduct(r.db.QueryRow(query, orgID, sku))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by sku: %w", err)
	}
	return p, nil
}

// Update 更新商品（不触碰 cost，成本只走 UpdateCost）
func (r *productRepo) Update(product *domain.Product) error {
	query := `
		UPDATE products
		SET name = ?, category = ?, price = ?, status = ?, image_url = ?
		WHERE org_id = ? AND id = ?
	`

	result, err := r.db.Exec(query,
		product.Name,
		product.Category,
		product.Price,
		product.Status,
		product.ImageURL,
		product.OrgID,
		product.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateCost 更新商品成本，最后一次收货的进价覆盖旧值
func (r *productRepo) UpdateCost(orgID, id int64, cost int64) error {
	query := `UPDATE products SET cost = ? WHERE org_id = ? AND id = ?`

	result, err := r.db.Exec(query, cost, orgID, id)
	if err != nil {
		return fmt.Errorf("failed to update product cost: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List 分页查询商品列表
func (r *productRepo) List(orgID int64, req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	where := "WHERE org_id = ?"
	args := []interface{}{orgID}

	if req.Category != nil && *req.Category != "" {
		where += " AND category = ?"
		args = append(args, *req.Category)
	}
	if req.Keyword != nil && *req.Keyword != "" {
		where += " AND (name LIKE ? OR sku LIKE ?)"
		kw := "%" + *req.Keyword + "%"
		args = append(args, kw, kw)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", where)
	var total int64
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY id
		LIMIT ? OFFSET ?
	`, productColumns, where)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, total, nil
}

// GetByIDs 根据ID列表批量获取商品
func (r *productRepo) GetByIDs(orgID int64, ids []int64) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return []*domain.Product{}, nil
	}

	placeholders := ""
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, orgID)
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE org_id = ? AND id IN (%s)
		ORDER BY id
	`, productColumns, placeholders)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products by ids: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}
