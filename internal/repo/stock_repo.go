// Package repo 实现库存与订单数据访问层，负责与数据库的交互。
package repo

import (
	"database/sql"
	"fmt"

	"github.com/stockflow/stockflow/internal/domain"
)

// StockRepository 定义库存数据访问接口
type StockRepository interface {
	// GetByProduct 查询指定门店下某商品的库存行，不存在时返回 (nil, nil)
	GetByProduct(orgID, branchID, productID int64) (*domain.StockLevel, error)
	// Ensure 确保库存行存在，缺失时以零库存与默认最低库存创建
	Ensure(orgID, branchID, productID int64) (*domain.StockLevel, error)
	// AdjustQuantity 对物理库存施加带符号增量；会把库存推到负数的增量被拒绝
	AdjustQuantity(orgID, branchID, productID int64, delta int) error
	UpdateBinLocation(orgID, branchID, productID int64, bin string) error
	UpdateMinStock(orgID, branchID, productID int64, minStock int) error
	ListByBranch(orgID, branchID int64) ([]*domain.StockLevel, error)
	ListByOrg(orgID int64) ([]*domain.StockLevel, error)

	// 流水操作
	CreateMovement(m *domain.StockMovement) error
	ListMovements(orgID int64, req *domain.MovementListRequest) ([]*domain.StockMovement, int64, error)
}

// stockRepo 实现StockRepository接口
type stockRepo struct {
	db *sql.DB
}

// NewStockRepository 创建库存仓储实例
func NewStockRepository(db *sql.DB) StockRepository {
	return &stockRepo{db: db}
}

const stockColumns = "id, org_id, branch_id, product_id, quantity, min_stock, bin_location, version, created_at, updated_at"

func scanStockLevel(row interface{ Scan(...interface{}) error }) (*domain.StockLevel, error) {
	s := &domain.StockLevel{}
	err := row.Scan(
		&s.ID,
		&s.OrgID,
		&s.BranchID,
		&s.ProductID,
		&s.Quantity,
		&s.MinStock,
		&s.BinLocation,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByProduct 查询库存行
func (r *stockRepo) GetByProduct(orgID, branchID, productID int64) (*domain.StockLevel, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM stock_levels
		WHERE org_id = ? AND branch_id = ? AND product_id = ?
	`, stockColumns)

	s, err := scanStockLevel(r.db.QueryRow(query, orgID, branchID, productID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock level: %w", err)
	}
	return s, nil
}

// Ensure 惰性建行：商品第一次在某门店发生库存事件时创建库存行。
// 并发创建依赖唯一键 (org_id, branch_id, product_id)，冲突时改走查询。
func (r *stockRepo) Ensure(orgID, branchID, productID int64) (*domain.StockLevel, error) {
	existing, err := r.GetByProduct(orgID, branchID, productID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	query := `
		INSERT INTO stock_levels (org_id, branch_id, product_id, quantity, min_stock)
		VALUES (?, ?, ?, 0, ?)
		ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)
	`
	if _, err := r.db.Exec(query, orgID, branchID, productID, domain.DefaultMinStock); err != nil {
		return nil, fmt.Errorf("failed to ensure stock level: %w", err)
	}
	return r.GetByProduct(orgID, branchID, productID)
}

// AdjustQuantity 施加带符号增量。
// 负向增量通过守卫条件 quantity + ? >= 0 在数据库层拒绝超扣，
// 避免读改写竞态；RowsAffected 为 0 视为库存不足。
func (r *stockRepo) AdjustQuantity(orgID, branchID, productID int64, delta int) error {
	query := `
		UPDATE stock_levels
		SET quantity = quantity + ?, version = version + 1
		WHERE org_id = ? AND branch_id = ? AND product_id = ? AND quantity + ? >= 0
	`

	result, err := r.db.Exec(query, delta, orgID, branchID, productID, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust stock quantity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

// UpdateBinLocation 更新库位
func (r *stockRepo) UpdateBinLocation(orgID, branchID, productID int64, bin string) error {
	query := `
		UPDATE stock_levels
		SET bin_location = ?, version = version + 1
		WHERE org_id = ? AND branch_id = ? AND product_id = ?
	`

	result, err := r.db.Exec(query, bin, orgID, branchID, productID)
	if err != nil {
		return fmt.Errorf("failed to update bin location: %w", err)
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

// UpdateMinStock 更新最低库存阈值
func (r *stockRepo) UpdateMinStock(orgID, branchID, productID int64, minStock int) error {
	query := `
		UPDATE stock_levels
		SET min_stock = ?, version = version + 1
		WHERE org_id = ? AND branch_id = ? AND product_id = ?
	`

	result, err := r.db.Exec(query, minStock, orgID, branchID, productID)
	if err != nil {
		return fmt.Errorf("failed to update min stock: %w", err)
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

// ListByBranch 列出门店的全部库存行
func (r *stockRepo) ListByBranch(orgID, branchID int64) ([]*domain.StockLevel, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM stock_levels
		WHERE org_id = ? AND branch_id = ?
		ORDER BY product_id
	`, stockColumns)

	rows, err := r.db.Query(query, orgID, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock levels: %w", err)
	}
	defer rows.Close()

	return collectStockLevels(rows)
}

// ListByOrg 列出组织下全部门店的库存行
func (r *stockRepo) ListByOrg(orgID int64) ([]*domain.StockLevel, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM stock_levels
		WHERE org_id = ?
		ORDER BY branch_id, product_id
	`, stockColumns)

	rows, err := r.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock levels by org: %w", err)
	}
	defer rows.Close()

	return collectStockLevels(rows)
}

func collectStockLevels(rows *sql.Rows) ([]*domain.StockLevel, error) {
	var levels []*domain.StockLevel
	for rows.Next() {
		s, err := scanStockLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stock levels: %w", err)
	}
	return levels, nil
}

// CreateMovement 写入一条库存流水。流水只追加，不修改不删除。
func (r *stockRepo) CreateMovement(m *domain.StockMovement) error {
	query := `
		INSERT INTO stock_movements (org_id, branch_id, product_id, type, quantity, note, user_id, reference)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		m.OrgID,
		m.BranchID,
		m.ProductID,
		m.Type,
		m.Quantity,
		m.Note,
		m.UserID,
		m.Reference,
	)
	if err != nil {
		return fmt.Errorf("failed to create stock movement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	m.ID = id
	return nil
}

// ListMovements 分页查询库存流水，按时间倒序
func (r *stockRepo) ListMovements(orgID int64, req *domain.MovementListRequest) ([]*domain.StockMovement, int64, error) {
	where := "WHERE org_id = ?"
	args := []interface{}{orgID}

	if req.BranchID != nil {
		where += " AND branch_id = ?"
		args = append(args, *req.BranchID)
	}
	if req.ProductID != nil {
		where += " AND product_id = ?"
		args = append(args, *req.ProductID)
	}
	if req.Type != nil {
		where += " AND type = ?"
		args = append(args, *req.Type)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM stock_movements %s", where)
	var total int64
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count stock movements: %w", err)
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
		SELECT id, org_id, branch_id, product_id, type, quantity, note, user_id, reference, created_at
		FROM stock_movements
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, where)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list stock movements: %w", err)
	}
	defer rows.Close()

	var movements []*domain.StockMovement
	for rows.Next() {
		m := &domain.StockMovement{}
		err := rows.Scan(
			&m.ID,
			&m.OrgID,
			&m.BranchID,
			&m.ProductID,
			&m.Type,
			&m.Quantity,
			&m.Note,
			&m.UserID,
			&m.Reference,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate stock movements: %w", err)
	}
	return movements, total, nil
}
