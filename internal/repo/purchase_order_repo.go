package repo

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/stockflow/stockflow/internal/domain"
)

// PurchaseOrderRepository 定义采购单数据访问接口
type PurchaseOrderRepository interface {
	Create(po *domain.PurchaseOrder) error
	GetByID(orgID, id int64) (*domain.PurchaseOrder, error)
	List(orgID int64, req *domain.POListRequest) ([]*domain.PurchaseOrder, int64, error)

	// UpdateStatusIf 带状态前置条件的CAS更新，条件不满足时返回 ErrInvalidTransition
	UpdateStatusIf(orgID, id int64, from, to domain.POStatus) error
	// MarkReceived 收货完成：置为 RECEIVED 并写入收货时间
	MarkReceived(orgID, id int64, receivedAt time.Time) error
}

// purchaseOrderRepo 实现PurchaseOrderRepository接口
type purchaseOrderRepo struct {
	db *sql.DB
}

// NewPurchaseOrderRepository 创建采购单仓储实例
func NewPurchaseOrderRepository(db *sql.DB) PurchaseOrderRepository {
	return &purchaseOrderRepo{db: db}
}

const poColumns = `id, reference_no, org_id, branch_id, supplier_id, status,
		total_cost, notes, order_date, received_date, created_at, updated_at`

func scanPurchaseOrder(row interface{ Scan(...interface{}) error }) (*domain.PurchaseOrder, error) {
	po := &domain.PurchaseOrder{}
	var receivedDate sql.NullTime
	err := row.Scan(
		&po.ID,
		&po.ReferenceNo,
		&po.OrgID,
		&po.BranchID,
		&po.SupplierID,
		&po.Status,
		&po.TotalCost,
		&po.Notes,
		&po.OrderDate,
		&receivedDate,
		&po.CreatedAt,
		&po.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if receivedDate.Valid {
		t := receivedDate.Time
		po.ReceivedDate = &t
	}
	return po, nil
}

// Create 创建采购单及采购行
func (r *purchaseOrderRepo) Create(po *domain.PurchaseOrder) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO purchase_orders (reference_no, org_id, branch_id, supplier_id, status, total_cost, notes, order_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.Exec(query,
		po.ReferenceNo,
		po.OrgID,
		po.BranchID,
		po.SupplierID,
		po.Status,
		po.TotalCost,
		po.Notes,
		po.OrderDate,
	)
	if err != nil {
		return fmt.Errorf("failed to create purchase order: %w", err)
	}

	poID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	itemQuery := `
		INSERT INTO purchase_order_items (purchase_order_id, product_id, quantity, unit_cost)
		VALUES (?, ?, ?, ?)
	`
	for _, item := range po.Items {
		res, err := tx.Exec(itemQuery, poID, item.ProductID, item.Quantity, item.UnitCost)
		if err != nil {
			return fmt.Errorf("failed to create purchase order item: %w", err)
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get purchase order item id: %w", err)
		}
		item.ID = itemID
		item.PurchaseOrderID = poID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit purchase order: %w", err)
	}
	po.ID = poID
	return nil
}

// GetByID 根据ID获取采购单（含采购行）
func (r *purchaseOrderRepo) GetByID(orgID, id int64) (*domain.PurchaseOrder, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM purchase_orders
		WHERE org_id = ? AND id = ?
	`, poColumns)

	po, err := scanPurchaseOrder(r.db.QueryRow(query, orgID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase order: %w", err)
	}

	if err := r.loadItems(po); err != nil {
		return nil, err
	}
	return po, nil
}

func (r *purchaseOrderRepo) loadItems(po *domain.PurchaseOrder) error {
	query := `
		SELECT id, purchase_order_id, product_id, quantity, unit_cost
		FROM purchase_order_items
		WHERE purchase_order_id = ?
		ORDER BY id
	`
	rows, err := r.db.Query(query, po.ID)
	if err != nil {
		return fmt.Errorf("failed to load purchase order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item := &domain.POItem{}
		if err := rows.Scan(&item.ID, &item.PurchaseOrderID, &item.ProductID, &item.Quantity, &item.UnitCost); err != nil {
			return fmt.Errorf("failed to scan purchase order item: %w", err)
		}
		po.Items = append(po.Items, item)
	}
	return rows.Err()
}

// List 分页查询采购单
func (r *purchaseOrderRepo) List(orgID int64, req *domain.POListRequest) ([]*domain.PurchaseOrder, int64, error) {
	where := "WHERE org_id = ?"
	args := []interface{}{orgID}

	if req.Status != nil {
		where += " AND status = ?"
		args = append(args, *req.Status)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM purchase_orders %s", where)
	var total int64
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count purchase orders: %w", err)
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
		FROM purchase_orders
		%s
		ORDER BY order_date DESC, id DESC
		LIMIT ? OFFSET ?
	`, poColumns, where)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	defer rows.Close()

	var pos []*domain.PurchaseOrder
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan purchase order: %w", err)
		}
		pos = append(pos, po)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate purchase orders: %w", err)
	}

	for _, po := range pos {
		if err := r.loadItems(po); err != nil {
			return nil, 0, err
		}
	}
	return pos, total, nil
}

// UpdateStatusIf CAS状态更新。并发收货时只有一个调用方能把
// OPEN 翻成 RECEIVING，落败方拿到 ErrInvalidTransition。
func (r *purchaseOrderRepo) UpdateStatusIf(orgID, id int64, from, to domain.POStatus) error {
	query := `
		UPDATE purchase_orders
		SET status = ?
		WHERE org_id = ? AND id = ? AND status = ?
	`
	result, err := r.db.Exec(query, to, orgID, id, from)
	if err != nil {
		return fmt.Errorf("failed to update purchase order status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// MarkReceived 置为已收货并记录收货时间
func (r *purchaseOrderRepo) MarkReceived(orgID, id int64, receivedAt time.Time) error {
	query := `
		UPDATE purchase_orders
		SET status = ?, received_date = ?
		WHERE org_id = ? AND id = ?
	`
	result, err := r.db.Exec(query, domain.POStatusReceived, receivedAt, orgID, id)
	if err != nil {
		return fmt.Errorf("failed to mark purchase order received: %w", err)
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
