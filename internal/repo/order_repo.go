package repo

import (
	"database/sql"
	"fmt"

	"github.com/stockflow/stockflow/internal/domain"
)

// OrderRepository 定义订单数据访问接口
type OrderRepository interface {
	// Create 在单个事务里写入订单与全部订单行
	Create(order *domain.Order) error
	GetByID(orgID, id int64) (*domain.Order, error)
	GetByNumber(orgID int64, number string) (*domain.Order, error)
	List(orgID int64, req *domain.OrderListRequest) ([]*domain.Order, int64, error)

	// 状态变更
	UpdateFulfillment(order *domain.Order) error
	UpdateCancellation(order *domain.Order) error

	// 分配计算：活动履约状态下 SALE 订单占用的数量
	AllocatedQuantity(orgID, branchID, productID int64) (int, error)
	AllocatedByBranch(orgID, branchID int64) (map[int64]int, error)

	// FindByScanCode 按运单号、订单号、外部单号的优先级查找订单
	FindByScanCode(orgID int64, code string) (*domain.Order, error)
}

// orderRepo 实现OrderRepository接口
type orderRepo struct {
	db *sql.DB
}

// NewOrderRepository 创建订单仓储实例
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepo{db: db}
}

const orderColumns = `id, order_number, org_id, branch_id, type, status, fulfillment_status,
		total, payment_method, customer_id, external_ref,
		carrier, tracking_number, shipped_at, delivered_at,
		cancellation_reason, user_id, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*domain.Order, error) {
	o := &domain.Order{}
	var (
		carrier, tracking      sql.NullString
		shippedAt, deliveredAt sql.NullTime
	)
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.OrgID,
		&o.BranchID,
		&o.Type,
		&o.Status,
		&o.FulfillmentStatus,
		&o.Total,
		&o.PaymentMethod,
		&o.CustomerID,
		&o.ExternalRef,
		&carrier,
		&tracking,
		&shippedAt,
		&deliveredAt,
		&o.CancellationReason,
		&o.UserID,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if carrier.Valid || tracking.Valid || shippedAt.Valid || deliveredAt.Valid {
		o.Shipping = &domain.ShippingInfo{
			Carrier:        carrier.String,
			TrackingNumber: tracking.String,
		}
		if shippedAt.Valid {
			t := shippedAt.Time
			o.Shipping.ShippedAt = &t
		}
		if deliveredAt.Valid {
			t := deliveredAt.Time
			o.Shipping.DeliveredAt = &t
		}
	}
	return o, nil
}

// Create 创建订单及订单行
func (r *orderRepo) Create(order *domain.Order) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (order_number, org_id, branch_id, type, status, fulfillment_status,
			total, payment_method, customer_id, external_ref, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.Exec(query,
		order.OrderNumber,
		order.OrgID,
		order.BranchID,
		order.Type,
		order.Status,
		order.FulfillmentStatus,
		order.Total,
		order.PaymentMethod,
		order.CustomerID,
		order.ExternalRef,
		order.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	orderID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, sku, name, quantity, unit_price, unit_cost)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, item := range order.Items {
		res, err := tx.Exec(itemQuery,
			orderID,
			item.ProductID,
			item.SKU,
			item.Name,
			item.Quantity,
			item.UnitPrice,
			item.UnitCost,
		)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get order item id: %w", err)
		}
		item.ID = itemID
		item.OrderID = orderID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	order.ID = orderID
	return nil
}

// GetByID 根据ID获取订单（含订单行）
func (r *orderRepo) GetByID(orgID, id int64) (*domain.Order, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		WHERE org_id = ? AND id = ?
	`, orderColumns)

	o, err := scanOrder(r.db.QueryRow(query, orgID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order by id: %w", err)
	}

	if err := r.loadItems(o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetByNumber 根据订单号获取订单
func (r *orderRepo) GetByNumber(orgID int64, number string) (*domain.Order, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		WHERE org_id = ? AND order_number = ?
	`, orderColumns)

	o, err := scanOrder(r.db.QueryRow(query, orgID, number))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order by number: %w", err)
	}

	if err := r.loadItems(o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepo) loadItems(o *domain.Order) error {
	query := `
		SELECT id, order_id, product_id, sku, name, quantity, unit_price, unit_cost
		FROM order_items
		WHERE order_id = ?
		ORDER BY id
	`
	rows, err := r.db.Query(query, o.ID)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item := &domain.OrderItem{}
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.SKU,
			&item.Name,
			&item.Quantity,
			&item.UnitPrice,
			&item.UnitCost,
		)
		if err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	return rows.Err()
}

// List 分页查询订单，按创建时间倒序
func (r *orderRepo) List(orgID int64, req *domain.OrderListRequest) ([]*domain.Order, int64, error) {
	where := "WHERE org_id = ?"
	args := []interface{}{orgID}

	if req.BranchID != nil {
		where += " AND branch_id = ?"
		args = append(args, *req.BranchID)
	}
	if req.Type != nil {
		where += " AND type = ?"
		args = append(args, *req.Type)
	}
	if req.Status != nil {
		where += " AND status = ?"
		args = append(args, *req.Status)
	}
	if req.FulfillmentStatus != nil {
		where += " AND fulfillment_status = ?"
		args = append(args, *req.FulfillmentStatus)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM orders %s", where)
	var total int64
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
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
		FROM orders
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, orderColumns, where)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate orders: %w", err)
	}

	for _, o := range orders {
		if err := r.loadItems(o); err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

// UpdateFulfillment 持久化履约状态与发货信息
func (r *orderRepo) UpdateFulfillment(order *domain.Order) error {
	var (
		carrier, tracking      sql.NullString
		shippedAt, deliveredAt sql.NullTime
	)
	if order.Shipping != nil {
		if order.Shipping.Carrier != "" {
			carrier = sql.NullString{String: order.Shipping.Carrier, Valid: true}
		}
		if order.Shipping.TrackingNumber != "" {
			tracking = sql.NullString{String: order.Shipping.TrackingNumber, Valid: true}
		}
		if order.Shipping.ShippedAt != nil {
			shippedAt = sql.NullTime{Time: *order.Shipping.ShippedAt, Valid: true}
		}
		if order.Shipping.DeliveredAt != nil {
			deliveredAt = sql.NullTime{Time: *order.Shipping.DeliveredAt, Valid: true}
		}
	}

	query := `
		UPDATE orders
		SET fulfillment_status = ?, carrier = ?, tracking_number = ?, shipped_at = ?, delivered_at = ?
		WHERE org_id = ? AND id = ?
	`
	result, err := r.db.Exec(query,
		order.FulfillmentStatus,
		carrier,
		tracking,
		shippedAt,
		deliveredAt,
		order.OrgID,
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update fulfillment: %w", err)
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

// UpdateCancellation 持久化取消结果：履约状态、财务状态与取消原因
func (r *orderRepo) UpdateCancellation(order *domain.Order) error {
	query := `
		UPDATE orders
		SET fulfillment_status = ?, status = ?, cancellation_reason = ?
		WHERE org_id = ? AND id = ?
	`
	result, err := r.db.Exec(query,
		order.FulfillmentStatus,
		order.Status,
		order.CancellationReason,
		order.OrgID,
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cancellation: %w", err)
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

// AllocatedQuantity 统计某商品在门店被活动 SALE 订单占用的数量。
// 只有 PENDING/PICKED/PACKED/SHIPPED 参与统计；DELIVERED 及终态不占用。
func (r *orderRepo) AllocatedQuantity(orgID, branchID, productID int64) (int, error) {
	query := `
		SELECT COALESCE(SUM(oi.quantity), 0)
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.org_id = ? AND o.branch_id = ? AND oi.product_id = ?
		  AND o.type = ? AND o.fulfillment_status IN (?, ?, ?, ?)
	`
	var allocated int
	err := r.db.QueryRow(query, orgID, branchID, productID,
		domain.OrderTypeSale,
		domain.FulfillmentPending, domain.FulfillmentPicked,
		domain.FulfillmentPacked, domain.FulfillmentShipped,
	).Scan(&allocated)
	if err != nil {
		return 0, fmt.Errorf("failed to sum allocated quantity: %w", err)
	}
	return allocated, nil
}

// AllocatedByBranch 返回门店内每个商品的已分配数量，键为商品ID
func (r *orderRepo) AllocatedByBranch(orgID, branchID int64) (map[int64]int, error) {
	query := `
		SELECT oi.product_id, COALESCE(SUM(oi.quantity), 0)
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.org_id = ? AND o.branch_id = ?
		  AND o.type = ? AND o.fulfillment_status IN (?, ?, ?, ?)
		GROUP BY oi.product_id
	`
	rows, err := r.db.Query(query, orgID, branchID,
		domain.OrderTypeSale,
		domain.FulfillmentPending, domain.FulfillmentPicked,
		domain.FulfillmentPacked, domain.FulfillmentShipped,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocated by branch: %w", err)
	}
	defer rows.Close()

	allocated := make(map[int64]int)
	for rows.Next() {
		var productID int64
		var qty int
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan allocated row: %w", err)
		}
		allocated[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate allocated rows: %w", err)
	}
	return allocated, nil
}

// FindByScanCode 按扫码值查找订单。
// 匹配优先级：运单号 > 订单号 > 外部单号，同级命中多条时取最新一条。
func (r *orderRepo) FindByScanCode(orgID int64, code string) (*domain.Order, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		WHERE org_id = ? AND (tracking_number = ? OR order_number = ? OR external_ref = ?)
		ORDER BY
			CASE
				WHEN tracking_number = ? THEN 0
				WHEN order_number = ? THEN 1
				ELSE 2
			END,
			created_at DESC
		LIMIT 1
	`, orderColumns)

	o, err := scanOrder(r.db.QueryRow(query, orgID, code, code, code, code, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order by scan code: %w", err)
	}

	if err := r.loadItems(o); err != nil {
		return nil, err
	}
	return o, nil
}
