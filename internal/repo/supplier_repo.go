package repo

import (
	"database/sql"
	"fmt"

	"github.com/stockflow/stockflow/internal/domain"
)

// SupplierRepository 定义供应商数据访问接口
type SupplierRepository interface {
	Create(supplier *domain.Supplier) error
	GetByID(orgID, id int64) (*domain.Supplier, error)
	List(orgID int64) ([]*domain.Supplier, error)
	Update(supplier *domain.Supplier) error
}

// supplierRepo 实现SupplierRepository接口
type supplierRepo struct {
	db *sql.DB
}

// NewSupplierRepository 创建供应商仓储实例
func NewSupplierRepository(db *sql.DB) SupplierRepository {
	return &supplierRepo{db: db}
}

// Create 创建供应商
func (r *supplierRepo) Create(supplier *domain.Supplier) error {
	query := `
		INSERT INTO suppliers (org_id, name, contact, email, phone, address)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.Exec(query,
		supplier.OrgID,
		supplier.Name,
		supplier.Contact,
		supplier.Email,
		supplier.Phone,
		supplier.Address,
	)
	if err != nil {
		return fmt.Errorf("failed to create supplier: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	supplier.ID = id
	return nil
}

// GetByID 根据ID获取供应商
func (r *supplierRepo) GetByID(orgID, id int64) (*domain.Supplier, error) {
	query := `
		SELECT id, org_id, name, contact, email, phone, address, created_at, updated_at
		FROM suppliers
		WHERE org_id = ? AND id = ?
	`
	s := &domain.Supplier{}
	err := r.db.QueryRow(query, orgID, id).Scan(
		&s.ID,
		&s.OrgID,
		&s.Name,
		&s.Contact,
		&s.Email,
		&s.Phone,
		&s.Address,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	return s, nil
}

// List 列出组织下全部供应商
func (r *supplierRepo) List(orgID int64) ([]*domain.Supplier, error) {
	query := `
		SELECT id, org_id, name, contact, email, phone, address, created_at, updated_at
		FROM suppliers
		WHERE org_id = ?
		ORDER BY name
	`
	rows, err := r.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []*domain.Supplier
	for rows.Next() {
		s := &domain.Supplier{}
		err := rows.Scan(
			&s.ID,
			&s.OrgID,
			&s.Name,
			&s.Contact,
			&s.Email,
			&s.Phone,
			&s.Address,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate suppliers: %w", err)
	}
	return suppliers, nil
}

// Update 更新供应商
func (r *supplierRepo) Update(supplier *domain.Supplier) error {
	query := `
		UPDATE suppliers
		SET name = ?, contact = ?, email = ?, phone = ?, address = ?
		WHERE org_id = ? AND id = ?
	`
	result, err := r.db.Exec(query,
		supplier.Name,
		supplier.Contact,
		supplier.Email,
		supplier.Phone,
		supplier.Address,
		supplier.OrgID,
		supplier.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update supplier: %w", err)
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
