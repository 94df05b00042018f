// Package repository holds the MySQL data access layer.
package repository // repository holds data access logic for domain entities

import (
	"context"      // context is used to manage deadlines and cancellation
	"database/sql" // sql provides DB primitives
	"encoding/json"
	"errors" // errors package allows sentinel error definitions
	"time"

	"github.com/iliyamo/billsplit-floor/internal/model"
)

// LayoutRecord is the mirrored floor plan of one tenant.
type LayoutRecord struct {
	TenantID   string        `json:"tenantId"`   // table_layouts.tenant_id
	Tables     []model.Table `json:"tables"`     // decoded table_layouts.payload
	TableCount int           `json:"tableCount"` // table_layouts.table_count
	UpdatedAt  time.Time     `json:"updatedAt"`  // table_layouts.updated_at
}

// ErrLayoutNotFound is returned when a tenant never mirrored a layout.
var ErrLayoutNotFound = errors.New("layout not found")

// LayoutRepo stores the latest layout pushed by each tenant.  Only one row
// per tenant is kept; every push replaces it.
type LayoutRepo struct {
	db *sql.DB // db is the underlying database connection
}

// NewLayoutRepo constructs a LayoutRepo with the given DB handle.
func NewLayoutRepo(db *sql.DB) *LayoutRepo {
	return &LayoutRepo{db: db}
}

// Save upserts the tenant's layout.  The payload is stored verbatim as a
// JSON column so the mirror can be served without re-encoding.
func (r *LayoutRepo) Save(ctx context.Context, tenantID string, tables []model.Table) error {
	payload, err := json.Marshal(tables)
	if err != nil {
		return err
	}
	const q = `INSERT INTO table_layouts (tenant_id, payload, table_count, updated_at)
	           VALUES (?, ?, ?, UTC_TIMESTAMP())
	           ON DUPLICATE KEY UPDATE payload = VALUES(payload), table_count = VALUES(table_count), updated_at = VALUES(updated_at)`
	_, err = r.db.ExecContext(ctx, q, tenantID, payload, len(tables))
	return err
}

// Get returns the tenant's mirrored layout or ErrLayoutNotFound.
func (r *LayoutRepo) Get(ctx context.Context, tenantID string) (*LayoutRecord, error) {
	const q = `SELECT tenant_id, payload, table_count, updated_at FROM table_layouts WHERE tenant_id = ?`
	var (
		rec     LayoutRecord
		payload []byte
	)
	err := r.db.QueryRowContext(ctx, q, tenantID).Scan(&rec.TenantID, &payload, &rec.TableCount, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLayoutNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(payload, &rec.Tables); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes the tenant's mirror.  Deleting a missing mirror returns
// ErrLayoutNotFound.
func (r *LayoutRepo) Delete(ctx context.Context, tenantID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM table_layouts WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLayoutNotFound
	}
	return nil
}
