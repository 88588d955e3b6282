package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/nqvinh/inventory-core/internal/core/domain"
	"github.com/nqvinh/inventory-core/internal/port"
)

const mysqlDupEntry = 1062

// MySQLAdapter implements the ledger store, the adjustment log and the
// catalog over one database. The stock write and the applied-event
// append share a transaction, so a crash can never leave an applied
// quantity without its log entry.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetRecord(ctx context.Context, productID, warehouseID string) (*domain.StockRecord, error) {
	var rec domain.StockRecord
	err := m.db.QueryRowContext(ctx, `
		SELECT product_id, warehouse_id, quantity, version, last_adjustment_id, updated_at
		FROM stock_records WHERE product_id = ? AND warehouse_id = ?`,
		productID, warehouseID,
	).Scan(&rec.ProductID, &rec.WarehouseID, &rec.Quantity, &rec.Version, &rec.LastAdjustmentID, &rec.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query stock record: %w", err)
	}

	return &rec, nil
}

func (m *MySQLAdapter) CompareAndSwap(ctx context.Context, rec domain.StockRecord, expectedVersion int64, newQuantity int, event domain.AdjustmentEvent) (int64, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if expectedVersion == 0 {
		// First write to this pair: the record is created lazily here.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stock_records (product_id, warehouse_id, quantity, version, last_adjustment_id, updated_at)
			VALUES (?, ?, ?, 1, ?, NOW())`,
			rec.ProductID, rec.WarehouseID, newQuantity, event.ID,
		)
		if isDupEntry(err) {
			return 0, port.ErrVersionConflict
		}
		if err != nil {
			return 0, fmt.Errorf("insert stock record: %w", err)
		}
	} else {
		result, err := tx.ExecContext(ctx, `
			UPDATE stock_records
			SET quantity = ?, version = version + 1, last_adjustment_id = ?, updated_at = NOW()
			WHERE product_id = ? AND warehouse_id = ? AND version = ?`,
			newQuantity, event.ID, rec.ProductID, rec.WarehouseID, expectedVersion,
		)
		if err != nil {
			return 0, fmt.Errorf("update stock record: %w", err)
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			return 0, port.ErrVersionConflict
		}
	}

	event.ResultingVersion = expectedVersion + 1
	if err := insertEvent(ctx, tx, event); err != nil {
		if isDupEntry(err) {
			return 0, port.ErrDuplicateEvent
		}
		return 0, fmt.Errorf("append adjustment event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return expectedVersion + 1, nil
}

func (m *MySQLAdapter) Append(ctx context.Context, event domain.AdjustmentEvent) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertEvent(ctx, tx, event); err != nil {
		if isDupEntry(err) {
			return port.ErrDuplicateEvent
		}
		return fmt.Errorf("append adjustment event: %w", err)
	}

	return tx.Commit()
}

func (m *MySQLAdapter) FindByIdempotencyKey(ctx context.Context, key string) (*domain.AdjustmentEvent, error) {
	row := m.db.QueryRowContext(ctx, eventSelect+` WHERE applied_key = ?`, key)

	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query adjustment event: %w", err)
	}

	return event, nil
}

func (m *MySQLAdapter) History(ctx context.Context, productID, warehouseID string, since time.Time) ([]domain.AdjustmentEvent, error) {
	rows, err := m.db.QueryContext(ctx, eventSelect+`
		WHERE product_id = ? AND warehouse_id = ? AND applied_at >= ?
		ORDER BY applied_at, resulting_version`,
		productID, warehouseID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("query adjustment history: %w", err)
	}
	defer rows.Close()

	var events []domain.AdjustmentEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan adjustment event: %w", err)
		}
		events = append(events, *event)
	}

	return events, rows.Err()
}

func (m *MySQLAdapter) Product(ctx context.Context, id string) (*domain.Product, error) {
	var (
		p       domain.Product
		barcode sql.NullString
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, barcode, reorder_threshold FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &barcode, &p.ReorderThreshold)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	p.Barcode = barcode.String
	return &p, nil
}

func (m *MySQLAdapter) Warehouse(ctx context.Context, id string) (*domain.Warehouse, error) {
	var w domain.Warehouse
	err := m.db.QueryRowContext(ctx, `
		SELECT id, capacity FROM warehouses WHERE id = ?`, id,
	).Scan(&w.ID, &w.Capacity)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query warehouse: %w", err)
	}

	return &w, nil
}

const eventSelect = `
	SELECT id, idempotency_key, product_id, warehouse_id, delta, reason, requested_by,
	       requested_at, resulting_quantity, resulting_version, outcome, reject_reason, applied_at
	FROM adjustment_events`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.AdjustmentEvent, error) {
	var (
		event        domain.AdjustmentEvent
		rejectReason sql.NullString
	)
	err := row.Scan(
		&event.ID, &event.IdempotencyKey, &event.ProductID, &event.WarehouseID,
		&event.Delta, &event.Reason, &event.RequestedBy, &event.RequestedAt,
		&event.ResultingQuantity, &event.ResultingVersion, &event.Outcome,
		&rejectReason, &event.AppliedAt,
	)
	if err != nil {
		return nil, err
	}

	event.RejectReason = domain.RejectReason(rejectReason.String)
	return &event, nil
}

// insertEvent stores an event. applied_key is NULL for rejected
// outcomes so the unique index only guards applied events.
func insertEvent(ctx context.Context, tx *sql.Tx, event domain.AdjustmentEvent) error {
	appliedKey := sql.NullString{}
	if event.Outcome == domain.OutcomeApplied {
		appliedKey = sql.NullString{String: event.IdempotencyKey, Valid: true}
	}
	rejectReason := sql.NullString{}
	if event.RejectReason != "" {
		rejectReason = sql.NullString{String: string(event.RejectReason), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO adjustment_events
			(id, idempotency_key, applied_key, product_id, warehouse_id, delta, reason,
			 requested_by, requested_at, resulting_quantity, resulting_version, outcome,
			 reject_reason, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.IdempotencyKey, appliedKey, event.ProductID, event.WarehouseID,
		event.Delta, event.Reason, event.RequestedBy, event.RequestedAt,
		event.ResultingQuantity, event.ResultingVersion, event.Outcome,
		rejectReason, event.AppliedAt,
	)
	return err
}

func isDupEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDupEntry
}
