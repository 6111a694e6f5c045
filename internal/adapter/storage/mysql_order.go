package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ltran/shopfulfill/internal/core/domain"
)

func (m *MySQLAdapter) Create(ctx context.Context, order *domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, user_id, status,
			subtotal, shipping_cost, tax, discount, total,
			payment_method, payment_status, payment_intent_ref, payment_amount,
			refund_amount, refund_reason,
			shipping_method, tracking_number, carrier,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.OrderNumber, order.UserID, order.Status,
		order.Pricing.Subtotal, order.Pricing.Shipping, order.Pricing.Tax,
		order.Pricing.Discount, order.Pricing.Total,
		order.Payment.Method, order.Payment.Status, order.Payment.IntentRef, order.Payment.Amount,
		order.Payment.RefundAmount, order.Payment.RefundReason,
		order.Shipping.Method, order.Shipping.TrackingNumber, order.Shipping.Carrier,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (
				order_id, product_id, variant_id,
				product_name, product_sku, product_image,
				quantity, unit_price, line_total
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			order.ID, line.ProductID, line.VariantID,
			line.ProductName, line.ProductSKU, line.ProductImage,
			line.Quantity, line.UnitPrice, line.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	for _, entry := range order.StatusHistory {
		if err := insertStatusEntry(ctx, tx, order.ID, entry); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpdateStatus persists the order's mutable fields together with its newest
// history entry in one transaction. The conditional WHERE on the previous
// status serializes concurrent transitions: the loser sees zero rows and
// gets ErrInvalidTransition.
func (m *MySQLAdapter) UpdateStatus(ctx context.Context, order *domain.Order, previous domain.OrderStatus) error {
	if len(order.StatusHistory) == 0 {
		return errors.New("order has no status history entry to persist")
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET
			status = ?,
			payment_status = ?, payment_intent_ref = ?, paid_at = ?, refunded_at = ?,
			refund_amount = ?, refund_reason = ?,
			tracking_number = ?, carrier = ?, estimated_delivery = ?, delivered_at = ?,
			updated_at = ?
		WHERE id = ? AND status = ?`,
		order.Status,
		order.Payment.Status, order.Payment.IntentRef, order.Payment.PaidAt, order.Payment.RefundedAt,
		order.Payment.RefundAmount, order.Payment.RefundReason,
		order.Shipping.TrackingNumber, order.Shipping.Carrier,
		order.Shipping.EstimatedDelivery, order.Shipping.DeliveredAt,
		order.UpdatedAt,
		order.ID, previous,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: order %s no longer in status %s", domain.ErrInvalidTransition, order.ID, previous)
	}

	entry := order.StatusHistory[len(order.StatusHistory)-1]
	if err := insertStatusEntry(ctx, tx, order.ID, entry); err != nil {
		return err
	}

	return tx.Commit()
}

func insertStatusEntry(ctx context.Context, tx *sql.Tx, orderID string, entry domain.StatusEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, status, note, actor, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		orderID, entry.Status, entry.Note, entry.Actor, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return m.getOrder(ctx, "id = ?", orderID)
}

func (m *MySQLAdapter) GetByIntentRef(ctx context.Context, intentRef string) (*domain.Order, error) {
	return m.getOrder(ctx, "payment_intent_ref = ?", intentRef)
}

func (m *MySQLAdapter) getOrder(ctx context.Context, where string, arg any) (*domain.Order, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, order_number, user_id, status,
			subtotal, shipping_cost, tax, discount, total,
			payment_method, payment_status, payment_intent_ref, payment_amount,
			paid_at, refunded_at, refund_amount, refund_reason,
			shipping_method, tracking_number, carrier, estimated_delivery, delivered_at,
			created_at, updated_at
		FROM orders WHERE `+where, arg)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := m.loadLines(ctx, order); err != nil {
		return nil, err
	}
	if err := m.loadHistory(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (m *MySQLAdapter) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_number, user_id, status,
			subtotal, shipping_cost, tax, discount, total,
			payment_method, payment_status, payment_intent_ref, payment_amount,
			paid_at, refunded_at, refund_amount, refund_reason,
			shipping_method, tracking_number, carrier, estimated_delivery, delivered_at,
			created_at, updated_at
		FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, order := range orders {
		if err := m.loadLines(ctx, order); err != nil {
			return nil, err
		}
		if err := m.loadHistory(ctx, order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                 domain.Order
		paidAt            sql.NullTime
		refundedAt        sql.NullTime
		estimatedDelivery sql.NullTime
		deliveredAt       sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status,
		&o.Pricing.Subtotal, &o.Pricing.Shipping, &o.Pricing.Tax,
		&o.Pricing.Discount, &o.Pricing.Total,
		&o.Payment.Method, &o.Payment.Status, &o.Payment.IntentRef, &o.Payment.Amount,
		&paidAt, &refundedAt, &o.Payment.RefundAmount, &o.Payment.RefundReason,
		&o.Shipping.Method, &o.Shipping.TrackingNumber, &o.Shipping.Carrier,
		&estimatedDelivery, &deliveredAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Shipping.Cost = o.Pricing.Shipping
	o.Payment.PaidAt = nullTimePtr(paidAt)
	o.Payment.RefundedAt = nullTimePtr(refundedAt)
	o.Shipping.EstimatedDelivery = nullTimePtr(estimatedDelivery)
	o.Shipping.DeliveredAt = nullTimePtr(deliveredAt)
	return &o, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func (m *MySQLAdapter) loadLines(ctx context.Context, order *domain.Order) error {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, variant_id, product_name, product_sku, product_image,
			quantity, unit_price, line_total
		FROM order_lines WHERE order_id = ?`, order.ID)
	if err != nil {
		return fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(
			&line.ProductID, &line.VariantID, &line.ProductName, &line.ProductSKU,
			&line.ProductImage, &line.Quantity, &line.UnitPrice, &line.LineTotal,
		); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		order.Lines = append(order.Lines, line)
	}
	return rows.Err()
}

func (m *MySQLAdapter) loadHistory(ctx context.Context, order *domain.Order) error {
	rows, err := m.db.QueryContext(ctx, `
		SELECT status, note, actor, created_at
		FROM order_status_history WHERE order_id = ? ORDER BY id`, order.ID)
	if err != nil {
		return fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry domain.StatusEntry
		if err := rows.Scan(&entry.Status, &entry.Note, &entry.Actor, &entry.Timestamp); err != nil {
			return fmt.Errorf("scan status entry: %w", err)
		}
		order.StatusHistory = append(order.StatusHistory, entry)
	}
	return rows.Err()
}
