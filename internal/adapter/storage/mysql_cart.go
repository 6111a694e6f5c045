package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ltran/shopfulfill/internal/core/domain"
)

// Carts persist as one row per user with the lines as a JSON document. The
// whole aggregate is written in one upsert so the totals can never be
// observed out of sync with the lines.
func (m *MySQLAdapter) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var (
		cart  domain.Cart
		lines []byte
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT user_id, lines, total_items, total_amount, updated_at
		FROM carts WHERE user_id = ?`, userID,
	).Scan(&cart.UserID, &lines, &cart.TotalItems, &cart.TotalAmount, &cart.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}

	if err := json.Unmarshal(lines, &cart.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal cart lines: %w", err)
	}
	return &cart, nil
}

func (m *MySQLAdapter) SaveCart(ctx context.Context, cart *domain.Cart) error {
	lines, err := json.Marshal(cart.Lines)
	if err != nil {
		return fmt.Errorf("marshal cart lines: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO carts (user_id, lines, total_items, total_amount, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			lines = VALUES(lines),
			total_items = VALUES(total_items),
			total_amount = VALUES(total_amount),
			updated_at = VALUES(updated_at)`,
		cart.UserID, lines, cart.TotalItems, cart.TotalAmount, cart.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// DeleteCart is a single DELETE, so clearing never goes through a
// read-modify-write of the lines document.
func (m *MySQLAdapter) DeleteCart(ctx context.Context, userID string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM carts WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
