package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ltran/shopfulfill/internal/core/domain"
	"github.com/ltran/shopfulfill/internal/port"
)

// MySQLAdapter is the system of record for carts, orders, and the product
// catalog. It satisfies port.CartRepository, port.CatalogRepository, and
// port.OrderRepository.
type MySQLAdapter struct {
	db *sql.DB
}

var (
	_ port.CartRepository    = (*MySQLAdapter)(nil)
	_ port.CatalogRepository = (*MySQLAdapter)(nil)
	_ port.OrderRepository   = (*MySQLAdapter)(nil)
)

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var (
		p         domain.Product
		salePrice decimal.NullDecimal
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, sku, image_url, price, sale_price, stock, active, created_at, updated_at
		FROM products WHERE id = ?`, productID,
	).Scan(&p.ID, &p.Name, &p.SKU, &p.ImageURL, &p.Price, &salePrice, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	if salePrice.Valid {
		p.SalePrice = &salePrice.Decimal
	}
	return &p, nil
}

// ReserveStock is a conditional decrement: the WHERE clause makes the check
// and the write one atomic statement, so stock can never go negative under
// concurrent reservations.
func (m *MySQLAdapter) ReserveStock(ctx context.Context, productID string, quantity int) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?, updated_at = NOW()
		WHERE id = ? AND stock >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: product %s, requested %d", domain.ErrInsufficientStock, productID, quantity)
	}

	return nil
}

func (m *MySQLAdapter) ReleaseStock(ctx context.Context, productID string, quantity int) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + ?, updated_at = NOW()
		WHERE id = ?`,
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	return nil
}
