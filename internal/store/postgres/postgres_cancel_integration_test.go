package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"uniformes/backend/internal/domain"
)

func TestCancelOrderRestoresStock(t *testing.T) {
	databaseURL := os.Getenv("UNIFORMES_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set UNIFORMES_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	locationID := fmt.Sprintf("loc-cancel-it-%d", stamp)
	customerID := fmt.Sprintf("cst-cancel-it-%d", stamp)
	productID := fmt.Sprintf("prd-cancel-it-%d", stamp)
	orderID := fmt.Sprintf("ord-cancel-it-%d", stamp)
	itemID := fmt.Sprintf("lin-cancel-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, customerID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, locationID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, name, address, created_at)
		VALUES ($1, 'Colegio Integration', 'Rua Teste 1', now())
	`, locationID); err != nil {
		t.Fatalf("insert location: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, location_id, created_at)
		VALUES ($1, 'Cliente Integration', '', '', $2, now())
	`, customerID, locationID); err != nil {
		t.Fatalf("insert customer: %v", err)
	}

	// Stock is already decremented to 8, as it would be after order creation.
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, size, color, price, cost, stock_qty, min_stock, location_id, created_at, updated_at)
		VALUES ($1, 'Camisa Integration', 'shirts', 'M', 'white', 45, 22, 8, 2, $2, now(), now())
	`, productID, locationID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_id, location_id, status, created_at, delivery_date,
			discount_pct, total, cost_total, profit_total, margin_pct, stock_reversed
		)
		VALUES ($1, $2, $3, 'pending', now(), null, 0, 90, 44, 46, 51.11, false)
	`, orderID, customerID, locationID); err != nil {
		t.Fatalf("insert order: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO order_items (
			id, order_id, product_id, qty, unit_price_snapshot, unit_cost_snapshot,
			subtotal, line_cost, line_profit, line_margin
		)
		VALUES ($1, $2, $3, 2, 45, 22, 90, 44, 46, 51.11)
	`, itemID, orderID, productID); err != nil {
		t.Fatalf("insert order item: %v", err)
	}

	at := time.Now().UTC()
	cancelled, err := s.CancelOrder(ctx, orderID, at)
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}
	if !cancelled.StockReversed {
		t.Fatalf("expected stock_reversed to be set")
	}

	var qty int
	if err := s.db.QueryRowContext(ctx, `
		SELECT stock_qty FROM products WHERE id = $1
	`, productID).Scan(&qty); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if qty != 10 {
		t.Fatalf("expected stock 10 after cancel restock, got %d", qty)
	}

	// A second cancel is a no-op and must not restore stock again.
	if _, err := s.CancelOrder(ctx, orderID, at.Add(time.Second)); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT stock_qty FROM products WHERE id = $1
	`, productID).Scan(&qty); err != nil {
		t.Fatalf("query stock after second cancel: %v", err)
	}
	if qty != 10 {
		t.Fatalf("expected stock to remain 10 after repeated cancel, got %d", qty)
	}
}
