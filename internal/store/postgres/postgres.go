package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"uniformes/backend/internal/domain"
	"uniformes/backend/internal/store"
	"uniformes/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const serializableRetries = 3

// withRetry reruns fn when the serializable transaction aborts with a
// serialization or deadlock failure. Retries are bounded; exhaustion surfaces
// as store.ErrConcurrencyConflict.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < serializableRetries; attempt++ {
		err = fn()
		if err == nil || !isSerializationFailure(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 25 * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: %v", store.ErrConcurrencyConflict, err)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, size, color, price, cost, stock_qty, min_stock, location_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
	`, product.ID, product.Name, product.Category, product.Size, product.Color,
		product.Price, product.Cost, product.StockQty, product.MinStock, product.LocationID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s size %s color %s at location %s", store.ErrDuplicateProduct, product.Name, product.Size, product.Color, product.LocationID)
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, size, color, price, cost, stock_qty, min_stock, location_id
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.Size, &p.Color, &p.Price, &p.Cost, &p.StockQty, &p.MinStock, &p.LocationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, locationID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, size, color, price, cost, stock_qty, min_stock, location_id
		FROM products
		WHERE ($1 = '' OR location_id = $1)
		ORDER BY category, name, size
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Size, &p.Color, &p.Price, &p.Cost, &p.StockQty, &p.MinStock, &p.LocationID); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET category = $2, color = $3, price = $4, cost = $5, min_stock = $6, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Category, product.Color, product.Price, product.Cost, product.MinStock)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProduct(ctx, product.ID)
}

func (s *Store) SetStock(ctx context.Context, productID string, qty int) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock_qty = $2, updated_at = now()
		WHERE id = $1
	`, productID, qty)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProduct(ctx, productID)
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New("cst")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, location_id, created_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, customer.ID, customer.Name, customer.Phone, customer.Email, customer.LocationID)
	if err != nil {
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, location_id
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.LocationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context, locationID string) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, email, location_id
		FROM customers
		WHERE ($1 = '' OR location_id = $1)
		ORDER BY name
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.LocationID); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CreateLocation(ctx context.Context, location domain.Location) (*domain.Location, error) {
	if location.ID == "" {
		location.ID = xid.New("loc")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, name, address, created_at)
		VALUES ($1,$2,$3,now())
	`, location.ID, location.Name, location.Address)
	if err != nil {
		return nil, err
	}
	created := location
	return &created, nil
}

func (s *Store) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	var l domain.Location
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, address
		FROM locations
		WHERE id = $1
	`, id).Scan(&l.ID, &l.Name, &l.Address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (s *Store) ListLocations(ctx context.Context) ([]domain.Location, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address
		FROM locations
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := make([]domain.Location, 0, 16)
	for rows.Next() {
		var l domain.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Address); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return locations, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	var created *domain.Order
	err := s.withRetry(ctx, func() error {
		var err error
		created, err = s.createOrderTx(ctx, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) createOrderTx(ctx context.Context, order domain.Order) (*domain.Order, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	productIDs := uniqueProductIDs(order.Items)
	if len(productIDs) == 0 {
		return nil, store.ErrValidation
	}

	// The product row carries the stock counter, so one locked read covers
	// both the availability check and the lines to decrement.
	stockRows, err := pgTx.QueryContext(ctx, `
		SELECT id, name, stock_qty
		FROM products
		WHERE location_id = $1 AND id = ANY($2)
		FOR UPDATE
	`, order.LocationID, productIDs)
	if err != nil {
		return nil, err
	}
	type lockedProduct struct {
		name     string
		stockQty int
	}
	locked := make(map[string]lockedProduct, len(productIDs))
	for stockRows.Next() {
		var id, name string
		var qty int
		if err := stockRows.Scan(&id, &name, &qty); err != nil {
			_ = stockRows.Close()
			return nil, err
		}
		locked[id] = lockedProduct{name: name, stockQty: qty}
	}
	if err := stockRows.Err(); err != nil {
		_ = stockRows.Close()
		return nil, err
	}
	_ = stockRows.Close()

	// All lines must clear before any row is decremented. Quantities are
	// summed per product so repeated lines cannot pass the check individually.
	needed := make(map[string]int, len(productIDs))
	for _, item := range order.Items {
		needed[item.ProductID] += item.Qty
	}
	for _, item := range order.Items {
		p, exists := locked[item.ProductID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s at location %s", store.ErrNotFound, item.ProductID, order.LocationID)
		}
		if p.stockQty < needed[item.ProductID] {
			return nil, fmt.Errorf("%w: %s has %d, need %d", store.ErrInsufficientStock, p.name, p.stockQty, needed[item.ProductID])
		}
	}

	for _, item := range order.Items {
		_, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock_qty = stock_qty - $1, updated_at = now()
			WHERE id = $2
		`, item.Qty, item.ProductID)
		if err != nil {
			return nil, err
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_id, location_id, status, created_at, delivery_date,
			discount_pct, total, cost_total, profit_total, margin_pct, stock_reversed
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, order.ID, order.CustomerID, order.LocationID, order.Status, order.CreatedAt,
		nullTime(order.DeliveryDate), order.DiscountPct, order.Total, order.CostTotal,
		order.ProfitTotal, order.MarginPct, order.StockReversed)
	if err != nil {
		return nil, err
	}

	for _, item := range order.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, qty, unit_price_snapshot, unit_cost_snapshot,
				subtotal, line_cost, line_profit, line_margin
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, item.ID, order.ID, item.ProductID, item.Qty, item.UnitPriceSnapshot,
			item.UnitCostSnapshot, item.Subtotal, item.LineCost, item.LineProfit, item.LineMargin)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	created := order
	return &created, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, location_id, status, created_at, delivery_date,
			discount_pct, total, cost_total, profit_total, margin_pct, stock_reversed
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, err
	}

	items, err := s.listOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (s *Store) GetOrderDetail(ctx context.Context, id string) (*domain.OrderDetail, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := domain.OrderDetail{Order: *order}
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(c.name, ''), COALESCE(l.name, '')
		FROM orders o
		LEFT JOIN customers c ON c.id = o.customer_id
		LEFT JOIN locations l ON l.id = o.location_id
		WHERE o.id = $1
	`, id).Scan(&detail.CustomerName, &detail.LocationName)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return &detail, nil
}

func (s *Store) ListOrders(ctx context.Context, filter domain.OrderFilter, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, location_id, status, created_at, delivery_date,
			discount_pct, total, cost_total, profit_total, margin_pct, stock_reversed
		FROM orders
		WHERE ($1 = '' OR location_id = $1)
		  AND ($2 = '' OR customer_id = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, filter.LocationID, filter.CustomerID, string(filter.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 64)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, next domain.Status) (*domain.Order, error) {
	var updated *domain.Order
	err := s.withRetry(ctx, func() error {
		var err error
		updated, err = s.updateOrderStatusTx(ctx, id, next)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) updateOrderStatusTx(ctx context.Context, id string, next domain.Status) (*domain.Order, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var current domain.Status
	err = pgTx.QueryRowContext(ctx, `
		SELECT status FROM orders WHERE id = $1 FOR UPDATE
	`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if !current.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, current, next)
	}

	if next == domain.StatusDelivered {
		// Delivery stamps the actual date, replacing the requested one.
		_, err = pgTx.ExecContext(ctx, `
			UPDATE orders SET status = $2, delivery_date = now(), updated_at = now() WHERE id = $1
		`, id, next)
	} else {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
		`, id, next)
	}
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

func (s *Store) CancelOrder(ctx context.Context, id string, at time.Time) (*domain.Order, error) {
	var cancelled *domain.Order
	err := s.withRetry(ctx, func() error {
		var err error
		cancelled, err = s.cancelOrderTx(ctx, id, at)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *Store) cancelOrderTx(ctx context.Context, id string, at time.Time) (*domain.Order, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var status domain.Status
	var reversed bool
	err = pgTx.QueryRowContext(ctx, `
		SELECT status, stock_reversed FROM orders WHERE id = $1 FOR UPDATE
	`, id).Scan(&status, &reversed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	// A repeated cancel is a no-op; stock was already restored once.
	if status == domain.StatusCancelled {
		if err := pgTx.Commit(); err != nil {
			return nil, err
		}
		return s.GetOrder(ctx, id)
	}
	if status.Terminal() {
		return nil, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, status, domain.StatusCancelled)
	}

	if !reversed {
		if err := restoreOrderStock(ctx, pgTx, id); err != nil {
			return nil, err
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE orders SET status = $2, stock_reversed = true, updated_at = $3 WHERE id = $1
	`, id, domain.StatusCancelled, at)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	return s.withRetry(ctx, func() error {
		return s.deleteOrderTx(ctx, id)
	})
}

func (s *Store) deleteOrderTx(ctx context.Context, id string) error {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	var reversed bool
	err = pgTx.QueryRowContext(ctx, `
		SELECT stock_reversed FROM orders WHERE id = $1 FOR UPDATE
	`, id).Scan(&reversed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	if !reversed {
		if err := restoreOrderStock(ctx, pgTx, id); err != nil {
			return err
		}
	}

	if _, err := pgTx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return err
	}
	if _, err := pgTx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return err
	}

	return pgTx.Commit()
}

// restoreOrderStock puts every line's qty back on its product row. Callers
// hold the order row lock and must flip stock_reversed (or delete the order)
// in the same transaction.
func restoreOrderStock(ctx context.Context, pgTx *sql.Tx, orderID string) error {
	rows, err := pgTx.QueryContext(ctx, `
		SELECT product_id, qty
		FROM order_items
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return err
	}
	type line struct {
		productID string
		qty       int
	}
	lines := make([]line, 0, 8)
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.qty); err != nil {
			_ = rows.Close()
			return err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, l := range lines {
		_, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock_qty = stock_qty + $1, updated_at = now()
			WHERE id = $2
		`, l.qty, l.productID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListLowStock(ctx context.Context, locationID string) ([]domain.LowStockAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.size, p.location_id, COALESCE(l.name, ''), p.stock_qty, p.min_stock
		FROM products p
		LEFT JOIN locations l ON l.id = p.location_id
		WHERE p.stock_qty <= p.min_stock
		  AND ($1 = '' OR p.location_id = $1)
		ORDER BY p.stock_qty - p.min_stock ASC, p.name
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]domain.LowStockAlert, 0, 32)
	for rows.Next() {
		var a domain.LowStockAlert
		if err := rows.Scan(&a.ProductID, &a.ProductName, &a.Size, &a.LocationID, &a.LocationName, &a.StockQty, &a.MinStock); err != nil {
			return nil, err
		}
		if a.MinStock > a.StockQty {
			a.Deficit = a.MinStock - a.StockQty
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (s *Store) GetRecentSales(ctx context.Context, locationID string, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.product_id, SUM(i.qty)
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE o.status <> $1
		  AND o.created_at >= $2
		  AND ($3 = '' OR o.location_id = $3)
		GROUP BY i.product_id
	`, domain.StatusCancelled, since, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sold := make(map[string]int, 64)
	for rows.Next() {
		var productID string
		var qty int
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		sold[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sold, nil
}

func (s *Store) GetSalesSummary(ctx context.Context, locationID string, from time.Time, to time.Time) (domain.SalesSummary, error) {
	summary := domain.SalesSummary{LocationID: locationID}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(total), 0),
			COALESCE(SUM(cost_total), 0),
			COALESCE(SUM(profit_total), 0),
			COALESCE(AVG(margin_pct), 0)
		FROM orders
		WHERE status <> $1
		  AND created_at >= $2 AND created_at < $3
		  AND ($4 = '' OR location_id = $4)
	`, domain.StatusCancelled, from, to, locationID).Scan(
		&summary.OrderCount, &summary.Revenue, &summary.Cost, &summary.Profit, &summary.AvgMargin)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	return summary, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, location_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.LocationID, entry.ActorUsername, entry.ActorRole, entry.Action,
		entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (username) DO NOTHING
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var delivery sql.NullTime
	err := row.Scan(&o.ID, &o.CustomerID, &o.LocationID, &o.Status, &o.CreatedAt, &delivery,
		&o.DiscountPct, &o.Total, &o.CostTotal, &o.ProfitTotal, &o.MarginPct, &o.StockReversed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if delivery.Valid {
		d := delivery.Time
		o.DeliveryDate = &d
	}
	return &o, nil
}

func (s *Store) listOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.order_id, i.product_id, COALESCE(p.name, ''), i.qty,
			i.unit_price_snapshot, i.unit_cost_snapshot,
			i.subtotal, i.line_cost, i.line_profit, i.line_margin
		FROM order_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.order_id = $1
		ORDER BY i.id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0, 8)
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Qty,
			&it.UnitPriceSnapshot, &it.UnitCostSnapshot,
			&it.Subtotal, &it.LineCost, &it.LineProfit, &it.LineMargin); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func uniqueProductIDs(items []domain.OrderItem) []string {
	set := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			continue
		}
		if _, seen := set[item.ProductID]; seen {
			continue
		}
		set[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
