package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"uniformes/backend/internal/domain"
	"uniformes/backend/internal/store"
	"uniformes/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	customers       map[string]domain.Customer
	locations       map[string]domain.Location
	orders          map[string]domain.Order
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; unset
// variables fall back to hardcoded dev defaults with a warning. Production
// runs against PostgreSQL when DATABASE_URL is set and never reaches this.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		customers:       make(map[string]domain.Customer),
		locations:       make(map[string]domain.Location),
		orders:          make(map[string]domain.Order),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func NewSeeded() *Store {
	s := New()

	locations := []domain.Location{
		{ID: "loc-colegio-norte", Name: "Colegio Norte", Address: "Av. Brasil 120"},
		{ID: "loc-colegio-sul", Name: "Colegio Sul", Address: "Rua das Flores 48"},
	}
	products := []domain.Product{
		{ID: "prd-polo-m-norte", Name: "Camisa Polo", Category: "shirts", Size: "M", Color: "white", Price: 45, Cost: 22, StockQty: 80, MinStock: 10, LocationID: "loc-colegio-norte"},
		{ID: "prd-polo-g-norte", Name: "Camisa Polo", Category: "shirts", Size: "G", Color: "white", Price: 48, Cost: 24, StockQty: 60, MinStock: 10, LocationID: "loc-colegio-norte"},
		{ID: "prd-calca-m-norte", Name: "Calca Escolar", Category: "pants", Size: "M", Color: "navy", Price: 70, Cost: 38, StockQty: 50, MinStock: 8, LocationID: "loc-colegio-norte"},
		{ID: "prd-agasalho-m-norte", Name: "Agasalho", Category: "jackets", Size: "M", Color: "navy", Price: 110, Cost: 60, StockQty: 25, MinStock: 5, LocationID: "loc-colegio-norte"},
		{ID: "prd-polo-m-sul", Name: "Camisa Polo", Category: "shirts", Size: "M", Color: "blue", Price: 45, Cost: 22, StockQty: 40, MinStock: 10, LocationID: "loc-colegio-sul"},
		{ID: "prd-saia-p-sul", Name: "Saia Escolar", Category: "skirts", Size: "P", Color: "navy", Price: 55, Cost: 28, StockQty: 30, MinStock: 6, LocationID: "loc-colegio-sul"},
	}
	customers := []domain.Customer{
		{ID: "cst-maria", Name: "Maria Souza", Phone: "+55 11 98888-0001", Email: "maria@example.com", LocationID: "loc-colegio-norte"},
		{ID: "cst-joao", Name: "Joao Lima", Phone: "+55 11 98888-0002", Email: "joao@example.com", LocationID: "loc-colegio-sul"},
	}

	for _, l := range locations {
		s.locations[l.ID] = l
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	for _, c := range customers {
		s.customers[c.ID] = c
	}
	return s
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if existing.LocationID == product.LocationID && existing.Name == product.Name &&
			existing.Size == product.Size && existing.Color == product.Color {
			return nil, fmt.Errorf("%w: %s size %s color %s at location %s",
				store.ErrDuplicateProduct, product.Name, product.Size, product.Color, product.LocationID)
		}
	}

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) ListProducts(_ context.Context, locationID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if locationID != "" && p.LocationID != locationID {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category != b.Category {
			return cmpString(a.Category, b.Category)
		}
		if a.Name != b.Name {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Size, b.Size)
	})
	return products, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	existing.Category = product.Category
	existing.Color = product.Color
	existing.Price = product.Price
	existing.Cost = product.Cost
	existing.MinStock = product.MinStock
	s.products[product.ID] = existing
	updated := existing
	return &updated, nil
}

func (s *Store) SetStock(_ context.Context, productID string, qty int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.StockQty = qty
	s.products[productID] = product
	updated := product
	return &updated, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cst")
	}
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) ListCustomers(_ context.Context, locationID string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if locationID != "" && c.LocationID != locationID {
			continue
		}
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) CreateLocation(_ context.Context, location domain.Location) (*domain.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if location.ID == "" {
		location.ID = xid.New("loc")
	}
	s.locations[location.ID] = location
	created := location
	return &created, nil
}

func (s *Store) GetLocation(_ context.Context, id string) (*domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	location, exists := s.locations[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyLocation := location
	return &copyLocation, nil
}

func (s *Store) ListLocations(_ context.Context) ([]domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locations := make([]domain.Location, 0, len(s.locations))
	for _, l := range s.locations {
		locations = append(locations, l)
	}
	slices.SortFunc(locations, func(a, b domain.Location) int {
		return cmpString(a.Name, b.Name)
	})
	return locations, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check every line before touching any stock counter. Quantities are
	// summed per product so repeated lines cannot pass the check individually.
	needed := make(map[string]int, len(order.Items))
	for _, item := range order.Items {
		needed[item.ProductID] += item.Qty
	}
	for _, item := range order.Items {
		product, exists := s.products[item.ProductID]
		if !exists || product.LocationID != order.LocationID {
			return nil, fmt.Errorf("%w: product %s at location %s", store.ErrNotFound, item.ProductID, order.LocationID)
		}
		if product.StockQty < needed[item.ProductID] {
			return nil, fmt.Errorf("%w: %s has %d, need %d", store.ErrInsufficientStock, product.Name, product.StockQty, needed[item.ProductID])
		}
	}

	for _, item := range order.Items {
		product := s.products[item.ProductID]
		product.StockQty -= item.Qty
		s.products[item.ProductID] = product
	}

	s.orders[order.ID] = cloneOrder(order)
	created := cloneOrder(order)
	return &created, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.orders[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyOrder := cloneOrder(order)
	s.attachProductNames(&copyOrder)
	return &copyOrder, nil
}

func (s *Store) GetOrderDetail(ctx context.Context, id string) (*domain.OrderDetail, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	detail := domain.OrderDetail{Order: *order}
	if customer, ok := s.customers[order.CustomerID]; ok {
		detail.CustomerName = customer.Name
	}
	if location, ok := s.locations[order.LocationID]; ok {
		detail.LocationName = location.Name
	}
	return &detail, nil
}

func (s *Store) ListOrders(_ context.Context, filter domain.OrderFilter, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}

	orders := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if filter.LocationID != "" && o.LocationID != filter.LocationID {
			continue
		}
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		orders = append(orders, cloneOrder(o))
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, next domain.Status) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.orders[id]
	if !exists {
		return nil, store.ErrNotFound
	}

	if !order.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, order.Status, next)
	}

	order.Status = next
	if next == domain.StatusDelivered {
		// Delivery stamps the actual date, replacing the requested one.
		deliveredAt := time.Now().UTC()
		order.DeliveryDate = &deliveredAt
	}
	s.orders[id] = order
	updated := cloneOrder(order)
	return &updated, nil
}

func (s *Store) CancelOrder(_ context.Context, id string, _ time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.orders[id]
	if !exists {
		return nil, store.ErrNotFound
	}

	// A repeated cancel is a no-op; stock was already restored once.
	if order.Status == domain.StatusCancelled {
		cancelled := cloneOrder(order)
		return &cancelled, nil
	}
	if order.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, order.Status, domain.StatusCancelled)
	}

	if !order.StockReversed {
		s.restoreOrderStockLocked(order)
	}
	order.Status = domain.StatusCancelled
	order.StockReversed = true
	s.orders[id] = order
	cancelled := cloneOrder(order)
	return &cancelled, nil
}

func (s *Store) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.orders[id]
	if !exists {
		return store.ErrNotFound
	}

	if !order.StockReversed {
		s.restoreOrderStockLocked(order)
	}
	delete(s.orders, id)
	return nil
}

func (s *Store) restoreOrderStockLocked(order domain.Order) {
	for _, item := range order.Items {
		product, exists := s.products[item.ProductID]
		if !exists {
			continue
		}
		product.StockQty += item.Qty
		s.products[item.ProductID] = product
	}
}

func (s *Store) ListLowStock(_ context.Context, locationID string) ([]domain.LowStockAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := make([]domain.LowStockAlert, 0, 16)
	for _, p := range s.products {
		if locationID != "" && p.LocationID != locationID {
			continue
		}
		if p.StockQty > p.MinStock {
			continue
		}
		alert := domain.LowStockAlert{
			ProductID:   p.ID,
			ProductName: p.Name,
			Size:        p.Size,
			LocationID:  p.LocationID,
			StockQty:    p.StockQty,
			MinStock:    p.MinStock,
		}
		if location, ok := s.locations[p.LocationID]; ok {
			alert.LocationName = location.Name
		}
		if p.MinStock > p.StockQty {
			alert.Deficit = p.MinStock - p.StockQty
		}
		alerts = append(alerts, alert)
	}
	slices.SortFunc(alerts, func(a, b domain.LowStockAlert) int {
		da := a.StockQty - a.MinStock
		db := b.StockQty - b.MinStock
		if da != db {
			return da - db
		}
		return cmpString(a.ProductName, b.ProductName)
	})
	return alerts, nil
}

func (s *Store) GetRecentSales(_ context.Context, locationID string, since time.Time) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sold := make(map[string]int, 32)
	for _, o := range s.orders {
		if o.Status == domain.StatusCancelled {
			continue
		}
		if o.CreatedAt.Before(since) {
			continue
		}
		if locationID != "" && o.LocationID != locationID {
			continue
		}
		for _, item := range o.Items {
			sold[item.ProductID] += item.Qty
		}
	}
	return sold, nil
}

func (s *Store) GetSalesSummary(_ context.Context, locationID string, from time.Time, to time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.SalesSummary{LocationID: locationID}
	marginSum := 0.0
	for _, o := range s.orders {
		if o.Status == domain.StatusCancelled {
			continue
		}
		if o.CreatedAt.Before(from) || !o.CreatedAt.Before(to) {
			continue
		}
		if locationID != "" && o.LocationID != locationID {
			continue
		}
		summary.OrderCount++
		summary.Revenue += o.Total
		summary.Cost += o.CostTotal
		summary.Profit += o.ProfitTotal
		marginSum += o.MarginPct
	}
	if summary.OrderCount > 0 {
		summary.AvgMargin = marginSum / float64(summary.OrderCount)
	}
	return summary, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return nil
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// attachProductNames fills the display name on each line from the catalog.
// Caller holds at least the read lock.
func (s *Store) attachProductNames(order *domain.Order) {
	for i := range order.Items {
		if product, ok := s.products[order.Items[i].ProductID]; ok {
			order.Items[i].ProductName = product.Name
		}
	}
}

func cloneOrder(order domain.Order) domain.Order {
	clone := order
	if order.DeliveryDate != nil {
		d := *order.DeliveryDate
		clone.DeliveryDate = &d
	}
	clone.Items = make([]domain.OrderItem, len(order.Items))
	copy(clone.Items, order.Items)
	return clone
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
