package store

import (
	"context"
	"errors"
	"time"

	"uniformes/backend/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateProduct    = errors.New("duplicate product")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

type Repository interface {
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, locationID string) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	SetStock(ctx context.Context, productID string, qty int) (*domain.Product, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, locationID string) ([]domain.Customer, error)

	CreateLocation(ctx context.Context, location domain.Location) (*domain.Location, error)
	GetLocation(ctx context.Context, id string) (*domain.Location, error)
	ListLocations(ctx context.Context) ([]domain.Location, error)

	// CreateOrder persists the order and its lines and decrements stock for
	// every line in one atomic step. No line is decremented unless all can be.
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetOrderDetail(ctx context.Context, id string) (*domain.OrderDetail, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter, limit int) ([]domain.Order, error)
	// UpdateOrderStatus applies a forward transition. Cancellation must go
	// through CancelOrder so stock restitution stays in the same transaction.
	UpdateOrderStatus(ctx context.Context, id string, next domain.Status) (*domain.Order, error)
	CancelOrder(ctx context.Context, id string, at time.Time) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error

	ListLowStock(ctx context.Context, locationID string) ([]domain.LowStockAlert, error)
	GetRecentSales(ctx context.Context, locationID string, since time.Time) (map[string]int, error)
	GetSalesSummary(ctx context.Context, locationID string, from time.Time, to time.Time) (domain.SalesSummary, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
