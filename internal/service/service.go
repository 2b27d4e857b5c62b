package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"uniformes/backend/internal/cache"
	"uniformes/backend/internal/domain"
	"uniformes/backend/internal/events"
	"uniformes/backend/internal/finance"
	"uniformes/backend/internal/store"
	"uniformes/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const (
	restockCacheTTL    = 5 * time.Minute
	restockSalesWindow = 30 * 24 * time.Hour
)

type Service struct {
	repo         store.Repository
	restockCache cache.RestockCache
	publisher    events.Publisher
}

func New(repo store.Repository, restockCache cache.RestockCache, publisher events.Publisher) *Service {
	if restockCache == nil {
		restockCache = cache.NoopRestockCache{}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		repo:         repo,
		restockCache: restockCache,
		publisher:    publisher,
	}
}

func (s *Service) ListProducts(ctx context.Context, locationID string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, locationID)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.Size = strings.ToUpper(strings.TrimSpace(req.Size))
	req.Color = strings.TrimSpace(req.Color)
	req.LocationID = strings.TrimSpace(req.LocationID)

	if req.Name == "" || req.LocationID == "" {
		return domain.Product{}, fmt.Errorf("%w: name and location_id are required", store.ErrValidation)
	}
	if req.Price < 0 || req.Cost < 0 {
		return domain.Product{}, fmt.Errorf("%w: price and cost must not be negative", store.ErrValidation)
	}
	if req.StockQty < 0 || req.MinStock < 0 {
		return domain.Product{}, fmt.Errorf("%w: stock_qty and min_stock must not be negative", store.ErrValidation)
	}

	if _, err := s.repo.GetLocation(ctx, req.LocationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Product{}, fmt.Errorf("%w: location %s", store.ErrNotFound, req.LocationID)
		}
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:         xid.New("prd"),
		Name:       req.Name,
		Category:   req.Category,
		Size:       req.Size,
		Color:      req.Color,
		Price:      req.Price,
		Cost:       req.Cost,
		StockQty:   req.StockQty,
		MinStock:   req.MinStock,
		LocationID: req.LocationID,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, created.LocationID, "product_create", "product", created.ID,
		fmt.Sprintf("name=%s,size=%s,price=%.2f,stock=%d", created.Name, created.Size, created.Price, created.StockQty))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, fmt.Errorf("%w: product id required", store.ErrValidation)
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.Color != nil {
		updated.Color = strings.TrimSpace(*req.Color)
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return domain.Product{}, fmt.Errorf("%w: price must not be negative", store.ErrValidation)
		}
		updated.Price = *req.Price
	}
	if req.Cost != nil {
		if *req.Cost < 0 {
			return domain.Product{}, fmt.Errorf("%w: cost must not be negative", store.ErrValidation)
		}
		updated.Cost = *req.Cost
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, fmt.Errorf("%w: min_stock must not be negative", store.ErrValidation)
		}
		updated.MinStock = *req.MinStock
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, saved.LocationID, "product_update", "product", saved.ID,
		fmt.Sprintf("price=%.2f,cost=%.2f,min_stock=%d", saved.Price, saved.Cost, saved.MinStock))
	return *saved, nil
}

func (s *Service) SetStock(ctx context.Context, id string, req domain.StockSetRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	if req.StockQty < 0 {
		return domain.Product{}, fmt.Errorf("%w: stock_qty must not be negative", store.ErrValidation)
	}

	updated, err := s.repo.SetStock(ctx, id, req.StockQty)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, updated.LocationID, "stock_set", "product", updated.ID, fmt.Sprintf("stock=%d", updated.StockQty))
	return *updated, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.LocationID = strings.TrimSpace(req.LocationID)
	if req.Name == "" {
		return domain.Customer{}, fmt.Errorf("%w: name required", store.ErrValidation)
	}
	if req.LocationID != "" {
		if _, err := s.repo.GetLocation(ctx, req.LocationID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Customer{}, fmt.Errorf("%w: location %s", store.ErrNotFound, req.LocationID)
			}
			return domain.Customer{}, err
		}
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		ID:         xid.New("cst"),
		Name:       req.Name,
		Phone:      strings.TrimSpace(req.Phone),
		Email:      strings.TrimSpace(req.Email),
		LocationID: req.LocationID,
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, created.LocationID, "customer_create", "customer", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) ListCustomers(ctx context.Context, locationID string) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, locationID)
}

func (s *Service) CreateLocation(ctx context.Context, location domain.Location) (domain.Location, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Location{}, fmt.Errorf("admin role required")
	}

	location.Name = strings.TrimSpace(location.Name)
	if location.Name == "" {
		return domain.Location{}, fmt.Errorf("%w: name required", store.ErrValidation)
	}
	if location.ID == "" {
		location.ID = xid.New("loc")
	}

	created, err := s.repo.CreateLocation(ctx, location)
	if err != nil {
		return domain.Location{}, err
	}

	s.logAudit(ctx, created.ID, "location_create", "location", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) ListLocations(ctx context.Context) ([]domain.Location, error) {
	return s.repo.ListLocations(ctx)
}

func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.Order, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.LocationID = strings.TrimSpace(req.LocationID)

	if req.CustomerID == "" || req.LocationID == "" {
		return domain.Order{}, fmt.Errorf("%w: customer_id and location_id are required", store.ErrValidation)
	}
	if len(req.Items) == 0 {
		return domain.Order{}, fmt.Errorf("%w: at least one item required", store.ErrValidation)
	}
	if req.DiscountPct < 0 || req.DiscountPct > 100 {
		return domain.Order{}, fmt.Errorf("%w: discount_pct must be between 0 and 100", store.ErrValidation)
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" || item.Qty < 1 {
			return domain.Order{}, fmt.Errorf("%w: every item needs a product_id and qty >= 1", store.ErrValidation)
		}
	}

	// Repeated lines for the same product collapse into one, so the stock
	// check always sees the combined quantity.
	merged := make([]domain.OrderItemRequest, 0, len(req.Items))
	seen := make(map[string]int, len(req.Items))
	for _, item := range req.Items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		if at, ok := seen[item.ProductID]; ok {
			merged[at].Qty += item.Qty
			continue
		}
		seen[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	req.Items = merged

	if _, err := s.repo.GetCustomer(ctx, req.CustomerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Order{}, fmt.Errorf("%w: customer %s", store.ErrNotFound, req.CustomerID)
		}
		return domain.Order{}, err
	}
	if _, err := s.repo.GetLocation(ctx, req.LocationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Order{}, fmt.Errorf("%w: location %s", store.ErrNotFound, req.LocationID)
		}
		return domain.Order{}, err
	}

	orderID := xid.New("ord")
	lineInputs := make([]finance.LineInput, 0, len(req.Items))
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		product, err := s.repo.GetProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Order{}, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
			}
			return domain.Order{}, err
		}
		if product.LocationID != req.LocationID {
			return domain.Order{}, fmt.Errorf("%w: product %s does not belong to location %s", store.ErrValidation, item.ProductID, req.LocationID)
		}
		lineInputs = append(lineInputs, finance.LineInput{Qty: item.Qty, UnitPrice: product.Price, UnitCost: product.Cost})
		items = append(items, domain.OrderItem{
			ID:                xid.New("lin"),
			OrderID:           orderID,
			ProductID:         product.ID,
			Qty:               item.Qty,
			UnitPriceSnapshot: product.Price,
			UnitCostSnapshot:  product.Cost,
		})
	}

	// Financials are frozen now; later price or cost edits never touch
	// an existing order.
	result := finance.Order(lineInputs, req.DiscountPct)
	for i := range items {
		items[i].Subtotal = result.Lines[i].Subtotal
		items[i].LineCost = result.Lines[i].Cost
		items[i].LineProfit = result.Lines[i].Profit
		items[i].LineMargin = result.Lines[i].Margin
	}

	order := domain.Order{
		ID:           orderID,
		CustomerID:   req.CustomerID,
		LocationID:   req.LocationID,
		Status:       domain.StatusPending,
		CreatedAt:    time.Now().UTC(),
		DeliveryDate: req.DeliveryDate,
		DiscountPct:  req.DiscountPct,
		Total:        result.TotalWithDiscount,
		CostTotal:    result.Cost,
		ProfitTotal:  result.Profit,
		MarginPct:    result.Margin,
		Items:        items,
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, created.LocationID, "order_create", "order", created.ID,
		fmt.Sprintf("customer=%s,items=%d,total=%.2f", created.CustomerID, len(created.Items), created.Total))
	s.publish(ctx, events.Event{
		Topic:      events.TopicOrderCreated,
		OrderID:    created.ID,
		LocationID: created.LocationID,
		Status:     string(created.Status),
		Total:      created.Total,
	})
	s.publishLowStockHits(ctx, created.Items)

	return *created, nil
}

// publishLowStockHits emits stock.low for any line whose reservation pushed
// the product to or under its minimum. Best-effort, read after commit.
func (s *Service) publishLowStockHits(ctx context.Context, items []domain.OrderItem) {
	for _, item := range items {
		product, err := s.repo.GetProduct(ctx, item.ProductID)
		if err != nil {
			continue
		}
		if product.StockQty > product.MinStock {
			continue
		}
		s.publish(ctx, events.Event{
			Topic:      events.TopicStockLow,
			ProductID:  product.ID,
			LocationID: product.LocationID,
			StockQty:   product.StockQty,
			MinStock:   product.MinStock,
		})
	}
}

func (s *Service) GetOrderDetail(ctx context.Context, id string) (domain.OrderDetail, error) {
	detail, err := s.repo.GetOrderDetail(ctx, id)
	if err != nil {
		return domain.OrderDetail{}, err
	}
	return *detail, nil
}

func (s *Service) ListOrders(ctx context.Context, filter domain.OrderFilter, limit int) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx, filter, limit)
}

func (s *Service) UpdateOrderStatus(ctx context.Context, id string, req domain.StatusUpdateRequest) (domain.Order, error) {
	next, ok := domain.ParseStatus(strings.TrimSpace(req.Status))
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", store.ErrValidation, req.Status)
	}

	// Cancellation carries stock restitution with it, so it always takes
	// the cancel path regardless of how the caller phrased it.
	if next == domain.StatusCancelled {
		return s.CancelOrder(ctx, id)
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, id, next)
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, updated.LocationID, "order_status", "order", updated.ID, "status="+string(updated.Status))
	s.publish(ctx, events.Event{
		Topic:      events.TopicOrderStatus,
		OrderID:    updated.ID,
		LocationID: updated.LocationID,
		Status:     string(updated.Status),
	})
	return *updated, nil
}

func (s *Service) CancelOrder(ctx context.Context, id string) (domain.Order, error) {
	cancelled, err := s.repo.CancelOrder(ctx, id, time.Now().UTC())
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, cancelled.LocationID, "order_cancel", "order", cancelled.ID, "stock_reversed=true")
	s.publish(ctx, events.Event{
		Topic:      events.TopicOrderCancelled,
		OrderID:    cancelled.ID,
		LocationID: cancelled.LocationID,
		Status:     string(cancelled.Status),
	})
	return *cancelled, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, existing.LocationID, "order_delete", "order", id, "hard_delete=true")
	s.publish(ctx, events.Event{
		Topic:      events.TopicOrderDeleted,
		OrderID:    id,
		LocationID: existing.LocationID,
	})
	return nil
}

// LowStockAlerts always reads live stock. Thresholds move with stock edits
// and order flow, so stale alerts are worse than a slower scan.
func (s *Service) LowStockAlerts(ctx context.Context, locationID string) ([]domain.LowStockAlert, error) {
	return s.repo.ListLowStock(ctx, locationID)
}

func (s *Service) RestockSuggestions(ctx context.Context, locationID string) ([]domain.RestockSuggestion, error) {
	cacheKey := "restock:" + locationID
	if cached, found, err := s.restockCache.Get(ctx, cacheKey); err == nil && found {
		return cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: restock cache read failed key=%s: %v", cacheKey, err)
	}

	alerts, err := s.repo.ListLowStock(ctx, locationID)
	if err != nil {
		return nil, err
	}

	since := time.Now().UTC().Add(-restockSalesWindow)
	sold, err := s.repo.GetRecentSales(ctx, locationID, since)
	if err != nil {
		return nil, err
	}

	windowDays := restockSalesWindow.Hours() / 24
	suggestions := make([]domain.RestockSuggestion, 0, len(alerts))
	for _, alert := range alerts {
		suggested := alert.MinStock*2 - alert.StockQty
		if suggested < alert.Deficit {
			suggested = alert.Deficit
		}
		if suggested < 1 {
			continue
		}
		soldQty := sold[alert.ProductID]
		suggestions = append(suggestions, domain.RestockSuggestion{
			ProductID:    alert.ProductID,
			ProductName:  alert.ProductName,
			LocationID:   alert.LocationID,
			StockQty:     alert.StockQty,
			MinStock:     alert.MinStock,
			SoldRecently: soldQty,
			SuggestedQty: suggested,
			Velocity:     float64(soldQty) / windowDays,
		})
	}
	slices.SortFunc(suggestions, func(a, b domain.RestockSuggestion) int {
		switch {
		case a.Velocity > b.Velocity:
			return -1
		case a.Velocity < b.Velocity:
			return 1
		default:
			return strings.Compare(a.ProductName, b.ProductName)
		}
	})

	if err := s.restockCache.Set(ctx, cacheKey, suggestions, restockCacheTTL); err != nil {
		log.Printf("[service] WARN: restock cache write failed key=%s: %v", cacheKey, err)
	}
	return suggestions, nil
}

func (s *Service) SalesSummary(ctx context.Context, locationID string, days int) (domain.SalesSummary, error) {
	if days < 1 {
		days = 30
	}
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	summary, err := s.repo.GetSalesSummary(ctx, locationID, from, to)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	summary.Days = days
	return summary, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Printf("[events] WARN: publish %s failed order=%s: %v", event.Topic, event.OrderID, err)
	}
}

func (s *Service) logAudit(ctx context.Context, locationID string, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		LocationID:    locationID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
