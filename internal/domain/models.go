package domain

import "time"

type Product struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Size       string  `json:"size"`
	Color      string  `json:"color"`
	Price      float64 `json:"price"`
	Cost       float64 `json:"cost"`
	StockQty   int     `json:"stock_qty"`
	MinStock   int     `json:"min_stock"`
	LocationID string  `json:"location_id"`
}

type ProductCreateRequest struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Size       string  `json:"size"`
	Color      string  `json:"color"`
	Price      float64 `json:"price"`
	Cost       float64 `json:"cost"`
	StockQty   int     `json:"stock_qty"`
	MinStock   int     `json:"min_stock"`
	LocationID string  `json:"location_id"`
}

type ProductUpdateRequest struct {
	Category *string  `json:"category,omitempty"`
	Color    *string  `json:"color,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Cost     *float64 `json:"cost,omitempty"`
	MinStock *int     `json:"min_stock,omitempty"`
}

type StockSetRequest struct {
	StockQty int `json:"stock_qty"`
}

type Customer struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	LocationID string `json:"location_id"`
}

type CustomerCreateRequest struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	LocationID string `json:"location_id"`
}

type Location struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type OrderItemRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderCreateRequest struct {
	CustomerID   string             `json:"customer_id"`
	LocationID   string             `json:"location_id"`
	Items        []OrderItemRequest `json:"items"`
	DiscountPct  float64            `json:"discount_pct"`
	DeliveryDate *time.Time         `json:"delivery_date,omitempty"`
}

type OrderItem struct {
	ID                string  `json:"id"`
	OrderID           string  `json:"order_id"`
	ProductID         string  `json:"product_id"`
	ProductName       string  `json:"product_name,omitempty"`
	Qty               int     `json:"qty"`
	UnitPriceSnapshot float64 `json:"unit_price_snapshot"`
	UnitCostSnapshot  float64 `json:"unit_cost_snapshot"`
	Subtotal          float64 `json:"subtotal"`
	LineCost          float64 `json:"line_cost"`
	LineProfit        float64 `json:"line_profit"`
	LineMargin        float64 `json:"line_margin"`
}

type Order struct {
	ID            string     `json:"id"`
	CustomerID    string     `json:"customer_id"`
	LocationID    string     `json:"location_id"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	DeliveryDate  *time.Time `json:"delivery_date,omitempty"`
	DiscountPct   float64    `json:"discount_pct"`
	Total         float64    `json:"total"`
	CostTotal     float64    `json:"cost_total"`
	ProfitTotal   float64    `json:"profit_total"`
	MarginPct     float64    `json:"margin_pct"`
	StockReversed bool       `json:"stock_reversed"`
	Items         []OrderItem `json:"items,omitempty"`
}

type OrderDetail struct {
	Order
	CustomerName string `json:"customer_name,omitempty"`
	LocationName string `json:"location_name,omitempty"`
}

type OrderFilter struct {
	LocationID string
	CustomerID string
	Status     Status
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type LowStockAlert struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	Size         string `json:"size"`
	LocationID   string `json:"location_id"`
	LocationName string `json:"location_name"`
	StockQty     int    `json:"stock_qty"`
	MinStock     int    `json:"min_stock"`
	Deficit      int    `json:"deficit"`
}

type RestockSuggestion struct {
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	LocationID   string  `json:"location_id"`
	StockQty     int     `json:"stock_qty"`
	MinStock     int     `json:"min_stock"`
	SoldRecently int     `json:"sold_recently"`
	SuggestedQty int     `json:"suggested_qty"`
	Velocity     float64 `json:"velocity"`
}

type SalesSummary struct {
	LocationID string  `json:"location_id"`
	Days       int     `json:"days"`
	OrderCount int     `json:"order_count"`
	Revenue    float64 `json:"revenue"`
	Cost       float64 `json:"cost"`
	Profit     float64 `json:"profit"`
	AvgMargin  float64 `json:"avg_margin"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Actor struct {
	Username string
	Role     string
}

type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	LocationID    string    `json:"location_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
