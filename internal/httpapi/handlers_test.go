package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"uniformes/backend/internal/cache"
	"uniformes/backend/internal/domain"
	"uniformes/backend/internal/service"
	"uniformes/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopRestockCache{}, nil)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func loginAs(t *testing.T, api *API, username string, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login as %s failed, status %d (body: %s)", username, res.Code, res.Body.String())
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	return payload.AccessToken
}

// doJSON sends an authenticated JSON request with a valid CSRF token and
// returns the recorder.
func doJSON(t *testing.T, api *API, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-CSRF-Token", fetchCSRFToken(t, api))
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_StaffCanListButNotCreate(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["products"] == nil {
		t.Fatalf("expected products key in response, got %v", body)
	}

	create := doJSON(t, api, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{
		Name: "Bermuda", Category: "shorts", Size: "M", Price: 35, Cost: 18, StockQty: 20, MinStock: 4, LocationID: "loc-colegio-norte",
	})
	if create.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff product create, got %d (body: %s)", create.Code, create.Body.String())
	}
}

func TestHandleProducts_AdminCreateAndDuplicate(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "admin", "admin123")

	req := domain.ProductCreateRequest{
		Name: "Bermuda", Category: "shorts", Size: "M", Color: "navy",
		Price: 35, Cost: 18, StockQty: 20, MinStock: 4, LocationID: "loc-colegio-norte",
	}
	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", token, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	dup := doJSON(t, api, http.MethodPost, "/api/v1/products", token, req)
	if dup.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate product, got %d (body: %s)", dup.Code, dup.Body.String())
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")

	create := doJSON(t, api, http.MethodPost, "/api/v1/orders", token, domain.OrderCreateRequest{
		CustomerID: "cst-maria",
		LocationID: "loc-colegio-norte",
		Items: []domain.OrderItemRequest{
			{ProductID: "prd-polo-m-norte", Qty: 2},
		},
		DiscountPct: 10,
	})
	if create.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", create.Code, create.Body.String())
	}

	var created struct {
		Order domain.Order `json:"order"`
	}
	if err := json.NewDecoder(create.Body).Decode(&created); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if created.Order.Status != domain.StatusPending {
		t.Fatalf("expected pending order, got %s", created.Order.Status)
	}
	wantTotal := 2 * 45.0 * 0.9
	if created.Order.Total != wantTotal {
		t.Fatalf("expected total %.2f, got %.2f", wantTotal, created.Order.Total)
	}

	confirm := doJSON(t, api, http.MethodPut, "/api/v1/orders/"+created.Order.ID+"/status", token, domain.StatusUpdateRequest{Status: "confirmed"})
	if confirm.Code != http.StatusOK {
		t.Fatalf("expected 200 on confirm, got %d (body: %s)", confirm.Code, confirm.Body.String())
	}

	skip := doJSON(t, api, http.MethodPut, "/api/v1/orders/"+created.Order.ID+"/status", token, domain.StatusUpdateRequest{Status: "delivered"})
	if skip.Code != http.StatusConflict {
		t.Fatalf("expected 409 for skipped transition, got %d (body: %s)", skip.Code, skip.Body.String())
	}

	unknown := doJSON(t, api, http.MethodPut, "/api/v1/orders/"+created.Order.ID+"/status", token, domain.StatusUpdateRequest{Status: "shipped"})
	if unknown.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown status, got %d (body: %s)", unknown.Code, unknown.Body.String())
	}

	cancel := doJSON(t, api, http.MethodPost, "/api/v1/orders/"+created.Order.ID+"/cancel", token, nil)
	if cancel.Code != http.StatusOK {
		t.Fatalf("expected 200 on cancel, got %d (body: %s)", cancel.Code, cancel.Body.String())
	}

	detailReq := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+created.Order.ID, nil)
	detailReq.Header.Set("Authorization", "Bearer "+token)
	detailRec := httptest.NewRecorder()
	api.Handler().ServeHTTP(detailRec, detailReq)
	if detailRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on detail, got %d", detailRec.Code)
	}
	var detail struct {
		Order domain.OrderDetail `json:"order"`
	}
	if err := json.NewDecoder(detailRec.Body).Decode(&detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.Order.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled order, got %s", detail.Order.Status)
	}
	if detail.Order.CustomerName != "Maria Souza" {
		t.Fatalf("expected customer name in detail, got %q", detail.Order.CustomerName)
	}
}

func TestCreateOrderInsufficientStockReturns409(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")

	rec := doJSON(t, api, http.MethodPost, "/api/v1/orders", token, domain.OrderCreateRequest{
		CustomerID: "cst-maria",
		LocationID: "loc-colegio-norte",
		Items: []domain.OrderItemRequest{
			{ProductID: "prd-agasalho-m-norte", Qty: 26},
		},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestDeleteOrderRequiresAdminOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	staffToken := loginAs(t, api, "staff", "staff123")
	adminToken := loginAs(t, api, "admin", "admin123")

	create := doJSON(t, api, http.MethodPost, "/api/v1/orders", staffToken, domain.OrderCreateRequest{
		CustomerID: "cst-maria",
		LocationID: "loc-colegio-norte",
		Items:      []domain.OrderItemRequest{{ProductID: "prd-polo-m-norte", Qty: 1}},
	})
	if create.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", create.Code, create.Body.String())
	}
	var created struct {
		Order domain.Order `json:"order"`
	}
	if err := json.NewDecoder(create.Body).Decode(&created); err != nil {
		t.Fatalf("decode order: %v", err)
	}

	denied := doJSON(t, api, http.MethodDelete, "/api/v1/orders/"+created.Order.ID, staffToken, nil)
	if denied.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff delete, got %d (body: %s)", denied.Code, denied.Body.String())
	}

	allowed := doJSON(t, api, http.MethodDelete, "/api/v1/orders/"+created.Order.ID, adminToken, nil)
	if allowed.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin delete, got %d (body: %s)", allowed.Code, allowed.Body.String())
	}

	gone := doJSON(t, api, http.MethodDelete, "/api/v1/orders/"+created.Order.ID, adminToken, nil)
	if gone.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for deleted order, got %d (body: %s)", gone.Code, gone.Body.String())
	}
}

func TestLowStockAlertsOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")

	// Drive the jacket down to its minimum so an alert fires.
	create := doJSON(t, api, http.MethodPost, "/api/v1/orders", token, domain.OrderCreateRequest{
		CustomerID: "cst-maria",
		LocationID: "loc-colegio-norte",
		Items:      []domain.OrderItemRequest{{ProductID: "prd-agasalho-m-norte", Qty: 21}},
	})
	if create.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", create.Code, create.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/low-stock?location_id=loc-colegio-norte", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Alerts []domain.LowStockAlert `json:"alerts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	found := false
	for _, alert := range body.Alerts {
		if alert.ProductID == "prd-agasalho-m-norte" {
			found = true
			if alert.StockQty != 4 || alert.Deficit != 1 {
				t.Fatalf("unexpected alert figures %+v", alert)
			}
		}
	}
	if !found {
		t.Fatalf("expected low stock alert for prd-agasalho-m-norte, got %+v", body.Alerts)
	}
}

func TestRestockSuggestionsRequireAdmin(t *testing.T) {
	api := newTestAPI(t)
	staffToken := loginAs(t, api, "staff", "staff123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/restock-suggestions", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", rec.Code)
	}
}

func TestCreateStaffOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	adminToken := loginAs(t, api, "admin", "admin123")

	rec := doJSON(t, api, http.MethodPost, "/api/v1/users/staff", adminToken, domain.StaffCreateRequest{
		Username: "vendedora",
		Password: "segredo1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// The new account can log in straight away.
	if token := loginAs(t, api, "vendedora", "segredo1"); token == "" {
		t.Fatalf("expected token for new staff login")
	}
}
