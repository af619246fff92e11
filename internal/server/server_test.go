package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"restaurant-order-engine/internal/cache"
	"restaurant-order-engine/internal/client"
	"restaurant-order-engine/internal/logger"
	"restaurant-order-engine/internal/middleware"
	"restaurant-order-engine/internal/model"
	"restaurant-order-engine/internal/notify"
	"restaurant-order-engine/internal/repository"
	"restaurant-order-engine/internal/service"
	"restaurant-order-engine/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*Server, *gorm.DB) {
	t.Helper()

	db := testutil.NewDB(t)
	log := logger.Discard()

	memCache, err := cache.NewMemoryCache(64, time.Minute)
	require.NoError(t, err)

	productRepo := repository.NewProductRepository(db)
	discountRepo := repository.NewDiscountRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	fidelityRepo := repository.NewFidelityRepository(db)
	pointRuleRepo := repository.NewPointRuleRepository(db)

	fidelity := service.NewFidelityService(db, log, fidelityRepo, pointRuleRepo)
	discounts := service.NewDiscountService(db, log, discountRepo, groupRepo)
	orders := service.NewOrderService(
		db, log, service.DefaultPricing(), notify.NewRecorder(), client.NewSimulatedGateway(),
		productRepo, repository.NewOrderRepository(db), discountRepo, groupRepo, fidelityRepo,
		fidelity,
	)
	baskets := service.NewBasketService(
		db, log, memCache, service.DefaultPricing(),
		productRepo, repository.NewBasketRepository(db),
		discounts, orders,
	)

	srv := NewServer(log, Services{
		Basket:    baskets,
		Order:     orders,
		Fidelity:  fidelity,
		PointRule: service.NewPointRuleService(db, log, pointRuleRepo),
		Discount:  discounts,
		Group:     service.NewGroupService(db, log, groupRepo, "test-signing-key"),
	})
	return srv, db
}

func do(t *testing.T, srv *Server, method, path, body string, headers map[string]string) (int, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestBasketToOrderOverHTTP(t *testing.T) {
	srv, db := newTestServer(t)
	burger := testutil.SeedProduct(t, db, "Burger", "12.50")
	session := map[string]string{middleware.HeaderSessionID: "sess-1"}

	code, resp := do(t, srv, http.MethodPost, "/api/basket/items",
		`{"product_id":"`+burger.ID+`","quantity":2}`, session)
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.Equal(t, "success", resp.Status)

	var basket model.Basket
	require.NoError(t, json.Unmarshal(resp.Data, &basket))
	assert.Equal(t, "25.00", basket.Subtotal.StringFixed(2))
	assert.Equal(t, "2.00", basket.Tax.StringFixed(2))
	assert.Equal(t, "27.00", basket.Total.StringFixed(2))
	require.Len(t, basket.Items, 1)

	code, resp = do(t, srv, http.MethodPost, "/api/basket/checkout",
		`{"type":"takeaway","guest_name":"Ana"}`, session)
	require.Equal(t, http.StatusCreated, code, resp.Message)

	var order model.Order
	require.NoError(t, json.Unmarshal(resp.Data, &order))
	assert.Equal(t, "25.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, "4.50", order.Tax.StringFixed(2))
	assert.Equal(t, "29.50", order.Total.StringFixed(2))
	assert.Equal(t, model.OrderStatusPending, order.Status)

	code, resp = do(t, srv, http.MethodGet, "/api/orders/"+order.ID, "", nil)
	require.Equal(t, http.StatusOK, code)

	code, resp = do(t, srv, http.MethodPut, "/api/orders/"+order.ID+"/status",
		`{"status":"completed"}`, map[string]string{middleware.HeaderUserID: "manager-1"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, "cannot change order")

	code, resp = do(t, srv, http.MethodPut, "/api/orders/"+order.ID+"/status",
		`{"status":"confirmed"}`, map[string]string{middleware.HeaderUserID: "manager-1"})
	require.Equal(t, http.StatusOK, code, resp.Message)
	require.NoError(t, json.Unmarshal(resp.Data, &order))
	assert.Equal(t, model.OrderStatusConfirmed, order.Status)
	assert.Equal(t, "manager-1", order.UpdatedBy)

	// the checked out basket is gone
	code, resp = do(t, srv, http.MethodGet, "/api/basket", "", session)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &basket))
	assert.Empty(t, basket.Items)
}

func TestErrorResponses(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		headers map[string]string
		code    int
		message string
	}{
		{"basket without owner", http.MethodGet, "/api/basket", "", nil, http.StatusBadRequest, "missing X-User-Id or X-Session-Id header"},
		{"unknown order", http.MethodGet, "/api/orders/missing", "", nil, http.StatusNotFound, "order missing not found"},
		{"malformed body", http.MethodPost, "/api/orders", "{", nil, http.StatusBadRequest, "invalid req body"},
		{"invalid order", http.MethodPost, "/api/orders", `{"type":"drone","guest_name":"Ana"}`, nil, http.StatusBadRequest, `unknown order type "drone"`},
		{"bad item id", http.MethodDelete, "/api/basket/items/abc", "", map[string]string{middleware.HeaderSessionID: "s"}, http.StatusBadRequest, "invalid itemID"},
		{"bad amount", http.MethodGet, "/api/discounts/best?customer_id=c1&amount=x", "", nil, http.StatusBadRequest, "invalid amount"},
		{"unknown route", http.MethodGet, "/api/nope", "", nil, http.StatusNotFound, "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := do(t, srv, tt.method, tt.path, tt.body, tt.headers)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.message, resp.Message)
			assert.Empty(t, resp.Data)
		})
	}
}

func TestFidelityOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	staff := map[string]string{middleware.HeaderUserID: "staff-1"}

	code, resp := do(t, srv, http.MethodGet, "/api/fidelity/customers/c1", "", nil)
	require.Equal(t, http.StatusOK, code)
	var balance model.FidelityPointBalance
	require.NoError(t, json.Unmarshal(resp.Data, &balance))
	assert.Equal(t, 0, balance.CurrentPoints)

	code, resp = do(t, srv, http.MethodPost, "/api/fidelity/customers/c1/award",
		`{"points":120,"order_total":"60.00"}`, staff)
	require.Equal(t, http.StatusOK, code, resp.Message)
	require.NoError(t, json.Unmarshal(resp.Data, &balance))
	assert.Equal(t, 120, balance.CurrentPoints)

	code, resp = do(t, srv, http.MethodPost, "/api/fidelity/customers/c1/redeem",
		`{"points":500}`, staff)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "error", resp.Status)

	code, resp = do(t, srv, http.MethodPost, "/api/fidelity/customers/c1/redeem",
		`{"points":100}`, staff)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var redeemed struct {
		Points   int             `json:"points"`
		Discount decimal.Decimal `json:"discount"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &redeemed))
	assert.Equal(t, 100, redeemed.Points)
	assert.Equal(t, "1.00", redeemed.Discount.StringFixed(2))

	code, resp = do(t, srv, http.MethodGet, "/api/fidelity/customers/c1/transactions?per_page=10", "", nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Total int64             `json:"total"`
		Items []json.RawMessage `json:"items"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.EqualValues(t, 2, page.Total)
	assert.Len(t, page.Items, 2)
}
