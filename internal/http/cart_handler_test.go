package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceMock struct {
	cart *domain.Cart
	err  error

	gotUserID    string
	gotProductID string
	gotQuantity  int
}

func (m *serviceMock) AddItem(_ context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	m.gotUserID, m.gotProductID, m.gotQuantity = userID, productID, quantity
	return m.cart, m.err
}

func (m *serviceMock) UpdateItemQuantity(_ context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	m.gotUserID, m.gotProductID, m.gotQuantity = userID, productID, quantity
	return m.cart, m.err
}

func (m *serviceMock) RemoveItem(_ context.Context, userID, productID string) (*domain.Cart, error) {
	m.gotUserID, m.gotProductID = userID, productID
	return m.cart, m.err
}

func (m *serviceMock) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.gotUserID = userID
	return m.cart, m.err
}

func (m *serviceMock) ClearCart(_ context.Context, userID string) error {
	m.gotUserID = userID
	return m.err
}

func (m *serviceMock) ValidateForCheckout(_ context.Context, userID string) (*domain.Cart, error) {
	m.gotUserID = userID
	if m.err != nil {
		return nil, m.err
	}
	return m.cart, nil
}

func sampleCart() *domain.Cart {
	cart := domain.NewCart("u1")
	cart.Items = append(cart.Items, domain.CartItem{
		ProductID: "p1", Quantity: 2, Name: "Widget", Price: decimal.RequireFromString("10.00"), Available: true,
	})
	cart.RecalculateTotals()
	return cart
}

func serve(t *testing.T, svc CartService, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	router := NewRouter(NewCartHandler(svc, nil, 5*time.Second), nil, prometheus.NewRegistry())
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(method, path, reader))
	return recorder
}

func TestAddItem_Success(t *testing.T) {
	svc := &serviceMock{cart: sampleCart()}

	rec := serve(t, svc, http.MethodPost, "/api/v1/cart/u1/add", AddItemRequestDTO{ProductID: "p1", Quantity: 2})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", svc.gotUserID)
	assert.Equal(t, "p1", svc.gotProductID)
	assert.Equal(t, 2, svc.gotQuantity)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "u1", body["userId"])
	assert.Equal(t, "20", body["totalAmount"])
	assert.Equal(t, float64(2), body["totalQuantity"])
}

func TestAddItem_ValidationFailures(t *testing.T) {
	cases := map[string]any{
		"missing product":  map[string]any{"quantity": 1},
		"zero quantity":    map[string]any{"productId": "p1", "quantity": 0},
		"negative":         map[string]any{"productId": "p1", "quantity": -3},
		"unknown field":    map[string]any{"productId": "p1", "quantity": 1, "extra": true},
		"not json":         "{",
		"quantity as text": `{"productId":"p1","quantity":"two"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &serviceMock{cart: sampleCart()}

			rec := serve(t, svc, http.MethodPost, "/api/v1/cart/u1/add", body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, svc.gotUserID, "service must not be called")
			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "invalid_request", resp.Code)
		})
	}
}

func TestGetCart(t *testing.T) {
	svc := &serviceMock{cart: sampleCart()}

	rec := serve(t, svc, http.MethodGet, "/api/v1/cart/u1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", svc.gotUserID)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestUpdateQuantity(t *testing.T) {
	svc := &serviceMock{cart: sampleCart()}

	rec := serve(t, svc, http.MethodPut, "/api/v1/cart/u1/item/p1", UpdateQuantityRequestDTO{Quantity: 4})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", svc.gotProductID)
	assert.Equal(t, 4, svc.gotQuantity)
}

func TestRemoveItem(t *testing.T) {
	svc := &serviceMock{cart: domain.NewCart("u1")}

	rec := serve(t, svc, http.MethodDelete, "/api/v1/cart/u1/item/p1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", svc.gotProductID)
}

func TestClearCart(t *testing.T) {
	svc := &serviceMock{}

	rec := serve(t, svc, http.MethodDelete, "/api/v1/cart/u1", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1", svc.gotUserID)
	assert.Zero(t, rec.Body.Len())
}

func TestValidateCheckout_Success(t *testing.T) {
	svc := &serviceMock{cart: sampleCart()}

	rec := serve(t, svc, http.MethodPost, "/api/v1/cart/u1/checkout-validate", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateCheckout_Rejection(t *testing.T) {
	updated := sampleCart()
	svc := &serviceMock{err: &domain.ValidationError{InvalidItems: []string{"B (NO_STOCK)"}, Cart: updated}}

	rec := serve(t, svc, http.MethodPost, "/api/v1/cart/u1/checkout-validate", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error        string       `json:"error"`
		InvalidItems []string     `json:"invalidItems"`
		UpdatedCart  *domain.Cart `json:"updatedCart"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.NotEmpty(t, body.Error)
	assert.Equal(t, []string{"B (NO_STOCK)"}, body.InvalidItems)
	require.NotNil(t, body.UpdatedCart)
	assert.Len(t, body.UpdatedCart.Items, 1)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrCartNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrCartEmpty, http.StatusNotFound, "not_found"},
		{domain.ErrItemNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("%w: bad", domain.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{fmt.Errorf("%w: 5 attempts", domain.ErrContention), http.StatusConflict, "contention"},
		{fmt.Errorf("%w: catalog down", domain.ErrUpstreamUnavailable), http.StatusServiceUnavailable, "service_unavailable"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code+"/"+tc.err.Error(), func(t *testing.T) {
			rec := serve(t, &serviceMock{err: tc.err}, http.MethodGet, "/api/v1/cart/u1", nil)

			assert.Equal(t, tc.status, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tc.code, resp.Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	router := NewRouter(NewCartHandler(&serviceMock{}, nil, time.Second), nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "given-id")
	router.ServeHTTP(rec, req)
	assert.Equal(t, "given-id", rec.Header().Get(requestIDHeader))
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "cart_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()
	router := NewRouter(NewCartHandler(&serviceMock{}, nil, time.Second), nil, reg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cart_test_total 1")
}
