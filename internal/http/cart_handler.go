package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/fjod/go_cart/cart-service/internal/logger"
	"github.com/go-chi/chi/v5"
)

// CartService is what the REST adapter needs from the cart engine.
type CartService interface {
	AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error)
	UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error)
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
	ValidateForCheckout(ctx context.Context, userID string) (*domain.Cart, error)
}

type CartHandler struct {
	service CartService
	log     *logger.Logger
	timeout time.Duration
}

func NewCartHandler(service CartService, log *logger.Logger, timeout time.Duration) *CartHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CartHandler{
		service: service,
		log:     log,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// CheckoutRejection is the 400 body for a checkout that dropped lines.
type CheckoutRejection struct {
	Error        string       `json:"error"`
	InvalidItems []string     `json:"invalidItems"`
	UpdatedCart  *domain.Cart `json:"updatedCart"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSONBody(r, &req); err != nil {
		respondValidationError(w, err)
		return
	}

	cart, err := h.service.AddItem(ctx, chi.URLParam(r, "userId"), req.ProductID, req.Quantity)
	if err != nil {
		h.handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	cart, err := h.service.GetCart(ctx, chi.URLParam(r, "userId"))
	if err != nil {
		h.handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := decodeJSONBody(r, &req); err != nil {
		respondValidationError(w, err)
		return
	}

	cart, err := h.service.UpdateItemQuantity(ctx, chi.URLParam(r, "userId"), chi.URLParam(r, "productId"), req.Quantity)
	if err != nil {
		h.handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	cart, err := h.service.RemoveItem(ctx, chi.URLParam(r, "userId"), chi.URLParam(r, "productId"))
	if err != nil {
		h.handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.service.ClearCart(ctx, chi.URLParam(r, "userId")); err != nil {
		h.handleError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) ValidateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	cart, err := h.service.ValidateForCheckout(ctx, chi.URLParam(r, "userId"))
	var rejection *domain.ValidationError
	if errors.As(err, &rejection) {
		respondJSON(w, http.StatusBadRequest, CheckoutRejection{
			Error:        "Cart items were updated during validation",
			InvalidItems: rejection.InvalidItems,
			UpdatedCart:  rejection.Cart,
		})
		return
	}
	if err != nil {
		h.handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx := h.log.WithUserID(r.Context(), chi.URLParam(r, "userId"))
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

func (h *CartHandler) handleError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		httpStatus int
		code       string
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		httpStatus, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidArgument):
		httpStatus, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrContention):
		httpStatus, code = http.StatusConflict, "contention"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		httpStatus, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code = http.StatusGatewayTimeout, "timeout"
	default:
		h.log.Error(ctx, "request failed", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if httpStatus >= http.StatusInternalServerError {
		h.log.Error(ctx, "request failed", err)
	}
	respondError(w, httpStatus, code, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
