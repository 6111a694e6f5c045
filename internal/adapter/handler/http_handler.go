package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ltran/shopfulfill/internal/core/domain"
	"github.com/ltran/shopfulfill/internal/core/service"
)

// HTTPHandler is the thin JSON adapter over the cart and order services. The
// authenticated user ID arrives in the X-User-ID header; how it was issued is
// the identity layer's concern.
type HTTPHandler struct {
	cartService  *service.CartService
	orderService *service.OrderService
}

func NewHTTPHandler(cartService *service.CartService, orderService *service.OrderService) *HTTPHandler {
	return &HTTPHandler{cartService: cartService, orderService: orderService}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/cart", h.Cart)
	mux.HandleFunc("/api/cart/items", h.CartItems)
	mux.HandleFunc("/api/cart/validate", h.ValidateCart)
	mux.HandleFunc("/api/orders", h.Orders)
	mux.HandleFunc("/api/orders/cancel", h.CancelOrder)
	mux.HandleFunc("/api/orders/refund", h.RefundOrder)
	mux.HandleFunc("/api/orders/status", h.UpdateOrderStatus)
	mux.HandleFunc("/api/webhooks/payment", h.PaymentWebhook)
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type checkoutRequest struct {
	ShippingMethod string `json:"shipping_method"`
	PaymentMethod  string `json:"payment_method"`
	CouponCode     string `json:"coupon_code"`
}

type orderActionRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type statusUpdateRequest struct {
	OrderID        string `json:"order_id"`
	Status         string `json:"status"`
	Note           string `json:"note"`
	Actor          string `json:"actor"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}

type paymentWebhookRequest struct {
	IntentRef string `json:"intent_ref"`
	Status    string `json:"status"`
}

type errorResponse struct {
	Error     string   `json:"error"`
	Retryable bool     `json:"retryable,omitempty"`
	Messages  []string `json:"messages,omitempty"`
}

func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (h *HTTPHandler) Cart(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing user"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		cart, err := h.cartService.Get(r.Context(), uid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	case http.MethodDelete:
		if err := h.cartService.Clear(r.Context(), uid); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) CartItems(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing user"})
		return
	}

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "product_id is required"})
		return
	}

	var err error
	switch r.Method {
	case http.MethodPost:
		err = h.cartService.AddItem(r.Context(), uid, req.ProductID, req.VariantID, req.Quantity)
	case http.MethodPut:
		err = h.cartService.UpdateItem(r.Context(), uid, req.ProductID, req.VariantID, req.Quantity)
	case http.MethodDelete:
		err = h.cartService.RemoveItem(r.Context(), uid, req.ProductID, req.VariantID)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	cart, err := h.cartService.Get(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *HTTPHandler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing user"})
		return
	}

	messages, err := h.cartService.ValidateItems(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":    len(messages) == 0,
		"messages": messages,
	})
}

func (h *HTTPHandler) Orders(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing user"})
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req checkoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		order, err := h.orderService.Create(r.Context(), uid, service.CreateOrderInput{
			ShippingMethod: req.ShippingMethod,
			PaymentMethod:  req.PaymentMethod,
			CouponCode:     req.CouponCode,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, order)
	case http.MethodGet:
		if orderID := r.URL.Query().Get("id"); orderID != "" {
			order, err := h.orderService.Get(r.Context(), uid, orderID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, order)
			return
		}
		orders, err := h.orderService.ListByUser(r.Context(), uid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing user"})
		return
	}

	var req orderActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "order_id is required"})
		return
	}

	if err := h.orderService.Cancel(r.Context(), uid, req.OrderID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *HTTPHandler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing user"})
		return
	}

	var req orderActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "order_id is required"})
		return
	}

	if err := h.orderService.RequestRefund(r.Context(), uid, req.OrderID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refunded"})
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" || req.Status == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "order_id and status are required"})
		return
	}

	err := h.orderService.UpdateStatus(r.Context(), req.OrderID, service.StatusUpdate{
		Status:         domain.OrderStatus(req.Status),
		Note:           req.Note,
		Actor:          req.Actor,
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h *HTTPHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req paymentWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IntentRef == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "intent_ref is required"})
		return
	}

	err := h.orderService.HandlePaymentEvent(r.Context(), service.PaymentEvent{
		IntentRef: req.IntentRef,
		Status:    domain.PaymentStatus(req.Status),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:    "cart validation failed",
			Messages: validation.Messages,
		})
	case errors.Is(err, domain.ErrLockBusy):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "cart busy, retry", Retryable: true})
	case errors.Is(err, domain.ErrInsufficientStock):
		writeJSON(w, http.StatusGone, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, domain.ErrEmptyCart), errors.Is(err, domain.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrPaymentSetup):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
