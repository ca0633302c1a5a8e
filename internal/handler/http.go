package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/middleware"
	"github.com/SergeyBogomolovv/checkout-service/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type OrderService interface {
	CreateOrder(ctx context.Context, userID string, in entities.CheckoutInput) (entities.Order, error)
	GetOrder(ctx context.Context, orderID, userID string) (entities.Order, error)
	ListOrders(ctx context.Context, userID string, page entities.Page) (entities.OrderPage, error)
	CancelOrder(ctx context.Context, orderID, userID string) (entities.Order, error)
	CreatePaymentIntent(ctx context.Context, orderID, userID string) (entities.PaymentIntent, error)
	ConfirmPayment(ctx context.Context, orderID, userID, intentID string) (entities.Order, error)

	ListAllOrders(ctx context.Context, filter entities.OrderFilter, page entities.Page) (entities.OrderPage, error)
	UpdateStatus(ctx context.Context, orderID string, status entities.OrderStatus, notes string) (entities.Order, error)
	UpdateTracking(ctx context.Context, orderID string, tracking entities.Tracking) (entities.Order, error)
}

type HTTPHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	auth     *middleware.Authenticator
	svc      OrderService
}

func NewHTTPHandler(logger *slog.Logger, auth *middleware.Authenticator, svc OrderService) *HTTPHandler {
	return &HTTPHandler{
		logger:   logger.With(slog.String("handler", "http")),
		validate: utils.NewValidator(),
		auth:     auth,
		svc:      svc,
	}
}

func (h *HTTPHandler) Init(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(h.auth.Authenticate)
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Patch("/{id}/cancel", h.CancelOrder)
		r.Post("/{id}/payment-intent", h.CreatePaymentIntent)
		r.Post("/{id}/confirm-payment", h.ConfirmPayment)
	})

	r.Route("/admin/orders", func(r chi.Router) {
		r.Use(h.auth.Authenticate, middleware.RequireRole(middleware.RoleAdmin))
		r.Get("/", h.ListAllOrders)
		r.Patch("/{id}/status", h.UpdateStatus)
		r.Patch("/{id}/shipping", h.UpdateTracking)
	})
}

// CreateOrder godoc
// @Summary      Checkout
// @Description  Creates a PENDING order from the caller's cart. The cart is kept until the payment succeeds.
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateOrderRequest  true  "Checkout form"
// @Success      201      {object}  Order
// @Failure      400      {object}  utils.ErrorResponse "Empty cart, missing address or invalid input"
// @Failure      401      {object}  utils.ErrorResponse
// @Failure      500      {object}  utils.ErrorResponse
// @Router       /orders [post]
func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), middleware.UserID(r.Context()), CheckoutJSONToEntity(req))
	if err != nil {
		h.writeError(w, r, "failed to create order", err)
		return
	}
	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusCreated)
}

// ListOrders godoc
// @Summary      List own orders
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number"  default(1)
// @Param        limit  query     int  false  "Page size"    default(10)
// @Success      200    {object}  OrderList
// @Failure      400    {object}  utils.ErrorResponse
// @Failure      401    {object}  utils.ErrorResponse
// @Router       /orders [get]
func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, ok := h.page(w, r)
	if !ok {
		return
	}

	res, err := h.svc.ListOrders(r.Context(), middleware.UserID(r.Context()), page)
	if err != nil {
		h.writeError(w, r, "failed to list orders", err)
		return
	}
	utils.WriteJSON(w, OrderPageToJSON(res), http.StatusOK)
}

// GetOrder godoc
// @Summary      Get own order
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order id"
// @Success      200  {object}  Order
// @Failure      400  {object}  utils.ValidationErrorResponse
// @Failure      404  {object}  utils.ErrorResponse "Order not found"
// @Router       /orders/{id} [get]
func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.svc.GetOrder(r.Context(), orderID, middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, "failed to get order", err)
		return
	}
	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// CancelOrder godoc
// @Summary      Cancel own order
// @Description  Only PENDING and PROCESSING orders can be cancelled.
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order id"
// @Success      200  {object}  Order
// @Failure      400  {object}  utils.ErrorResponse "Order cannot be cancelled"
// @Failure      404  {object}  utils.ErrorResponse
// @Failure      409  {object}  utils.ErrorResponse
// @Router       /orders/{id}/cancel [patch]
func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.svc.CancelOrder(r.Context(), orderID, middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, "failed to cancel order", err)
		return
	}
	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// CreatePaymentIntent godoc
// @Summary      Start payment
// @Description  Opens a payment intent for the order total and returns its client secret.
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order id"
// @Success      200  {object}  PaymentIntent
// @Failure      400  {object}  utils.ErrorResponse "Payment already processed"
// @Failure      404  {object}  utils.ErrorResponse
// @Router       /orders/{id}/payment-intent [post]
func (h *HTTPHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	intent, err := h.svc.CreatePaymentIntent(r.Context(), orderID, middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, "failed to create payment intent", err)
		return
	}
	utils.WriteJSON(w, PaymentIntent{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID}, http.StatusOK)
}

// ConfirmPayment godoc
// @Summary      Confirm payment
// @Description  Settles the payment. On success the order moves to PROCESSING and the cart is cleared.
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Order id"
// @Param        request  body      ConfirmPaymentRequest  true  "Payment intent"
// @Success      200      {object}  Order
// @Failure      400      {object}  utils.ErrorResponse "Payment already processed or intent mismatch"
// @Failure      402      {object}  utils.ErrorResponse "Payment failed"
// @Failure      404      {object}  utils.ErrorResponse
// @Router       /orders/{id}/confirm-payment [post]
func (h *HTTPHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req ConfirmPaymentRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.svc.ConfirmPayment(r.Context(), orderID, middleware.UserID(r.Context()), req.PaymentIntentID)
	if err != nil {
		h.writeError(w, r, "failed to confirm payment", err)
		return
	}
	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// ListAllOrders godoc
// @Summary      List all orders
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        status         query     string  false  "Order status"    Enums(PENDING, PROCESSING, SHIPPED, DELIVERED, CANCELLED)
// @Param        paymentStatus  query     string  false  "Payment status"  Enums(PENDING, COMPLETED, FAILED)
// @Param        page           query     int     false  "Page number"     default(1)
// @Param        limit          query     int     false  "Page size"       default(10)
// @Success      200            {object}  OrderList
// @Failure      400            {object}  utils.ErrorResponse
// @Failure      403            {object}  utils.ErrorResponse
// @Router       /admin/orders [get]
func (h *HTTPHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	page, ok := h.page(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := entities.OrderFilter{
		Status:        entities.OrderStatus(q.Get("status")),
		PaymentStatus: entities.PaymentStatus(q.Get("paymentStatus")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		utils.WriteError(w, "unknown status", http.StatusBadRequest)
		return
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		utils.WriteError(w, "unknown payment status", http.StatusBadRequest)
		return
	}

	res, err := h.svc.ListAllOrders(r.Context(), filter, page)
	if err != nil {
		h.writeError(w, r, "failed to list orders", err)
		return
	}
	utils.WriteJSON(w, OrderPageToJSON(res), http.StatusOK)
}

// UpdateStatus godoc
// @Summary      Change order status
// @Description  Moves the order along its lifecycle. PROCESSING is reached through payment only.
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Order id"
// @Param        request  body      UpdateStatusRequest  true  "Target status"
// @Success      200      {object}  Order
// @Failure      400      {object}  utils.ErrorResponse "Transition not allowed"
// @Failure      404      {object}  utils.ErrorResponse
// @Failure      409      {object}  utils.ErrorResponse
// @Router       /admin/orders/{id}/status [patch]
func (h *HTTPHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), orderID, entities.OrderStatus(req.Status), req.Notes)
	if err != nil {
		h.writeError(w, r, "failed to update order status", err)
		return
	}
	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// UpdateTracking godoc
// @Summary      Set shipment tracking
// @Description  Ships a PENDING or PROCESSING order, or corrects tracking of a SHIPPED one.
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Order id"
// @Param        request  body      UpdateTrackingRequest  true  "Tracking"
// @Success      200      {object}  Order
// @Failure      400      {object}  utils.ErrorResponse
// @Failure      404      {object}  utils.ErrorResponse
// @Router       /admin/orders/{id}/shipping [patch]
func (h *HTTPHandler) UpdateTracking(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req UpdateTrackingRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.svc.UpdateTracking(r.Context(), orderID, entities.Tracking{
		Number:  req.TrackingNumber,
		Carrier: req.Carrier,
	})
	if err != nil {
		h.writeError(w, r, "failed to update tracking", err)
		return
	}
	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

func (h *HTTPHandler) orderID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := h.validate.Var(id, "required,uuid"); err != nil {
		utils.WriteError(w, "invalid order id", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func (h *HTTPHandler) page(w http.ResponseWriter, r *http.Request) (entities.Page, bool) {
	page, err := utils.QueryInt(r, "page", 1)
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return entities.Page{}, false
	}
	limit, err := utils.QueryInt(r, "limit", entities.DefaultPageLimit)
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return entities.Page{}, false
	}
	return entities.Page{Page: page, Limit: limit}, true
}

// badRequestErrors are broken preconditions the caller can fix.
var badRequestErrors = []error{
	entities.ErrEmptyCart,
	entities.ErrInvalidOrder,
	entities.ErrShippingAddressRequired,
	entities.ErrSavedAddressUnsupported,
	entities.ErrCouponNotApplied,
	entities.ErrInvalidTotals,
	entities.ErrCannotCancel,
	entities.ErrInvalidTransition,
	entities.ErrPaymentAlreadyProcessed,
	entities.ErrPaymentIntentMismatch,
	entities.ErrPaymentIntentMissing,
	entities.ErrOrderNotPayable,
}

// writeError maps service errors to status codes. Unknown errors are logged
// and hidden behind a generic message.
func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, entities.ErrOrderNotFound):
		utils.WriteError(w, "order not found", http.StatusNotFound)
		return
	case errors.Is(err, entities.ErrPaymentFailed):
		utils.WriteError(w, "payment failed", http.StatusPaymentRequired)
		return
	case errors.Is(err, entities.ErrVersionConflict):
		utils.WriteError(w, "order was modified concurrently, retry", http.StatusConflict)
		return
	}

	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			utils.WriteError(w, target.Error(), http.StatusBadRequest)
			return
		}
	}

	h.logger.ErrorContext(r.Context(), msg, slog.Any("error", err))
	utils.WriteError(w, "internal server error", http.StatusInternalServerError)
}
