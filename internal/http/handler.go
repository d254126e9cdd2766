package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/inviteu/internal/auth"
	"github.com/fjod/inviteu/internal/cart"
	"github.com/fjod/inviteu/internal/checkout"
	"github.com/fjod/inviteu/internal/domain"
	"github.com/fjod/inviteu/internal/logger"
	"github.com/fjod/inviteu/internal/money"
	"github.com/fjod/inviteu/internal/request"
	"github.com/fjod/inviteu/internal/storefront"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var errBadRequest = errors.New("bad request")

// Sessions is the storefront as the HTTP layer sees it.
// Consumers define this interface, not the registry implementation.
type Sessions interface {
	Session(ctx context.Context, id string) (*storefront.Session, error)
	OrdersForUser(ctx context.Context, userID string) ([]domain.Order, error)
}

type Catalog interface {
	List(ctx context.Context) ([]domain.CatalogEntry, error)
}

type Handler struct {
	sessions Sessions
	catalog  Catalog
	maxBody  int64
	logger   *zap.Logger
}

func NewHandler(sessions Sessions, catalog Catalog, maxBody int64, l *zap.Logger) *Handler {
	if l == nil {
		l = zap.NewNop()
	}
	return &Handler{sessions: sessions, catalog: catalog, maxBody: maxBody, logger: l}
}

type AddItemRequestDTO struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type PaymentMethodRequestDTO struct {
	Method string `json:"method"`
}

type CatalogEntryDTO struct {
	domain.CatalogEntry
	PriceDisplay string `json:"price_display"`
}

type CartResponse struct {
	SessionID    string            `json:"session_id"`
	Items        []domain.LineItem `json:"items"`
	ItemCount    int               `json:"item_count"`
	Total        int64             `json:"total"`
	TotalDisplay string            `json:"total_display"`
}

type SummaryDTO struct {
	Items           []domain.LineItem `json:"items"`
	Subtotal        int64             `json:"subtotal"`
	TaxRate         string            `json:"tax_rate"`
	Tax             int64             `json:"tax"`
	Total           int64             `json:"total"`
	SubtotalDisplay string            `json:"subtotal_display"`
	TaxDisplay      string            `json:"tax_display"`
	TotalDisplay    string            `json:"total_display"`
}

type CheckoutResponse struct {
	State   domain.CheckoutState `json:"state"`
	Method  domain.PaymentMethod `json:"method,omitempty"`
	Summary *SummaryDTO          `json:"summary,omitempty"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details string   `json:"details,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.catalog.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	out := make([]CatalogEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, CatalogEntryDTO{CatalogEntry: e, PriceDisplay: money.Format(e.UnitPrice)})
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(sess))
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}
	kind, err := domain.ParseItemKind(req.Type)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if _, err := sess.Cart.AddItem(r.Context(), req.ID, kind); err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse(sess))
}

func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	kind, id, ok := h.itemKey(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	if err := sess.Cart.UpdateQuantity(r.Context(), id, kind, *req.Quantity); err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(sess))
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	kind, id, ok := h.itemKey(w, r)
	if !ok {
		return
	}

	if err := sess.Cart.RemoveItem(r.Context(), id, kind); err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(sess))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	// memory is emptied even when the write fails; report the failure anyway
	if err := sess.Cart.Clear(r.Context()); err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(sess))
}

func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse(sess.Checkout))
}

func (h *Handler) LoadSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := sess.Checkout.LoadSummary(r.Context()); err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse(sess.Checkout))
}

func (h *Handler) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req PaymentMethodRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	if err := sess.Checkout.SelectPaymentMethod(domain.PaymentMethod(req.Method)); err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse(sess.Checkout))
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	order, err := sess.Checkout.ProcessPaymentAs(r.Context(), identity(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (h *Handler) ResetCheckout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Checkout.Reset(); err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse(sess.Checkout))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	orders, err := h.sessions.OrdersForUser(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var form request.Form
	if !h.decode(w, r, &form) {
		return
	}
	record, err := sess.Requests.Submit(r.Context(), identity(r), form)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.Notifications.Drain())
}

// session resolves the shopper session. Sign-in state is per request, see identity.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*storefront.Session, bool) {
	sess, err := h.sessions.Session(r.Context(), getSessionID(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return nil, false
	}
	return sess, true
}

// identity is the signed-in user of this request only.
func identity(r *http.Request) auth.Identity {
	return auth.Identity{UserID: getUserID(r.Context())}
}

func (h *Handler) itemKey(w http.ResponseWriter, r *http.Request) (domain.ItemKind, string, bool) {
	kind, err := domain.ParseItemKind(chi.URLParam(r, "type"))
	if err != nil {
		h.handleError(w, r, err)
		return "", "", false
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return "", "", false
	}
	return kind, id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := r.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		h.handleError(w, r, fmt.Errorf("%w: invalid JSON body", errBadRequest))
		return false
	}
	return true
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var missing *request.MissingFieldsError
	if errors.As(err, &missing) {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  request.ErrMissingFields.Error(),
			Code:   "missing_fields",
			Fields: missing.Fields,
		})
		return
	}

	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.WithContext(r.Context(), h.logger).Error("request failed",
			zap.String("request_id", getRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, status, code, http.StatusText(status))
		return
	}
	respondError(w, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, cart.ErrUnknownItem):
		return http.StatusNotFound, "unknown_item"
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, storefront.ErrInvalidSession):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrInvalidPaymentMethod):
		return http.StatusBadRequest, "invalid_payment_method"
	case errors.Is(err, checkout.ErrNotAuthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusConflict, "empty_cart"
	case errors.Is(err, checkout.ErrAlreadyProcessing):
		return http.StatusConflict, "already_processing"
	case errors.Is(err, checkout.ErrPaymentMethodRequired):
		return http.StatusConflict, "payment_method_required"
	case errors.Is(err, checkout.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, checkout.ErrPaymentFailed):
		return http.StatusPaymentRequired, "payment_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func cartResponse(sess *storefront.Session) CartResponse {
	items, total := sess.Cart.Snapshot()
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return CartResponse{
		SessionID:    sess.ID,
		Items:        items,
		ItemCount:    count,
		Total:        total,
		TotalDisplay: money.Format(total),
	}
}

func checkoutResponse(c *checkout.Checkout) CheckoutResponse {
	resp := CheckoutResponse{State: c.State(), Method: c.Method()}
	if snap := c.Snapshot(); !snap.IsEmpty() {
		resp.Summary = &SummaryDTO{
			Items:           snap.Items,
			Subtotal:        snap.Subtotal,
			TaxRate:         money.FormatRate(snap.TaxRate),
			Tax:             snap.Tax,
			Total:           snap.Total,
			SubtotalDisplay: money.Format(snap.Subtotal),
			TaxDisplay:      money.Format(snap.Tax),
			TotalDisplay:    money.Format(snap.Total),
		}
	}
	return resp
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
