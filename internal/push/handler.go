package push

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/pushrelay/internal/domain"
	"github.com/bissquit/pushrelay/internal/pkg/ctxlog"
	"github.com/bissquit/pushrelay/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrSubscriptionNotFound, Status: http.StatusNotFound, Message: "push subscription not found"},
	{Error: ErrTransportNotConfigured, Status: http.StatusServiceUnavailable, Message: "push delivery is not configured"},
	{Error: ErrPayloadTooLarge, Status: http.StatusRequestEntityTooLarge},
}

// Handler handles HTTP requests for the push module.
type Handler struct {
	service        *Service
	validator      *validator.Validate
	vapidPublicKey string
}

// NewHandler creates a new push handler.
func NewHandler(service *Service, vapidPublicKey string) *Handler {
	return &Handler{
		service:        service,
		validator:      validator.New(),
		vapidPublicKey: vapidPublicKey,
	}
}

// RegisterRoutes registers push routes (require auth).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/push/send", h.Send)
	r.Post("/push/subscriptions", h.Subscribe)
	r.Delete("/push/subscriptions", h.Unsubscribe)
}

// RegisterPublicRoutes registers routes browsers call before subscribing.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/push/vapid-public-key", h.GetVAPIDPublicKey)
}

// SendRequest represents request body for triggering a fan-out.
type SendRequest struct {
	Kind         string  `json:"kind" validate:"required,max=32"`
	ChannelID    *string `json:"channel_id" validate:"omitempty,max=128"`
	FromUsername *string `json:"from_username" validate:"omitempty,max=128"`
	Title        string  `json:"title" validate:"max=256"`
	Body         string  `json:"body" validate:"max=2048"`
	URL          string  `json:"url" validate:"max=2048"`
}

// SubscribeRequest represents a browser PushSubscription bound to a user.
type SubscribeRequest struct {
	Username string           `json:"username" validate:"required,max=128"`
	Endpoint string           `json:"endpoint" validate:"required,url,max=2048"`
	Keys     SubscriptionKeys `json:"keys"`
}

// SubscriptionKeys holds the client key material of a PushSubscription.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh" validate:"required,base64rawurl|base64url|base64"`
	Auth   string `json:"auth" validate:"required,base64rawurl|base64url|base64"`
}

// UnsubscribeRequest represents request body for removing a subscription.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
}

// Send handles POST /push/send.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	event := &domain.Event{
		Kind:           domain.EventKind(req.Kind),
		ChannelID:      req.ChannelID,
		SenderIdentity: req.FromUsername,
		Title:          req.Title,
		Body:           req.Body,
		TargetURL:      req.URL,
	}

	ctx := r.Context()
	if caller := httputil.GetCaller(ctx); caller != "" {
		ctx, _ = ctxlog.With(ctx, "caller", caller)
	}

	report, err := h.service.Send(ctx, event)
	if err != nil {
		httputil.HandleError(ctx, w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, report)
}

// Subscribe handles POST /push/subscriptions.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	sub, err := h.service.Subscribe(r.Context(), req.Username, req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /push/subscriptions.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req UnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if err := h.service.Unsubscribe(r.Context(), req.Endpoint); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetVAPIDPublicKey handles GET /push/vapid-public-key.
func (h *Handler) GetVAPIDPublicKey(w http.ResponseWriter, _ *http.Request) {
	if h.vapidPublicKey == "" {
		httputil.Error(w, http.StatusServiceUnavailable, "push delivery is not configured")
		return
	}
	httputil.Success(w, http.StatusOK, map[string]string{"public_key": h.vapidPublicKey})
}
