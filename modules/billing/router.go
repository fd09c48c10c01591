package billing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/speaklab/backend/pkg/logger"
	"github.com/speaklab/backend/pkg/session"
)

// maxWebhookBody bounds webhook payload reads; Stripe events are far smaller.
const maxWebhookBody = 1 << 16

// RouterOptions wires the billing module's HTTP surface.
type RouterOptions struct {
	Service *Service
	Session *session.Verifier
	Logger  *slog.Logger
}

type router struct {
	svc      *Service
	log      *slog.Logger
	validate *validator.Validate
}

// Router mounts the billing endpoints. The webhook endpoint is
// provider-facing and unauthenticated; everything else requires a session.
func Router(opts RouterOptions) chi.Router {
	if opts.Service == nil {
		panic("billing: Service is required")
	}
	if opts.Session == nil {
		panic("billing: session Verifier is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	h := &router{
		svc:      opts.Service,
		log:      log,
		validate: validator.New(),
	}

	r := chi.NewRouter()
	r.Post("/webhook/stripe", h.handleStripeWebhook)

	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(opts.Session))
		r.Get("/access", h.handleAccess)
		r.Get("/status", h.handleStatus)
		r.Get("/resync", h.handleResync)
		r.Post("/trial", h.handleActivateTrial)
		r.Post("/checkout", h.handleCheckout)
		r.Get("/portal", h.handlePortal)
	})

	return r
}

func (h *router) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("unreadable payload"))
		return
	}

	event, err := h.svc.provider.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		// A failed signature is dropped, never retried: 400 tells the
		// provider the delivery itself was unacceptable.
		h.log.WarnContext(r.Context(), "webhook signature verification failed", logger.Error(err))
		writeJSON(w, http.StatusBadRequest, errorBody("invalid signature"))
		return
	}

	if err := h.svc.HandleBillingEvent(r.Context(), event); err != nil {
		if errors.Is(err, ErrMissingMetadata) {
			writeJSON(w, http.StatusBadRequest, errorBody("missing metadata"))
			return
		}
		// Any post-verification failure surfaces as 5xx so the provider
		// retries the delivery; handlers are idempotent under replay.
		h.log.ErrorContext(r.Context(), "billing event processing failed",
			logger.EventType(string(event.Type)), logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("event processing failed"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *router) handleAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("authentication required"))
		return
	}

	can, err := h.svc.CanTakeClasses(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"canTakeClasses": can})
}

func (h *router) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("authentication required"))
		return
	}

	view, err := h.svc.StatusOverview(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *router) handleResync(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("authentication required"))
		return
	}

	result, err := h.svc.ReconcileSubscriptionStatus(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "subscription status synchronized",
		"status":    result.Status,
		"corrected": result.Corrected,
	})
}

type trialRequest struct {
	PlanID       string `json:"planId" validate:"required"`
	BillingCycle string `json:"billingCycle" validate:"required,oneof=monthly yearly"`
}

func (h *router) handleActivateTrial(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("authentication required"))
		return
	}

	var req trialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("planId and billingCycle (monthly|yearly) are required"))
		return
	}

	result, err := h.svc.ActivateTrial(r.Context(), userID, req.PlanID, BillingCycle(req.BillingCycle))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"message":     "free trial activated",
			"trialEndsAt": result.TrialEndsAt,
		})
	case errors.Is(err, ErrTrialAlreadyActive):
		body := map[string]any{
			"success": false,
			"message": "your free trial is already active",
		}
		if result != nil {
			body["trialEndsAt"] = result.TrialEndsAt
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.Is(err, ErrTrialAlreadyUsed):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "your free trial has already been used",
		})
	default:
		h.writeError(w, r, err)
	}
}

type checkoutRequest struct {
	PlanID       string `json:"planId" validate:"required"`
	BillingCycle string `json:"billingCycle" validate:"required,oneof=monthly yearly"`
}

func (h *router) handleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("authentication required"))
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("planId and billingCycle (monthly|yearly) are required"))
		return
	}

	sess, err := h.svc.CreateCheckout(r.Context(), userID, req.PlanID, BillingCycle(req.BillingCycle))
	if errors.Is(err, ErrPlanNotFound) {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown plan or billing cycle"))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"checkoutUrl": sess.URL,
		"sessionId":   sess.ID,
	})
}

func (h *router) handlePortal(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("authentication required"))
		return
	}

	url, err := h.svc.CustomerPortalLink(r.Context(), userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		writeJSON(w, http.StatusBadRequest, errorBody("no billing account yet"))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"portalUrl": url})
}

// writeError maps service errors to transport codes. Infrastructure failures
// produce a generic message so internals never leak; access-gating callers
// treat them as no access.
func (h *router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("user not found"))
	case errors.Is(err, ErrUpstreamBilling):
		h.log.ErrorContext(r.Context(), "billing provider request failed", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("billing provider unavailable, try again later"))
	default:
		h.log.ErrorContext(r.Context(), "billing request failed", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("something went wrong, try again later"))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
