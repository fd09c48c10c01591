package feedback

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/speaklab/backend/pkg/logger"
	"github.com/speaklab/backend/pkg/session"
)

// RouterOptions wires the feedback module's HTTP surface.
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

// Router mounts the feedback endpoints; all require a session.
func Router(opts RouterOptions) chi.Router {
	if opts.Service == nil {
		panic("feedback: Service is required")
	}
	if opts.Session == nil {
		panic("feedback: session Verifier is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	h := &router{svc: opts.Service, log: log, validate: validator.New()}

	r := chi.NewRouter()
	r.Use(session.Middleware(opts.Session))
	r.Get("/", h.handleList)
	r.Post("/", h.handleSubmit)

	return r
}

type submitRequest struct {
	InterviewID string `json:"interviewId" validate:"required"`
	Transcript  string `json:"transcript" validate:"required"`
}

func (h *router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "interviewId and transcript are required"})
		return
	}

	fb, err := h.svc.SaveClassFeedback(r.Context(), userID, req.InterviewID, req.Transcript)
	if err != nil {
		status := http.StatusInternalServerError
		msg := "something went wrong, try again later"
		if errors.Is(err, ErrScorer) {
			msg = "feedback scoring unavailable, try again later"
		}
		h.log.ErrorContext(r.Context(), "saving class feedback failed",
			logger.UserID(userID), logger.Error(err))
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

func (h *router) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	records, err := h.svc.ListForUser(r.Context(), userID, limit)
	if err != nil {
		h.log.ErrorContext(r.Context(), "listing feedback failed",
			logger.UserID(userID), logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "something went wrong, try again later"})
		return
	}
	if records == nil {
		records = []Feedback{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": records})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
