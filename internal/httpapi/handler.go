package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"io"
	"net/http"
	"strconv"
	"strings"

	"qms/callboard-service/internal/models"
	"qms/callboard-service/internal/notes"
	"qms/callboard-service/internal/queue"
	"qms/callboard-service/internal/users"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type StatsRecorder interface {
	RecordCall(ctx context.Context, staffName, dayKey string) error
	Snapshot(ctx context.Context) (models.StatsSnapshot, error)
	ResetAll(ctx context.Context) error
	Today() string
}

type UserDirectory interface {
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, username, password, role string) (models.User, error)
	UpdatePassword(ctx context.Context, username, newPassword string) error
	Delete(ctx context.Context, username string) error
	FindByCredentials(ctx context.Context, username, password string) (models.User, bool, error)
}

type Services struct {
	Queue *queue.State
	Notes *notes.Store
	Stats StatsRecorder
	Users UserDirectory
}

type Options struct {
	StaticDir string
	Logger    zerolog.Logger
}

// Handler owns the board state and serves the JSON API.
type Handler struct {
	queue     *queue.State
	notes     *notes.Store
	stats     StatsRecorder
	users     UserDirectory
	gate      AdminGate
	staticDir string
	logger    zerolog.Logger
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type stateResponse struct {
	queue.View
	Note notes.GeneralNote `json:"note"`
}

type callNextRequest struct {
	StaffName     string       `json:"staffName"`
	StudentNumber ticketNumber `json:"studentNumber"`
	Gender        string       `json:"gender"`
}

type noteRequest struct {
	Note      string `json:"note"`
	StaffName string `json:"staffName"`
}

type staffNoteResponse struct {
	StaffName string `json:"staffName"`
	Note      string `json:"note"`
}

func NewHandler(services Services, gate AdminGate, options Options) *Handler {
	return &Handler{
		queue:     services.Queue,
		notes:     services.Notes,
		stats:     services.Stats,
		users:     services.Users,
		gate:      gate,
		staticDir: options.StaticDir,
		logger:    options.Logger.With().Str("component", "httpapi").Logger(),
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", expvar.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleState)
		r.Post("/next", h.handleNext)
		r.Post("/repeat", h.handleRepeat)
		r.Post("/note", h.handleNote)
		r.Post("/login", h.handleLogin)
		r.Get("/staff-note", h.handleGetStaffNote)

		r.Group(func(r chi.Router) {
			r.Use(h.gate.Require)
			r.Post("/reset", h.handleReset)
			r.Get("/users", h.handleListUsers)
			r.Post("/users", h.handleCreateUser)
			r.Put("/users/{username}/password", h.handleUpdatePassword)
			r.Delete("/users/{username}", h.handleDeleteUser)
			r.Get("/stats", h.handleStats)
			r.Post("/reset-stats", h.handleResetStats)
			r.Post("/staff-note", h.handleSetStaffNote)
		})
	})

	if h.staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(h.staticDir)))
	}
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		View: h.queue.Repeat(),
		Note: h.notes.General(),
	})
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	var req callNextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.StudentNumber.valid {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", "studentNumber must be a positive integer")
		return
	}
	ticket := req.StudentNumber.value
	if err := queue.ValidateTicket(ticket); err != nil {
		h.fail(w, r, err)
		return
	}

	staffName := strings.TrimSpace(req.StaffName)
	if err := h.stats.RecordCall(r.Context(), staffName, h.stats.Today()); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.queue.CallNext(ticket, queue.ParseGender(req.Gender))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info().
		Int("ticket", ticket).
		Str("gender", string(view.CurrentGender)).
		Str("staff", staffName).
		Msg("ticket called")
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRepeat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.Repeat())
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.queue.Reset()
	h.logger.Info().Msg("queue reset")
	writeJSON(w, http.StatusOK, h.queue.Repeat())
}

func (h *Handler) handleNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.notes.SetGeneral(req.Note, req.StaffName)
	writeJSON(w, http.StatusOK, h.notes.General())
}

func (h *Handler) handleSetStaffNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.notes.SetStaffNote(req.StaffName, req.Note); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, staffNoteResponse{
		StaffName: strings.TrimSpace(req.StaffName),
		Note:      req.Note,
	})
}

func (h *Handler) handleGetStaffNote(w http.ResponseWriter, r *http.Request) {
	staffName := r.URL.Query().Get("staffName")
	note, err := h.notes.StaffNote(staffName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, staffNoteResponse{
		StaffName: strings.TrimSpace(staffName),
		Note:      note,
	})
}

// ticketNumber accepts a JSON number or a numeric string. Anything else
// decodes without error but stays invalid, so the handler can answer with a
// validation error instead of a JSON error.
type ticketNumber struct {
	value int
	valid bool
}

func (t *ticketNumber) UnmarshalJSON(data []byte) error {
	*t = ticketNumber{}
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	t.value = value
	t.valid = true
	return nil
}

// decodeJSON treats an empty body as an empty object.
func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(target); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("request_id", requestID(r)).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, requestID(r), status, code, msg)
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, queue.ErrInvalidTicket):
		return http.StatusBadRequest, "invalid_request", "studentNumber must be a positive integer"
	case errors.Is(err, notes.ErrMissingStaff):
		return http.StatusBadRequest, "invalid_request", "staffName is required"
	case errors.Is(err, users.ErrInvalidUser):
		return http.StatusBadRequest, "invalid_request", "username and password are required"
	case errors.Is(err, users.ErrInvalidRole):
		return http.StatusBadRequest, "invalid_request", "role must be admin or staff"
	case errors.Is(err, users.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found", "user not found"
	case errors.Is(err, users.ErrUserExists):
		return http.StatusConflict, "user_exists", "username already exists"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

