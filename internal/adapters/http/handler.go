package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"github.com/PabloGalante/msgboard/internal/app/board"
	"github.com/PabloGalante/msgboard/internal/domain"
	"github.com/PabloGalante/msgboard/internal/observability"
)

const (
	serviceName = "message-board-api"

	// maxBodyBytes leaves room for 500 multi-byte characters plus JSON framing.
	maxBodyBytes = 16 << 10

	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

type Options struct {
	BasePath       string
	AllowedOrigins []string
	Backend        string
	Version        string
}

type Server struct {
	svc  *board.Service
	opts Options
	now  func() time.Time
}

func NewServer(svc *board.Service, opts Options) http.Handler {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{svc: svc, opts: opts, now: time.Now}

	r := mux.NewRouter()
	api := r
	if opts.BasePath != "" {
		// The bare prefix is the root too, with or without the trailing slash.
		r.HandleFunc(opts.BasePath, s.handleRoot).Methods(http.MethodGet)
		api = r.PathPrefix(opts.BasePath).Subrouter()
	}

	api.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	api.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/api/messages", s.handleListMessages).Methods(http.MethodGet)
	api.HandleFunc("/api/messages", s.handleCreateMessage).Methods(http.MethodPost)
	api.HandleFunc("/api/messages/{id}", s.handleDeleteMessage).Methods(http.MethodDelete)

	// Wrong methods on known paths are reported like unknown routes.
	for _, router := range lo.Uniq([]*mux.Router{r, api}) {
		router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
		router.MethodNotAllowedHandler = http.HandlerFunc(s.handleNotFound)
	}

	return chainMiddlewares(r,
		withCORS(opts.AllowedOrigins),
		withRecovery,
		withLogging,
		withRequestID,
	)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type messageResponse struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type deleteMessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

type rootResponse struct {
	Service   string   `json:"service"`
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Storage   string   `json:"storage"`
	Timestamp string   `json:"timestamp"`
	Endpoints []string `json:"endpoints"`
}

type healthDatabase struct {
	Connected    bool   `json:"connected"`
	PingMs       *int64 `json:"pingMs,omitempty"`
	MessageCount *int64 `json:"messageCount,omitempty"`
	Error        string `json:"error,omitempty"`
}

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Database  healthDatabase `json:"database"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Reference string `json:"reference,omitempty"`
}

type notFoundResponse struct {
	Error              string   `json:"error"`
	Message            string   `json:"message"`
	AvailableEndpoints []string `json:"availableEndpoints"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Service:   serviceName,
		Status:    "running",
		Version:   s.opts.Version,
		Storage:   s.opts.Backend,
		Timestamp: s.now().UTC().Format(isoMillis),
		Endpoints: s.endpoints(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ts := s.now().UTC().Format(isoMillis)

	health, err := s.svc.Health(r.Context())
	if err != nil {
		observability.LoggerFromContext(r.Context()).Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "unhealthy",
			Timestamp: ts,
			Database:  healthDatabase{Connected: false, Error: healthError(err)},
		})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: ts,
		Database: healthDatabase{
			Connected:    health.Connected,
			PingMs:       lo.ToPtr(health.PingMs),
			MessageCount: lo.ToPtr(health.MessageCount),
		},
	})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.svc.ListMessages(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessagesResponse(msgs))
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req board.CreateMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	msg, err := s.svc.PostMessage(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id := domain.MessageID(mux.Vars(r)["id"])

	if err := s.svc.DeleteMessage(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteMessageResponse{
		Success: true,
		Message: "Message deleted",
		ID:      string(id),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, notFoundResponse{
		Error:              "Not Found",
		Message:            "Route " + r.Method + " " + r.URL.Path + " not found",
		AvailableEndpoints: s.endpoints(),
	})
}

func (s *Server) endpoints() []string {
	p := s.opts.BasePath
	return []string{
		"GET " + p + "/",
		"GET " + p + "/api/health",
		"GET " + p + "/api/messages",
		"POST " + p + "/api/messages",
		"DELETE " + p + "/api/messages/:id",
	}
}

// ─────────────────────────────────────────────
// Conversion Helpers
// ─────────────────────────────────────────────

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:        string(m.ID),
		Text:      m.Text,
		Timestamp: m.Timestamp.UTC().Format(isoMillis),
	}
}

func toMessagesResponse(msgs []*domain.Message) []messageResponse {
	return lo.Map(msgs, func(m *domain.Message, _ int) messageResponse {
		return toMessageResponse(m)
	})
}

func healthError(err error) string {
	if errors.Is(err, domain.ErrConfigurationMissing) {
		return "database not configured"
	}
	return "database unavailable"
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

var errInvalidBody = errors.New("request body must be a JSON object with a string text field")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &typeErr) && typeErr.Field == "text":
			return errors.New("text must be a string")
		case errors.As(err, &maxErr):
			return errors.New("request body too large")
		case errors.Is(err, io.EOF):
			return errors.New("request body is required")
		default:
			return errInvalidBody
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps store and validation errors to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		badRequest(w, ve.Message)
	case errors.Is(err, domain.ErrValidation):
		badRequest(w, "invalid request")
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error:   "Not Found",
			Message: "Message not found",
		})
	case errors.Is(err, domain.ErrConfigurationMissing):
		serviceUnavailable(w, "Database is not configured")
	case errors.Is(err, domain.ErrStoreUnavailable):
		serviceUnavailable(w, "Database is temporarily unavailable, please retry later")
	default:
		internalError(w, r, err)
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:   "Bad Request",
		Message: msg,
	})
}

func serviceUnavailable(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{
		Error:   "Service Unavailable",
		Message: msg,
	})
}

// internalError never echoes err to the client. The reference ties the response to
// the log line.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	ref := uuid.NewString()
	observability.LoggerFromContext(r.Context()).Error("internal server error",
		"reference", ref,
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:     "Internal Server Error",
		Message:   "An unexpected error occurred",
		Reference: ref,
	})
}
