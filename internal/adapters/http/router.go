package httpadapter

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
	"github.com/kirillkom/segment-advisor/internal/core/ports"
	"github.com/kirillkom/segment-advisor/internal/observability/metrics"
)

const maxTurnBodyBytes = 64 << 10

type Options struct {
	Service        string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	InFlightWait   time.Duration
	Metrics        *metrics.HTTPServerMetrics
}

type Router struct {
	turns    ports.TurnProcessor
	sessions ports.SessionManager
	opts     Options
}

func NewRouter(turns ports.TurnProcessor, sessions ports.SessionManager, opts Options) *Router {
	if opts.Service == "" {
		opts.Service = "api"
	}
	return &Router{
		turns:    turns,
		sessions: sessions,
		opts:     opts,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/sessions", rt.createSession)
	api.HandleFunc("GET /v1/sessions/{session_id}", rt.getSession)
	api.HandleFunc("DELETE /v1/sessions/{session_id}", rt.endSession)
	api.HandleFunc("POST /v1/sessions/{session_id}/turns", rt.processTurn)

	var onReject rejectRecorder
	if rt.opts.Metrics != nil {
		service := rt.opts.Service
		onReject = func(reason string) { rt.opts.Metrics.RecordRejected(service, reason) }
	}

	var guarded http.Handler = api
	guarded = backpressureMiddleware(guarded, rt.opts.MaxInFlight, rt.opts.InFlightWait, onReject)
	guarded = rateLimitMiddleware(guarded, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, onReject)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", rt.healthz)
	if rt.opts.Metrics != nil {
		root.Handle("GET /metrics", rt.opts.Metrics.Handler())
	}
	root.Handle("/v1/", guarded)

	var handler http.Handler = root
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	Greeting  string `json:"greeting"`
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	state, err := rt.sessions.CreateSession(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	resp := createSessionResponse{SessionID: state.SessionID}
	for _, msg := range state.History {
		if msg.Role == domain.RoleAssistant {
			resp.Greeting = msg.Content
			break
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	state, err := rt.sessions.GetSession(r.Context(), r.PathValue("session_id"))
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) endSession(w http.ResponseWriter, r *http.Request) {
	if err := rt.sessions.EndSession(r.Context(), r.PathValue("session_id")); err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) processTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxTurnBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := rt.turns.ProcessTurn(r.Context(), r.PathValue("session_id"), req.Text)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	if result.Sources == nil {
		result.Sources = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		message = http.StatusText(status)
	}
	writeError(w, status, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
