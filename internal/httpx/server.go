package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
)

const headerUserID = "X-User-Id"

func NewRouter(logger *zap.Logger, m *metrics.Metrics) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(logger), middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(instrument(m))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

// instrument records request counts and latency per route pattern.
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = r.Method + " " + rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.Request(route, status, time.Since(start))
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResp struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:   http.StatusNotFound,
	apperr.KindBadRequest: http.StatusBadRequest,
	apperr.KindForbidden:  http.StatusForbidden,
	apperr.KindConflict:   http.StatusConflict,
}

// writeError is the only place error kinds turn into status codes.
// Internal errors are logged and hidden from the client.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	code, ok := statusByKind[kind]
	if !ok {
		logger.Error("internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "internal error", Kind: kind.String()})
		return
	}
	writeJSON(w, code, errorResp{Error: err.Error(), Kind: kind.String()})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var syntax *json.SyntaxError
		if errors.As(err, &syntax) {
			return apperr.BadRequest("invalid json at offset %d", syntax.Offset)
		}
		return apperr.BadRequest("invalid json: %v", err)
	}
	return nil
}

// actor is the authenticated user forwarded by the gateway, nil for guests.
func actor(r *http.Request) *string {
	if id := r.Header.Get(headerUserID); id != "" {
		return &id
	}
	return nil
}

// requireActor rejects guests; they reach their order through the guest token.
func requireActor(r *http.Request) (*string, error) {
	if u := actor(r); u != nil {
		return u, nil
	}
	return nil, apperr.Forbidden("%s header required", headerUserID)
}
