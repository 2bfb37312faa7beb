// Package http exposes registered operations over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/subroutine/adapters/metrics"
	"github.com/artpar/subroutine/core/auth"
	"github.com/artpar/subroutine/core/params"
	"github.com/artpar/subroutine/core/record"
	"github.com/artpar/subroutine/core/registry"
	"github.com/artpar/subroutine/core/runtime"
	"github.com/artpar/subroutine/core/typecast"
	"github.com/artpar/subroutine/pkg/jsonapi"
	"github.com/artpar/subroutine/ports"
)

// maxBodyBytes limits submission bodies.
const maxBodyBytes = 10 << 20

// Executor runs named operations.
type Executor interface {
	Execute(ctx context.Context, name string, input runtime.Input) (runtime.Result, error)
}

// TokenVerifier resolves a bearer token to the current user ID.
type TokenVerifier interface {
	CurrentUser(token string) (int64, error)
}

// Catalog lists registered operations.
type Catalog interface {
	List() []registry.Entry
}

// OperationHandler submits operations named in the URL.
type OperationHandler struct {
	exec    Executor
	tokens  TokenVerifier
	ids     ports.IDGenerator
	logger  zerolog.Logger
	metrics *metrics.Collector
}

// HandlerOption configures an OperationHandler.
type HandlerOption func(*OperationHandler)

// WithTokens resolves bearer tokens with v. Without it, requests carrying
// a bearer token are rejected.
func WithTokens(v TokenVerifier) HandlerOption {
	return func(h *OperationHandler) { h.tokens = v }
}

// WithIDs generates request IDs with g when the router did not assign one.
func WithIDs(g ports.IDGenerator) HandlerOption {
	return func(h *OperationHandler) { h.ids = g }
}

// WithMetrics records auth failures in m.
func WithMetrics(m *metrics.Collector) HandlerOption {
	return func(h *OperationHandler) { h.metrics = m }
}

// NewOperationHandler creates a handler submitting through exec.
func NewOperationHandler(exec Executor, logger zerolog.Logger, opts ...HandlerOption) *OperationHandler {
	h := &OperationHandler{exec: exec, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP handles POST /ops/{name}.
//
// The body is a JSON object, or a JSON:API document whose data attributes
// are the input. URL parameters other than the operation name and query
// parameters not present in the body are merged into the input.
// A valid "Authorization: Bearer <token>" header makes the token's user the
// current user.
func (h *OperationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	reqID := h.requestID(ctx)

	var user any
	if token, ok := bearerToken(r); ok {
		id, err := h.currentUser(token)
		if err != nil {
			h.authFailure("invalid_token")
			h.logger.Debug().Err(err).Str("request_id", reqID).Msg("rejected bearer token")
			jsonapi.WriteError(w, jsonapi.ErrInvalidToken(reqID))
			return
		}
		user = id
	}

	data, err := jsonapi.DecodeAttributes(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest(reqID, err.Error()))
		return
	}
	mergeURLParams(r, data)

	result, err := h.exec.Execute(ctx, name, runtime.Input{
		Data:      data,
		User:      user,
		Channel:   "http",
		RequestID: reqID,
	})
	if err != nil {
		h.writeExecuteError(w, reqID, result, err)
		return
	}

	doc := jsonapi.NewDocument().
		DataResource(jsonapi.Resource{Type: name, ID: reqID, Attributes: jsonOutputs(result.Outputs)}).
		MetaAll(result.Meta).
		Build()
	jsonapi.WriteDocument(w, http.StatusOK, doc)
}

func (h *OperationHandler) requestID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	if h.ids != nil {
		return h.ids.New()
	}
	return ""
}

func (h *OperationHandler) currentUser(token string) (int64, error) {
	if h.tokens == nil {
		return 0, errors.New("bearer tokens are not accepted")
	}
	return h.tokens.CurrentUser(token)
}

func (h *OperationHandler) authFailure(reason string) {
	if h.metrics != nil {
		h.metrics.AuthFailures.WithLabelValues(reason).Inc()
	}
}

// writeExecuteError maps an execution error to a response.
func (h *OperationHandler) writeExecuteError(w http.ResponseWriter, reqID string, result runtime.Result, err error) {
	var (
		notFound     *runtime.NotFoundError
		userType     *auth.UserTypeError
		massAssign   *params.MassAssignmentError
		unknownField *params.UnknownFieldError
		castErr      *typecast.Error
		status       interface{ Status() int }
	)

	switch {
	case errors.As(err, &notFound):
		jsonapi.WriteError(w, jsonapi.ErrOperationNotFound(notFound.Name))

	case errors.As(err, &status):
		h.authFailure("not_authorized")
		jsonapi.WriteError(w, jsonapi.ErrNotAuthorized(status.Status(), reqID, err.Error()))

	case errors.As(err, &userType):
		h.authFailure("user_type")
		jsonapi.WriteError(w, jsonapi.ErrUnsupportedUser(reqID, userType.Error()))

	case isBearer(err):
		var sink record.Errors
		jsonapi.WriteError(w, jsonapi.ErrValidations(result.Errors, record.Base, sink.FullMessage)...)

	case errors.As(err, &massAssign):
		jsonapi.WriteError(w, jsonapi.ErrInput("not_mass_assignable", massAssign.Field, massAssign.Error()))

	case errors.As(err, &unknownField):
		jsonapi.WriteError(w, jsonapi.ErrInput("unknown_field", unknownField.Field, unknownField.Error()))

	case errors.As(err, &castErr):
		jsonapi.WriteError(w, jsonapi.ErrTypeCast(castErr.Type, castErr.Error()))

	default:
		h.logger.Error().Err(err).Str("op", result.Op).Str("request_id", reqID).Msg("operation error")
		jsonapi.WriteError(w, jsonapi.ErrInternal(reqID))
	}
}

func isBearer(err error) bool {
	_, ok := record.AsBearer(err)
	return ok
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(header[7:]), true
}

// mergeURLParams adds URL and query parameters missing from data.
func mergeURLParams(r *http.Request, data map[string]any) {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key == "name" || key == "*" {
				continue
			}
			if _, ok := data[key]; !ok {
				data[key] = rctx.URLParams.Values[i]
			}
		}
	}
	for key, values := range r.URL.Query() {
		if _, ok := data[key]; !ok && len(values) > 0 {
			data[key] = values[0]
		}
	}
}

// jsonOutputs replaces output values encoding/json cannot encode with
// their printed form.
func jsonOutputs(outputs map[string]any) map[string]any {
	out := make(map[string]any, len(outputs))
	for k, v := range outputs {
		v = typecast.Unwrap(v)
		if _, err := json.Marshal(v); err != nil {
			v = fmt.Sprint(v)
		}
		out[k] = v
	}
	return out
}

// CatalogHandler lists registered operations.
type CatalogHandler struct {
	catalog Catalog
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(c Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

// ServeHTTP handles GET /ops.
func (h *CatalogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type operation struct {
		Name     string   `json:"name"`
		DataOnly bool     `json:"data_only"`
		Source   string   `json:"source,omitempty"`
		Fields   []string `json:"fields"`
		Outputs  []string `json:"outputs"`
	}

	entries := h.catalog.List()
	ops := make([]operation, 0, len(entries))
	for _, e := range entries {
		ops = append(ops, operation{
			Name:     e.Name(),
			DataOnly: e.DataOnly(),
			Source:   e.Source,
			Fields:   e.Schema.FieldNames(),
			Outputs:  outputNames(e),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"operations": ops})
}

func outputNames(e registry.Entry) []string {
	outputs := e.Schema.Outputs()
	names := make([]string, len(outputs))
	for i, o := range outputs {
		names[i] = o.Name()
	}
	return names
}

// Liveness returns a simple liveness check.
func Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics     *metrics.Collector
	Gatherer    prometheus.Gatherer // default: prometheus.DefaultGatherer
	MetricsPath string              // default: /metrics
	Catalog     Catalog             // Optional operation listing at GET /ops
	Timeout     time.Duration       // default: 60s
}

// NewRouter creates the main HTTP router.
func NewRouter(ops *OperationHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))

		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		gatherer := cfg.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/health", Liveness)

	if cfg.Catalog != nil {
		r.Method(http.MethodGet, "/ops", NewCatalogHandler(cfg.Catalog))
	}
	r.Method(http.MethodPost, "/ops/{name}", ops)
	r.Method(http.MethodPost, "/ops/{name}/{id}", ops)

	return r
}

// NewMetricsMiddleware creates middleware that records submission metrics.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/ops/") {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			op := chi.URLParam(r, "name")
			if ww.Status() == http.StatusNotFound {
				op = "unknown"
			}
			status := metrics.StatusClass(ww.Status())
			m.RequestsTotal.WithLabelValues(op, status).Inc()
			m.RequestDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
		})
	}
}

// NewLoggingMiddleware creates middleware that logs HTTP requests.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
