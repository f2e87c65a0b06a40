// Package remote evaluates encoded lambdas over HTTP.
//
//	POST /v1/eval  {"lambda": <envelope>, "args": [...]} -> {"result": ...}
//	GET  /metrics  prometheus exposition
//
// The handler is transport agnostic; Server runs it over HTTP/3.
package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orizon-lang/exprrepr/internal/astbridge"
	"github.com/orizon-lang/exprrepr/internal/codec"
	"github.com/orizon-lang/exprrepr/internal/descriptor"
	rerrors "github.com/orizon-lang/exprrepr/internal/errors"
	"github.com/orizon-lang/exprrepr/internal/metrics"
)

const (
	EvalPath    = "/v1/eval"
	MetricsPath = "/metrics"

	maxBodyBytes = 4 << 20
)

// EvalRequest is the body of POST /v1/eval.
type EvalRequest struct {
	Lambda json.RawMessage   `json:"lambda"`
	Args   []json.RawMessage `json:"args"`
}

// EvalResponse carries either a result or an error.
type EvalResponse struct {
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Category string          `json:"category,omitempty"`
	Code     string          `json:"code,omitempty"`
}

// Handler serves evaluation requests against one catalog.
type Handler struct {
	catalog  descriptor.Catalog
	codec    *codec.Codec
	logger   logr.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	maxDepth int
	mux      *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(l logr.Logger) Option { return func(h *Handler) { h.logger = l } }

// WithMaxDepth bounds the depth of rebuilt trees.
func WithMaxDepth(n int) Option { return func(h *Handler) { h.maxDepth = n } }

// WithRegistry registers the handler metrics with reg and serves reg on
// /metrics. By default the handler uses a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(h *Handler) { h.gatherer = reg }
}

// NewHandler creates a handler that decodes lambdas with c and resolves their
// descriptors through catalog.
func NewHandler(catalog descriptor.Catalog, c *codec.Codec, opts ...Option) *Handler {
	h := &Handler{
		catalog:  catalog,
		codec:    c,
		logger:   logr.Discard(),
		metrics:  metrics.New(),
		maxDepth: astbridge.DefaultMaxDepth,
		mux:      http.NewServeMux(),
	}
	for _, o := range opts {
		o(h)
	}
	reg, ok := h.gatherer.(*prometheus.Registry)
	if !ok || reg == nil {
		reg = prometheus.NewRegistry()
		h.gatherer = reg
	}
	h.metrics.MustRegister(reg)

	h.mux.HandleFunc("POST "+EvalPath, h.serveEval)
	h.mux.Handle("GET "+MetricsPath, promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.mux.ServeHTTP(w, r) }

// requestError pairs an error with the status it maps to.
type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error    { return &requestError{http.StatusBadRequest, err} }
func unprocessable(err error) error { return &requestError{http.StatusUnprocessableEntity, err} }

func (h *Handler) serveEval(w http.ResponseWriter, r *http.Request) {
	result, err := h.eval(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EvalResponse{Result: result})
}

func (h *Handler) eval(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, badRequest(fmt.Errorf("read body: %w", err))
	}
	var req EvalRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, badRequest(fmt.Errorf("decode request: %w", err))
	}
	if len(req.Lambda) == 0 {
		return nil, badRequest(errors.New("request without lambda"))
	}
	root, err := h.codec.Unmarshal(req.Lambda)
	if err != nil {
		return nil, badRequest(err)
	}

	closure, err := astbridge.FromRepresentation(root, h.catalog,
		astbridge.WithMaxDepth(h.maxDepth),
		astbridge.WithLogger(h.logger),
		astbridge.WithMetrics(h.metrics))
	if err != nil {
		return nil, unprocessable(err)
	}

	ft := closure.Lambda().Type()
	if len(req.Args) != ft.NumIn() {
		return nil, unprocessable(&rerrors.ArityMismatchError{Context: "eval arguments", Expected: ft.NumIn(), Actual: len(req.Args)})
	}
	args := make([]any, len(req.Args))
	for i, raw := range req.Args {
		v := reflect.New(ft.In(i))
		if err := json.Unmarshal(raw, v.Interface()); err != nil {
			return nil, badRequest(fmt.Errorf("argument %d as %s: %w", i, ft.In(i), err))
		}
		args[i] = v.Elem().Interface()
	}

	start := time.Now()
	out, err := closure.Call(args...)
	h.metrics.ObserveEvaluation(time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	h.logger.V(1).Info("evaluated", "lambda", root.String(), "elapsed", time.Since(start))
	res, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return res, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var re *requestError
	if errors.As(err, &re) {
		status = re.status
	}
	resp := EvalResponse{Error: err.Error()}
	var se rerrors.StandardError
	if errors.As(err, &se) {
		resp.Category, resp.Code = string(se.Category()), se.Code()
	}
	h.logger.Info("eval failed", "status", status, "error", err.Error())
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
