// Package admin serves the HTTP API used to trigger and observe migrations.
package admin

import (
	"context"
	"net/http"

	"github.com/clinia/indexsync/elasticx/migrate"
	"github.com/clinia/indexsync/errorx"
	"github.com/clinia/indexsync/httpx"
	"github.com/clinia/indexsync/loggerx"
	"github.com/clinia/indexsync/otelx"
	"github.com/clinia/indexsync/tracex"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const componentName = "admin.Handler"

// Runner runs and reports migrations. *migrate.Migrator implements it.
type Runner interface {
	Migrate(ctx context.Context) (*migrate.Result, error)
	Status(ctx context.Context) ([]migrate.FamilyStatus, error)
	Phase() migrate.Phase
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Phase    migrate.Phase          `json:"phase"`
	Families []migrate.FamilyStatus `json:"families"`
}

type NewHandlerOptions struct {
	Runner Runner
	// Metrics serves GET /metrics.
	Metrics http.Handler
	Logger  *loggerx.Logger
	Tracer  *otelx.Tracer
}

type handler struct {
	runner Runner
	l      *loggerx.Logger
	t      *otelx.Tracer
}

// NewHandler routes:
//
//	POST /migrations  runs a migration and answers with its result, 409 when one is in flight
//	GET  /status      reports every family
//	GET  /metrics     prometheus measurements
func NewHandler(in NewHandlerOptions) (http.Handler, error) {
	if in.Runner == nil {
		return nil, errorx.InvalidArgumentErrorf("a migration runner is required")
	}
	if in.Logger == nil {
		in.Logger = loggerx.New(loggerx.Config{})
	}
	if in.Tracer == nil {
		in.Tracer = otelx.NewNoopTracer(componentName)
	}
	if in.Metrics == nil {
		in.Metrics = otelx.NewNoopMeter().Handler()
	}

	h := &handler{runner: in.Runner, l: in.Logger, t: in.Tracer}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /migrations", h.migrate)
	mux.HandleFunc("GET /status", h.status)
	mux.Handle("GET /metrics", in.Metrics)

	return h.recoverer(mux), nil
}

func (h *handler) instrument(ctx context.Context, name string, kvs ...attribute.KeyValue) (context.Context, trace.Span, *loggerx.Logger) {
	return tracex.Instrument(ctx, h.l, h.t, componentName, name, kvs...)
}

func (h *handler) migrate(w http.ResponseWriter, r *http.Request) {
	ctx, span, l := h.instrument(r.Context(), "migrate")
	defer span.End()

	// The run outlives a client that hangs up.
	res, err := h.runner.Migrate(context.WithoutCancel(ctx))
	if res != nil {
		httpx.SetMigrationHeaders(w, res.RunID, res.Phase.String())
	}
	if err != nil {
		tracex.RecordError(span, err)
		if errorx.IsAlreadyRunningError(err) {
			l.Warn(ctx, "migration refused, another one is in flight")
		}
		h.write(ctx, l, httpx.WriteError(w, err, res))
		return
	}

	h.write(ctx, l, httpx.WriteJSON(w, http.StatusOK, res))
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	ctx, span, l := h.instrument(r.Context(), "status")
	defer span.End()

	phase := h.runner.Phase()
	httpx.SetMigrationHeaders(w, "", phase.String())

	families, err := h.runner.Status(ctx)
	if err != nil {
		tracex.RecordError(span, err)
		l.WithError(err).Error(ctx, "could not report status")
		h.write(ctx, l, httpx.WriteError(w, err, nil))
		return
	}

	h.write(ctx, l, httpx.WriteJSON(w, http.StatusOK, StatusResponse{Phase: phase, Families: families}))
}

func (h *handler) write(ctx context.Context, l *loggerx.Logger, err error) {
	if err != nil {
		l.WithError(err).Warn(ctx, "could not write response")
	}
}

func (h *handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.l.Error(r.Context(), "panic while serving admin request",
					append(tracex.StackTraceAttrs(rec), attribute.String("http.route", r.URL.Path))...,
				)
				_ = httpx.WriteError(w, errorx.InternalErrorf("internal error"), nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
