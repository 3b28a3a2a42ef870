// Package server assembles the HTTP handler that fronts the ledger services.
package server

import (
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/sharedledger/internal/middleware"
	"github.com/mmynk/sharedledger/internal/service"
	"github.com/mmynk/sharedledger/internal/storage"
	"github.com/mmynk/sharedledger/pkg/api/apiconnect"
)

// Options configure NewHandler.
type Options struct {
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// Clock stamps export filenames. Defaults to time.Now.
	Clock func() time.Time
}

// NewHandler wires the Connect services, the export endpoint, health and
// metrics onto a chi router. The result speaks HTTP/2 without TLS, which
// Connect's gRPC protocol needs.
func NewHandler(store storage.Store, catchUp service.CatchUpper, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	interceptors := connect.WithInterceptors(middleware.LoggingInterceptor())

	groupPath, groupHandler := apiconnect.NewGroupServiceHandler(service.NewGroupService(store, catchUp), interceptors)
	r.Handle(groupPath+"*", groupHandler)

	expensePath, expenseHandler := apiconnect.NewExpenseServiceHandler(service.NewExpenseService(store, catchUp), interceptors)
	r.Handle(expensePath+"*", expenseHandler)

	r.Method(http.MethodGet, "/groups/{groupID}/expenses/export.json", service.NewExportHandler(store, catchUp, opts.Clock))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return h2c.NewHandler(r, &http2.Server{})
}
