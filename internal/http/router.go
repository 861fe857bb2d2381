package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/obs"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/product"
)

type RouterConfig struct {
	Documents product.DocumentRepository
	Records   product.RecordRepository

	// Publisher is optional; nil disables change events.
	Publisher events.ProductPublisher
	// PublishTimeout bounds each publish; zero means events.PublishTimeout.
	PublishTimeout time.Duration
	Logger    *slog.Logger
	// Metrics is optional; nil disables /metrics and request metrics.
	Metrics *obs.Metrics

	CORSAllowOrigins []string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = obs.Discard()
	}
	origins := cfg.CORSAllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	n := changeNotifier{pub: cfg.Publisher, logger: logger, metrics: cfg.Metrics, timeout: cfg.PublishTimeout}
	docs := NewDocumentHandler(cfg.Documents, n)
	recs := NewRecordHandler(cfg.Records, n)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger, cfg.Metrics))
	r.Use(recoverer(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/", Index)
	r.Get("/health", Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/nosql/products", func(r chi.Router) {
		r.Get("/", docs.List)
		r.Post("/", docs.Create)
		r.Get("/{id}", docs.Get)
		r.Put("/{id}", docs.Update)
		r.Delete("/{id}", docs.Delete)
	})

	r.Route("/api/sql/products", func(r chi.Router) {
		r.Get("/", recs.List)
		r.Post("/", recs.Create)
		r.Get("/{id}", recs.Get)
		r.Put("/{id}", recs.Update)
		r.Delete("/{id}", recs.Delete)
	})

	r.NotFound(routeNotFound)
	r.MethodNotAllowed(routeNotFound)

	return r
}

func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type indexEndpoint struct {
	Base    string   `json:"base"`
	Methods []string `json:"methods"`
}

type apiIndex struct {
	Message   string                   `json:"message"`
	Endpoints map[string]indexEndpoint `json:"endpoints"`
}

// Index describes the two product namespaces.
func Index(w http.ResponseWriter, r *http.Request) {
	methods := []string{"GET", "POST", "PUT", "DELETE"}
	writeJSON(w, http.StatusOK, apiIndex{
		Message: "Product Management API",
		Endpoints: map[string]indexEndpoint{
			"nosql": {Base: "/api/nosql/products", Methods: methods},
			"sql":   {Base: "/api/sql/products", Methods: methods},
		},
	})
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, http.StatusNotFound, "Route not found")
}

// parseFilter reads the category and inStock query parameters. An
// unrecognised inStock value is rejected with 400.
func parseFilter(w http.ResponseWriter, r *http.Request) (product.Filter, bool) {
	q := r.URL.Query()
	f := product.Filter{Category: q.Get("category")}
	if q.Has("inStock") {
		v, err := product.ParseInStock(q.Get("inStock"))
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "Invalid inStock filter, expected true or false")
			return product.Filter{}, false
		}
		f.InStock = v
	}
	return f, true
}
