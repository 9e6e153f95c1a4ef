package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recipebook"

// PrometheusRecorder exports metrics through a dedicated registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	usersCreated       *prometheus.CounterVec
	authFailures       *prometheus.CounterVec
	recipesCreated     prometheus.Counter
	recipesUpdated     *prometheus.CounterVec
	recipesDeleted     prometheus.Counter
	imageUploads       *prometheus.CounterVec
	recipeListDuration prometheus.Histogram
}

// NewPrometheus registers all collectors on a fresh registry,
// together with the Go runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		usersCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_created_total",
			Help:      "Total number of user accounts created",
		}, []string{"kind"}),
		authFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Total number of failed authentication attempts",
		}, []string{"reason"}),
		recipesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recipes_created_total",
			Help:      "Total number of recipes created",
		}),
		recipesUpdated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recipes_updated_total",
			Help:      "Total number of recipe updates",
		}, []string{"mode"}),
		recipesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recipes_deleted_total",
			Help:      "Total number of recipes deleted",
		}),
		imageUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_uploads_total",
			Help:      "Total number of recipe image uploads",
		}, []string{"status"}),
		recipeListDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recipe_list_duration_seconds",
			Help:      "Duration of recipe list queries",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// IncUserCreated increments the users created counter.
func (p *PrometheusRecorder) IncUserCreated(kind string) {
	p.usersCreated.WithLabelValues(kind).Inc()
}

// IncAuthFailure increments the auth failure counter.
func (p *PrometheusRecorder) IncAuthFailure(reason string) {
	p.authFailures.WithLabelValues(reason).Inc()
}

// IncRecipeCreated increments the recipe created counter.
func (p *PrometheusRecorder) IncRecipeCreated() {
	p.recipesCreated.Inc()
}

// IncRecipeUpdated increments the recipe updated counter.
func (p *PrometheusRecorder) IncRecipeUpdated(mode string) {
	p.recipesUpdated.WithLabelValues(mode).Inc()
}

// IncRecipeDeleted increments the recipe deleted counter.
func (p *PrometheusRecorder) IncRecipeDeleted() {
	p.recipesDeleted.Inc()
}

// IncImageUpload increments the image upload counter.
func (p *PrometheusRecorder) IncImageUpload(status string) {
	p.imageUploads.WithLabelValues(status).Inc()
}

// ObserveRecipeListDuration records a recipe list duration.
func (p *PrometheusRecorder) ObserveRecipeListDuration(duration time.Duration) {
	p.recipeListDuration.Observe(duration.Seconds())
}
