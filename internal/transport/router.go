package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/mercura/internal/command"
	"github.com/pitabwire/mercura/internal/config"
	"github.com/pitabwire/mercura/internal/metadata"
	"github.com/pitabwire/mercura/internal/observability"
	"github.com/pitabwire/mercura/internal/wizard"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config   *config.Config
	Logger   *zap.Logger
	Pages    *metadata.PageProvider
	Forms    *metadata.FormProvider
	Executor *command.Executor
	Wizard   *wizard.Engine
	Metrics  *observability.Metrics
	Ready    observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints skip the
// API middleware chain.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(Recovery(deps.Logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	r.Get("/healthz", observability.HandleHealth())
	r.Get("/readyz", observability.HandleReady(deps.Ready))
	if deps.Config.Observability.Metrics.Enabled {
		path := deps.Config.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, observability.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(observability.TracingMiddleware)
		r.Use(BuildRequestContext)
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(deps.Logger))
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}

		r.Get("/pages/{pageID}", handleGetPage(deps.Pages))
		r.Get("/pages/{pageID}/data", handleGetPageData(deps.Pages))
		r.Get("/forms/{formID}", handleGetForm(deps.Forms))
		r.Post("/forms/{formID}/submit", handleSubmitForm(deps.Executor))
		r.Post("/forms/{formID}/wizard", handleWizardStart(deps.Wizard))
		r.Get("/wizard/{sessionID}", handleWizardGet(deps.Wizard))
		r.Post("/wizard/{sessionID}/advance", handleWizardAdvance(deps.Wizard))
	})

	return r
}
