package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soumil-kumar17/MailMaven/api/controllers"
	"github.com/soumil-kumar17/MailMaven/api/middleware"
	"github.com/soumil-kumar17/MailMaven/internal/newsletters"
	"github.com/soumil-kumar17/MailMaven/pkg/config"
	"github.com/soumil-kumar17/MailMaven/pkg/logger"
)

// Dependencies are the collaborators the HTTP surface needs.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Newsletters newsletters.Service
	Flashes     controllers.FlashReader
	Audience    controllers.Audience
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.App.CORSOrigins))
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/newsletters", controllers.PublishForm(deps.Flashes, deps.Audience, logg))
		r.Post("/newsletters", controllers.PublishNewsletter(deps.Newsletters, logg))
	})

	return r
}
