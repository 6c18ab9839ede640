package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orro3790/drive-sub008/api/controllers"
	"github.com/orro3790/drive-sub008/api/middleware"
	"github.com/orro3790/drive-sub008/internal/notifications"
	"github.com/orro3790/drive-sub008/pkg/config"
	"github.com/orro3790/drive-sub008/pkg/enums"
	"github.com/orro3790/drive-sub008/pkg/logger"
	pkgredis "github.com/orro3790/drive-sub008/pkg/redis"
)

// Params carries everything the HTTP surface is wired to. Nil pingers and a
// nil idempotency store are tolerated.
type Params struct {
	Config        *config.Config
	Logger        *logger.Logger
	Gatherer      prometheus.Gatherer
	DB            controllers.Pinger
	Redis         controllers.Pinger
	Idempotency   pkgredis.IdempotencyStore
	BidWindows    controllers.BidWindowService
	Resolver      controllers.WindowResolver
	Assign        controllers.AssignService
	Lifecycle     controllers.LifecycleService
	Eligibility   controllers.EligibilityService
	NoShows       controllers.NoShowService
	Notifications notifications.Service
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, map[string]controllers.Pinger{
			"db":    p.DB,
			"redis": p.Redis,
		}))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	dispatchOnly := middleware.RequireRole(logg, enums.UserRoleManager, enums.UserRoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))
		r.Use(middleware.Idempotency(p.Idempotency, cfg.Idempotency.TTL, logg))

		r.Route("/bid-windows", func(r chi.Router) {
			r.Get("/", controllers.ListOpenWindows(p.BidWindows, logg))
			r.Post("/{bidWindowId}/bids", controllers.SubmitBid(p.BidWindows, logg))
			r.Post("/{bidWindowId}/accept", controllers.AcceptBidWindow(p.Assign, logg))
			r.With(dispatchOnly).Post("/{bidWindowId}/resolve", controllers.ResolveBidWindow(p.Resolver, logg))
		})

		r.Route("/assignments/{assignmentId}", func(r chi.Router) {
			r.With(dispatchOnly).Post("/bid-windows", controllers.CreateBidWindow(p.BidWindows, logg))
			r.With(dispatchOnly).Post("/assign", controllers.ManagerAssign(p.Assign, logg))
			r.Post("/confirm", controllers.ConfirmAssignment(p.Lifecycle, logg))
			r.Post("/arrive", controllers.ArriveAssignment(p.Lifecycle, logg))
			r.Post("/complete", controllers.CompleteAssignment(p.Lifecycle, logg))
			r.Post("/cancel", controllers.CancelAssignment(p.Lifecycle, logg))
		})

		r.Get("/drivers/{driverId}/eligibility", controllers.DriverEligibility(p.Eligibility, logg))

		r.With(dispatchOnly).Post("/no-shows/detect", controllers.DetectNoShows(p.NoShows, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
		})
	})

	return r
}
