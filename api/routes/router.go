package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitrineapp/cart-service/api/controllers"
	cartcontrollers "github.com/vitrineapp/cart-service/api/controllers/cart"
	"github.com/vitrineapp/cart-service/api/middleware"
	"github.com/vitrineapp/cart-service/internal/carts"
	"github.com/vitrineapp/cart-service/pkg/config"
	"github.com/vitrineapp/cart-service/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	db controllers.Pinger,
	cache controllers.Pinger,
	cartService carts.Service,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, db, cache))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/", cartcontrollers.GetCart(cartService, logg))
		r.Get("/all", cartcontrollers.GetAllCarts(cartService, logg))
		r.Post("/switch", cartcontrollers.SwitchStore(cartService, logg))
		r.Get("/stores/{storeId}", cartcontrollers.GetStoreCart(cartService, logg))
		r.Get("/stores/{storeId}/count", cartcontrollers.GetStoreCount(cartService, logg))
		r.Post("/items", cartcontrollers.AddItem(cartService, logg))
		r.Delete("/items/{lineId}", cartcontrollers.RemoveItem(cartService, logg))
		r.Patch("/items/{lineId}/quantity", cartcontrollers.UpdateQuantity(cartService, logg))
		r.Patch("/items/{lineId}", cartcontrollers.UpdateItem(cartService, logg))
		r.Post("/clear", cartcontrollers.ClearCart(cartService, logg))
		r.Post("/coupon", cartcontrollers.ApplyCoupon(cartService, logg))
		r.Delete("/coupon", cartcontrollers.RemoveCoupon(cartService, logg))
		r.Post("/validate", cartcontrollers.Validate(cartService, logg))
	})

	return r
}
