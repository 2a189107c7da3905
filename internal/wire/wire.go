package wire

import (
	"net/http"

	"trip-booking/internal/adaptor"
	"trip-booking/internal/data/repository"
	"trip-booking/internal/inventory"
	"trip-booking/internal/lockstore"
	"trip-booking/internal/queue"
	"trip-booking/internal/usecase"
	"trip-booking/pkg/clock"
	"trip-booking/pkg/gateway"
	"trip-booking/pkg/middleware"
	"trip-booking/pkg/pricing"
	"trip-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App holds the wired application.
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring initializes every dependency. rdb is only required when the
// configured lock backend is "redis"; pub may be nil when no queue is
// configured.
func Wiring(repo *repository.Repository, rdb *redis.Client, pub *queue.Publisher, config *utils.Config, logger *zap.Logger) *App {
	clk := clock.System{}

	var store lockstore.Store
	switch config.Lock.Backend {
	case "redis":
		store = lockstore.NewRedisStore(rdb, logger)
	default:
		store = lockstore.NewMemoryStore(clk)
	}
	logger.Info("Seat lock store initialized", zap.String("backend", config.Lock.Backend))

	inv := inventory.NewService(store, clk, logger)
	pricer := pricing.FlatPricer{PerSeat: config.Pricing.PerSeat}
	gw := gateway.NewSandbox()

	bookingSrv := usecase.NewBookingService(repo, inv, pricer, pub, clk, logger)
	paymentSrv := usecase.NewPaymentService(repo, bookingSrv, inv, gw, clk, logger)

	service := &usecase.Service{
		Booking:    bookingSrv,
		Payment:    paymentSrv,
		Scheduler:  usecase.NewScheduler(repo, inv, bookingSrv, clk, config.Scheduler.Interval, logger),
		Reconciler: usecase.NewReconciler(repo, paymentSrv, gw, clk, config.Gateway, logger),
	}

	handler := adaptor.NewHandler(service, inv, logger)

	router := setupRouter(handler, logger)

	return &App{
		Router:  router,
		Service: service,
	}
}

// setupRouter configures the Chi router
func setupRouter(handler *adaptor.Handler, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS())

	// Apply routes
	wireSeat(r, handler.Seat)
	wireBooking(r, handler.Booking)
	wirePayment(r, handler.Payment)
	wireAdmin(r, handler.Admin)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
