package routes

import (
	"os"
	"strconv"
	"time"

	"homecare-booking/constants"
	bookingController "homecare-booking/controllers/booking"
	dispatchController "homecare-booking/controllers/dispatch"
	paymentController "homecare-booking/controllers/payment"
	gatewayClient "homecare-booking/httpServices/gateway"
	messagingClient "homecare-booking/httpServices/messaging"
	"homecare-booking/logger"
	"homecare-booking/middleware"
	"homecare-booking/services/bookingstate"
	"homecare-booking/services/coverage"
	dispatchService "homecare-booking/services/dispatch"
	"homecare-booking/services/notify"
	"homecare-booking/services/payments"
	"homecare-booking/services/reconcile"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Services bundles the wired core so main can hand the reconciliation job
// its dependencies.
type Services struct {
	State     *bookingstate.Service
	Adapter   *payments.Adapter
	Reconcile *reconcile.Job
}

// SetupRoutes wires the service graph and registers all route groups.
func SetupRoutes(app *fiber.App, db *gorm.DB) *Services {
	asyncLogger := logger.NewAsyncLogger(db)

	gw := gatewayClient.NewClient(os.Getenv("GATEWAY_BASE_URL"), os.Getenv("GATEWAY_API_KEY"))
	msg := messagingClient.NewClient(os.Getenv("MESSAGING_BASE_URL"))

	adapter := payments.NewAdapter(gw, os.Getenv("PAYMENT_CURRENCY"))
	state := bookingstate.NewService(db, adapter, graceFromEnv())
	resolver := coverage.NewService(db)
	notifier := notify.NewService(db, msg)
	engine := dispatchService.NewEngine(db, resolver, notifier)
	reconcileJob := reconcile.NewJob(db, state, adapter, reconcileIntervalFromEnv())

	bookingCtrl := bookingController.NewBookingController(db, state, asyncLogger)
	dispatchCtrl := dispatchController.NewDispatchController(db, engine, asyncLogger)
	paymentCtrl := paymentController.NewPaymentController(db, state, adapter, asyncLogger)

	// Start the async logger processing goroutine
	go asyncLogger.ProcessLog()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	/*=============================================================================
	| Booking Routes
	===============================================================================*/
	bookingGroup := api.Group("/booking")

	bookingGroup.Post("/create", middleware.RequirePermissions(
		constants.PermOperatorFull,
		constants.PermCustomerFull,
	), bookingCtrl.Store)

	bookingGroup.Get("/:reference", middleware.RequireAnyPermission(), bookingCtrl.GetStatus)

	bookingGroup.Post("/:reference/cancel", middleware.RequirePermissions(
		constants.PermOperatorFull,
		constants.PermCustomerFull,
	), bookingCtrl.Cancel)

	bookingGroup.Post("/:reference/start", middleware.RequirePermissions(
		constants.PermWorkerFull,
	), bookingCtrl.StartJob)

	bookingGroup.Post("/:reference/complete", middleware.RequirePermissions(
		constants.PermWorkerFull,
		constants.PermDispatcherFull,
	), bookingCtrl.CompleteJob)

	/*=============================================================================
	| Dispatch Routes
	===============================================================================*/
	dispatchGroup := api.Group("/dispatch")

	dispatchGroup.Post("/run", middleware.RequirePermissions(
		constants.PermDispatcherFull,
		constants.PermOperatorFull,
	), dispatchCtrl.Dispatch)

	dispatchGroup.Post("/respond", middleware.RequirePermissions(
		constants.PermWorkerFull,
	), dispatchCtrl.Respond)

	/*=============================================================================
	| Payment Routes
	===============================================================================*/
	paymentGroup := api.Group("/payment")

	paymentGroup.Post("/intent", middleware.RequirePermissions(
		constants.PermOperatorFull,
		constants.PermCustomerFull,
	), paymentCtrl.CreateIntent)

	paymentGroup.Post("/capture", middleware.RequirePermissions(
		constants.PermOperatorFull,
	), paymentCtrl.Capture)

	// Gateway callbacks are authenticated by the processor's shared secret,
	// delivered outside the user token scheme.
	callbackGroup := api.Group("/payment/callback")
	callbackGroup.Post("/authorized", paymentCtrl.AuthorizationCallback)
	callbackGroup.Post("/captured", paymentCtrl.CaptureCallback)

	return &Services{State: state, Adapter: adapter, Reconcile: reconcileJob}
}

func graceFromEnv() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("BOOKING_GRACE_HOURS"))
	if err != nil || hours <= 0 {
		return bookingstate.DefaultGracePeriod
	}
	return time.Duration(hours) * time.Hour
}

func reconcileIntervalFromEnv() time.Duration {
	minutes, err := strconv.Atoi(os.Getenv("RECONCILE_INTERVAL_MIN"))
	if err != nil || minutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(minutes) * time.Minute
}
