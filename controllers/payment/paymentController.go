package payment

import (
	"fmt"

	"homecare-booking/logger"
	bookingModel "homecare-booking/models/booking"
	"homecare-booking/services/bookingstate"
	"homecare-booking/services/payments"
	"homecare-booking/types"
	paymentTypes "homecare-booking/types/payment"
	"homecare-booking/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PaymentController handles payment intent creation and gateway callbacks
type PaymentController struct {
	DB      *gorm.DB
	State   *bookingstate.Service
	Adapter *payments.Adapter
	Logger  *logger.AsyncLogger
}

// NewPaymentController creates a new payment controller
func NewPaymentController(db *gorm.DB, state *bookingstate.Service, adapter *payments.Adapter, asyncLogger *logger.AsyncLogger) *PaymentController {
	return &PaymentController{
		DB:      db,
		State:   state,
		Adapter: adapter,
		Logger:  asyncLogger,
	}
}

func (pc *PaymentController) sendResponseWithLog(c *fiber.Ctx, status int, response types.ApiResponse) error {
	result := c.Status(status).JSON(response)
	pc.Logger.Log(utils.CreateSanitizedLogEntry(c))
	return result
}

func (pc *PaymentController) sendDomainError(c *fiber.Ctx, err error) error {
	kind := types.KindOf(err)
	if kind == "" {
		logger.Error("Unexpected error in payment controller", err)
		return pc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Internal server error",
			Data:    nil,
		})
	}

	status := types.HTTPStatusFor(kind)
	message := err.Error()
	if kind == types.ErrKindGateway {
		logger.Error("Gateway error", err)
		message = "payment was not completed"
	}
	return pc.sendResponseWithLog(c, status, types.ApiResponse{
		Status:  status,
		Kind:    kind,
		Message: message,
		Data:    nil,
	})
}

// CreateIntent initiates a payment attempt: places the gateway hold and
// stores the resulting ref on the booking.
func (pc *PaymentController) CreateIntent(c *fiber.Ctx) error {
	var req paymentTypes.CreateIntentRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return pc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
			Data:    nil,
		})
	}
	if err := req.Validate(); err != nil {
		return pc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: err.Error(),
			Data:    nil,
		})
	}

	booking, err := pc.State.ByReference(req.BookingRef)
	if err != nil {
		return pc.sendDomainError(c, err)
	}

	// Retried creates reuse the booking reference as the idempotency key,
	// so the gateway returns the same intent instead of a second hold.
	gatewayRef, err := pc.Adapter.Authorize(booking.TotalAmount, customerRefOf(booking), booking.Reference)
	if err != nil {
		return pc.sendDomainError(c, err)
	}

	booking, err = pc.State.AttachPaymentRef(booking.Reference, gatewayRef)
	if err != nil {
		return pc.sendDomainError(c, err)
	}

	logger.Success(fmt.Sprintf("Payment intent %s created for booking %s", gatewayRef, booking.Reference))
	return pc.sendResponseWithLog(c, fiber.StatusCreated, types.ApiResponse{
		Status:  fiber.StatusCreated,
		Message: "Payment intent created",
		Data: map[string]interface{}{
			"booking_ref":         booking.Reference,
			"gateway_payment_ref": gatewayRef,
			"amount":              booking.TotalAmount,
		},
	})
}

// AuthorizationCallback records a gateway authorization confirmation. The
// gateway may deliver the same callback twice; the second call observes the
// confirmed state and no-ops.
func (pc *PaymentController) AuthorizationCallback(c *fiber.Ctx) error {
	var req paymentTypes.AuthorizationCallbackRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return pc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
			Data:    nil,
		})
	}
	if err := req.Validate(); err != nil {
		return pc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: err.Error(),
			Data:    nil,
		})
	}

	booking, err := pc.State.RecordAuthorization(req.BookingRef, req.GatewayPaymentRef, req.Amount)
	if err != nil {
		return pc.sendDomainError(c, err)
	}

	return pc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Authorization recorded",
		Data:    booking,
	})
}

// Capture drives the gateway capture and records the result. Fails with a
// state conflict for a booking that was never authorized; no money moves.
func (pc *PaymentController) Capture(c *fiber.Ctx) error {
	var req paymentTypes.CaptureCallbackRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return pc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
			Data:    nil,
		})
	}
	if err := req.Validate(); err != nil {
		return pc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: err.Error(),
			Data:    nil,
		})
	}

	booking, err := pc.State.ByReference(req.BookingRef)
	if err != nil {
		return pc.sendDomainError(c, err)
	}
	if booking.PaymentStatus != bookingModel.PaymentStatusAuthorized ||
		booking.GatewayPaymentRef == nil || *booking.GatewayPaymentRef != req.GatewayPaymentRef {
		return pc.sendDomainError(c, types.NewStateConflict("no matching authorized payment for capture"))
	}

	status, err := pc.Adapter.Capture(req.GatewayPaymentRef)
	if err != nil {
		return pc.sendDomainError(c, err)
	}
	if status != bookingModel.PaymentStatusPaid {
		return pc.sendDomainError(c, types.NewGatewayError(fmt.Sprintf("capture ended with status %s", status), nil))
	}

	booking, err = pc.State.RecordCapture(req.BookingRef, req.GatewayPaymentRef)
	if err != nil {
		return pc.sendDomainError(c, err)
	}

	return pc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Capture recorded",
		Data:    booking,
	})
}

// CaptureCallback records a capture the gateway performed on its side.
func (pc *PaymentController) CaptureCallback(c *fiber.Ctx) error {
	var req paymentTypes.CaptureCallbackRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return pc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
			Data:    nil,
		})
	}
	if err := req.Validate(); err != nil {
		return pc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: err.Error(),
			Data:    nil,
		})
	}

	booking, err := pc.State.RecordCapture(req.BookingRef, req.GatewayPaymentRef)
	if err != nil {
		return pc.sendDomainError(c, err)
	}

	return pc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Capture recorded",
		Data:    booking,
	})
}

func customerRefOf(b *bookingModel.Booking) string {
	if b.CustomerID != nil {
		return fmt.Sprintf("customer-%d", *b.CustomerID)
	}
	if b.GuestEmail != nil {
		return "guest-" + *b.GuestEmail
	}
	return "guest"
}
