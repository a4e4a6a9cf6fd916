package booking

import (
	"fmt"

	"homecare-booking/logger"
	"homecare-booking/services/bookingstate"
	"homecare-booking/types"
	bookingTypes "homecare-booking/types/booking"
	"homecare-booking/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// BookingController handles booking-related HTTP requests
type BookingController struct {
	DB     *gorm.DB
	State  *bookingstate.Service
	Logger *logger.AsyncLogger
}

// NewBookingController creates a new booking controller
func NewBookingController(db *gorm.DB, state *bookingstate.Service, asyncLogger *logger.AsyncLogger) *BookingController {
	return &BookingController{
		DB:     db,
		State:  state,
		Logger: asyncLogger,
	}
}

func (bc *BookingController) sendResponseWithLog(c *fiber.Ctx, status int, response types.ApiResponse) error {
	result := c.Status(status).JSON(response)
	bc.Logger.Log(utils.CreateSanitizedLogEntry(c))
	return result
}

func (bc *BookingController) sendDomainError(c *fiber.Ctx, err error) error {
	kind := types.KindOf(err)
	if kind == "" {
		logger.Error("Unexpected error in booking controller", err)
		return bc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Internal server error",
			Data:    nil,
		})
	}

	status := types.HTTPStatusFor(kind)
	message := err.Error()
	if kind == types.ErrKindGateway {
		// The precise gateway failure stays in the logs, not on the wire.
		logger.Error("Gateway error", err)
		message = "payment was not completed"
	}

	return bc.sendResponseWithLog(c, status, types.ApiResponse{
		Status:  status,
		Kind:    kind,
		Message: message,
		Data:    nil,
	})
}

// Store creates a new booking from the intake payload.
func (bc *BookingController) Store(c *fiber.Ctx) error {
	var req bookingTypes.BookingCreateRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return bc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
			Data:    nil,
		})
	}

	booking, err := bc.State.Create(req, utils.ActorFromContext(c))
	if err != nil {
		return bc.sendDomainError(c, err)
	}

	logger.Success(fmt.Sprintf("Booking created successfully with reference: %s", booking.Reference))
	return bc.sendResponseWithLog(c, fiber.StatusCreated, types.ApiResponse{
		Status:  fiber.StatusCreated,
		Message: "Booking created successfully",
		Data:    booking,
	})
}

// GetStatus returns the combined job, payment and dispatch state view.
func (bc *BookingController) GetStatus(c *fiber.Ctx) error {
	ref := c.Params("reference")
	if ref == "" {
		return bc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Booking reference is required",
			Data:    nil,
		})
	}

	view, err := bc.State.StatusView(ref)
	if err != nil {
		return bc.sendDomainError(c, err)
	}

	return bc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Booking status retrieved successfully",
		Data:    view,
	})
}

// Cancel cancels a booking from any non-terminal state, releasing held
// funds first.
func (bc *BookingController) Cancel(c *fiber.Ctx) error {
	ref := c.Params("reference")

	var req bookingTypes.BookingCancelRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return bc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
			Data:    nil,
		})
	}
	if err := req.Validate(); err != nil {
		return bc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: err.Error(),
			Data:    nil,
		})
	}

	booking, err := bc.State.Cancel(ref, req.Reason, utils.ActorFromContext(c))
	if err != nil {
		return bc.sendDomainError(c, err)
	}

	return bc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Booking cancelled successfully",
		Data:    booking,
	})
}

// StartJob marks a confirmed booking as in progress.
func (bc *BookingController) StartJob(c *fiber.Ctx) error {
	ref := c.Params("reference")

	booking, err := bc.State.StartJob(ref, utils.ActorFromContext(c))
	if err != nil {
		return bc.sendDomainError(c, err)
	}

	return bc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Job started",
		Data:    booking,
	})
}

// CompleteJob records the service-delivery signal for a booking.
func (bc *BookingController) CompleteJob(c *fiber.Ctx) error {
	ref := c.Params("reference")

	booking, err := bc.State.CompleteJob(ref, utils.ActorFromContext(c))
	if err != nil {
		return bc.sendDomainError(c, err)
	}

	return bc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Job completed",
		Data:    booking,
	})
}
