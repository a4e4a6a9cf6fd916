package dispatch

import (
	"fmt"

	"homecare-booking/logger"
	dispatchModel "homecare-booking/models/dispatch"
	dispatchService "homecare-booking/services/dispatch"
	"homecare-booking/types"
	dispatchTypes "homecare-booking/types/dispatch"
	"homecare-booking/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// DispatchController handles worker dispatch HTTP requests
type DispatchController struct {
	DB     *gorm.DB
	Engine *dispatchService.Engine
	Logger *logger.AsyncLogger
}

// NewDispatchController creates a new dispatch controller
func NewDispatchController(db *gorm.DB, engine *dispatchService.Engine, asyncLogger *logger.AsyncLogger) *DispatchController {
	return &DispatchController{
		DB:     db,
		Engine: engine,
		Logger: asyncLogger,
	}
}

func (dc *DispatchController) sendResponseWithLog(c *fiber.Ctx, status int, response types.ApiResponse) error {
	result := c.Status(status).JSON(response)
	dc.Logger.Log(utils.CreateSanitizedLogEntry(c))
	return result
}

// Dispatch assigns or broadcasts a booking to eligible workers.
func (dc *DispatchController) Dispatch(c *fiber.Ctx) error {
	var req dispatchTypes.DispatchRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return dc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
			Data:    nil,
		})
	}
	if err := req.Validate(); err != nil {
		return dc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: err.Error(),
			Data:    nil,
		})
	}

	result, err := dc.Engine.Dispatch(req.BookingRef)
	if err != nil {
		kind := types.KindOf(err)
		if kind == types.ErrKindDispatchExhausted {
			// Non-fatal: the booking stays unassigned for manual follow-up.
			return dc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
				Status:  fiber.StatusOK,
				Kind:    kind,
				Message: fmt.Sprintf("No worker available: %s", err.Error()),
				Data:    nil,
			})
		}
		if kind != "" {
			status := types.HTTPStatusFor(kind)
			return dc.sendResponseWithLog(c, status, types.ApiResponse{
				Status:  status,
				Kind:    kind,
				Message: err.Error(),
				Data:    nil,
			})
		}
		logger.Error("Dispatch failed", err)
		return dc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Internal server error",
			Data:    nil,
		})
	}

	return dc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Dispatch completed",
		Data:    result,
	})
}

// Respond records a worker's accepted/declined answer to a job offer. A
// lost acceptance race surfaces as a conflict, not a crash.
func (dc *DispatchController) Respond(c *fiber.Ctx) error {
	var req dispatchTypes.RespondRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return dc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
			Data:    nil,
		})
	}
	if err := req.Validate(); err != nil {
		return dc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: err.Error(),
			Data:    nil,
		})
	}

	result, err := dc.Engine.Respond(req.NotificationID, dispatchModel.Response(req.Response), utils.ActorFromContext(c))
	if err != nil {
		kind := types.KindOf(err)
		if kind == types.ErrKindStateConflict {
			return dc.sendResponseWithLog(c, fiber.StatusConflict, types.ApiResponse{
				Status:  fiber.StatusConflict,
				Kind:    kind,
				Message: "This job is no longer available",
				Data:    nil,
			})
		}
		if kind != "" {
			status := types.HTTPStatusFor(kind)
			return dc.sendResponseWithLog(c, status, types.ApiResponse{
				Status:  status,
				Kind:    kind,
				Message: err.Error(),
				Data:    nil,
			})
		}
		logger.Error("Failed to record dispatch response", err)
		return dc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Internal server error",
			Data:    nil,
		})
	}

	message := "Response recorded"
	if result.Won {
		message = "Job accepted, booking bound"
	}
	return dc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: message,
		Data:    result,
	})
}
