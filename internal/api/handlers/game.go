package handlers

import (
	"errors"
	"strconv"

	"github.com/GabrielChurchill/YudokuChallenge/internal/models"
	"github.com/GabrielChurchill/YudokuChallenge/internal/repository"
	"github.com/GabrielChurchill/YudokuChallenge/internal/service"
	ws "github.com/GabrielChurchill/YudokuChallenge/internal/websocket"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

// GameHandler handles HTTP requests for the sudoku game
type GameHandler struct {
	service   *service.GameService
	hub       *ws.Hub
	validator *validator.Validate
}

// NewGameHandler creates a new game handler
func NewGameHandler(svc *service.GameService, hub *ws.Hub) *GameHandler {
	return &GameHandler{
		service:   svc,
		hub:       hub,
		validator: validator.New(),
	}
}

// ListPuzzles handles GET /api/puzzles. Solutions never appear here.
func (h *GameHandler) ListPuzzles(c *fiber.Ctx) error {
	puzzles, err := h.service.ListPuzzles(c.Context())
	if err != nil {
		return h.fail(c, "Failed to fetch puzzles", err)
	}
	return c.Status(fiber.StatusOK).JSON(puzzles)
}

// StartRun handles POST /api/runs/start
func (h *GameHandler) StartRun(c *fiber.Ctx) error {
	var req models.StartRunRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
	}

	resp, err := h.service.StartRun(c.Context(), req)
	if err != nil {
		return h.fail(c, "Failed to start run", err)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// SubmitRun handles POST /api/runs/submit
func (h *GameHandler) SubmitRun(c *fiber.Ctx) error {
	var req models.SubmitRunRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
	}

	resp, err := h.service.SubmitRun(c.Context(), req)
	if err != nil {
		return h.fail(c, "Failed to submit run", err)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// ValidateCell handles POST /api/validate
func (h *GameHandler) ValidateCell(c *fiber.Ctx) error {
	var req models.ValidateCellRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
	}

	resp, err := h.service.ValidateCell(c.Context(), req)
	if err != nil {
		return h.fail(c, "Validation failed", err)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// GetLeaderboard handles GET /api/leaderboard
func (h *GameHandler) GetLeaderboard(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "0"))
	if err != nil || limit < 0 {
		limit = 0
	}

	entries, err := h.service.GetLeaderboard(c.Context(), limit)
	if err != nil {
		return h.fail(c, "Failed to retrieve leaderboard", err)
	}
	return c.Status(fiber.StatusOK).JSON(entries)
}

// Reset handles POST /api/admin/reset
func (h *GameHandler) Reset(c *fiber.Ctx) error {
	if err := h.service.Reset(c.Context()); err != nil {
		return h.fail(c, "Failed to reset leaderboard", err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

// Stats handles GET /api/admin/stats
func (h *GameHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.GetStats(c.Context())
	if err != nil {
		return h.fail(c, "Failed to fetch stats", err)
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}

// HealthCheck handles GET /api/health
func (h *GameHandler) HealthCheck(c *fiber.Ctx) error {
	if err := h.service.HealthCheck(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error:   "Health check failed",
			Message: err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "healthy",
		"viewers": h.hub.GetClientCount(),
	})
}

// HandleWebSocket serves the live leaderboard channel.
func (h *GameHandler) HandleWebSocket(conn *fiberws.Conn) {
	ws.ServeWS(h.hub, conn)
}

// fail maps the error taxonomy onto HTTP statuses.
func (h *GameHandler) fail(c *fiber.Ctx, msg string, err error) error {
	var verr *service.ValidationError
	status := fiber.StatusInternalServerError
	switch {
	case errors.As(err, &verr):
		status = fiber.StatusBadRequest
	case errors.Is(err, repository.ErrRunNotFound), errors.Is(err, repository.ErrPuzzleNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, service.ErrRunAlreadyCompleted):
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(models.ErrorResponse{
		Error:   msg,
		Message: err.Error(),
	})
}
