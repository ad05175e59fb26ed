package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Heesho/miner-miniapp/internal/service"
)

type MineHandler struct {
	BaseHandler
	service *service.MineService
}

func NewMineHandler(logger *slog.Logger, svc *service.MineService) *MineHandler {
	return &MineHandler{
		BaseHandler: BaseHandler{logger: logger},
		service:     svc,
	}
}

type MineRequest struct {
	Message string `json:"message"`
}

// View serves the rig state with the interpolated balance.
func (h *MineHandler) View() fiber.Handler {
	return func(c fiber.Ctx) error {
		view, err := h.service.View(context.Background())
		if err != nil {
			return h.serviceError(err, ErrInternal)
		}
		return c.JSON(view)
	}
}

// Mine submits a mine job and answers with the flow status.
func (h *MineHandler) Mine() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req MineRequest
		if err := h.bindBody(c, &req); err != nil {
			return err
		}
		if err := h.service.Mine(context.Background(), req.Message); err != nil {
			return h.serviceError(err, ErrInternal)
		}
		return c.Status(fiber.StatusAccepted).JSON(h.service.Status())
	}
}
