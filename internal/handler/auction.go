package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Heesho/miner-miniapp/internal/service"
)

type AuctionHandler struct {
	BaseHandler
	service *service.AuctionService
}

func NewAuctionHandler(logger *slog.Logger, svc *service.AuctionService) *AuctionHandler {
	return &AuctionHandler{
		BaseHandler: BaseHandler{logger: logger},
		service:     svc,
	}
}

type AmountRequest struct {
	Amount string `query:"amount" json:"amount"`
}

func (h *AuctionHandler) View() fiber.Handler {
	return func(c fiber.Ctx) error {
		view, err := h.service.View(context.Background())
		if err != nil {
			return h.serviceError(err, ErrInternal)
		}
		return c.JSON(view)
	}
}

func (h *AuctionHandler) Buy() fiber.Handler {
	return func(c fiber.Ctx) error {
		if err := h.service.Buy(context.Background()); err != nil {
			return h.serviceError(err, ErrInternal)
		}
		buy, _ := h.service.Flows()
		return c.Status(fiber.StatusAccepted).JSON(buy.Status())
	}
}

// PlanLP sizes a deposit for ?amount= units without submitting anything.
func (h *AuctionHandler) PlanLP() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req AmountRequest
		if err := c.Bind().Query(&req); err != nil {
			h.logger.Debug("failed to bind query parameters", "err", err)
			return ErrInvalidQueryParameters
		}
		amount, err := h.parseAmount(req.Amount)
		if err != nil {
			return err
		}
		plan, err := h.service.PlanLP(amount)
		if err != nil {
			return h.serviceError(err, ErrInternal)
		}
		return c.JSON(plan)
	}
}

func (h *AuctionHandler) AddLiquidity() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req AmountRequest
		if err := h.bindBody(c, &req); err != nil {
			return err
		}
		amount, err := h.parseAmount(req.Amount)
		if err != nil {
			return err
		}
		if err := h.service.AddLiquidity(context.Background(), amount); err != nil {
			return h.serviceError(err, ErrInternal)
		}
		_, lp := h.service.Flows()
		return c.Status(fiber.StatusAccepted).JSON(lp.Status())
	}
}
