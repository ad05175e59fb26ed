package handler

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/gofiber/fiber/v3"

	"github.com/Heesho/miner-miniapp/internal/service"
)

type SwapHandler struct {
	BaseHandler
	service *service.SwapService
}

func NewSwapHandler(logger *slog.Logger, svc *service.SwapService) *SwapHandler {
	return &SwapHandler{
		BaseHandler: BaseHandler{logger: logger},
		service:     svc,
	}
}

type SwapRequest struct {
	Direction string `query:"direction" json:"direction"`
	Amount    string `query:"amount" json:"amount"`
}

type QuoteResponse struct {
	SellAmount  string `json:"sellAmount"`
	BuyAmount   string `json:"buyAmount"`
	SlippageBps int64  `json:"slippageBps"`
	Target      string `json:"target"`
	Deadline    int64  `json:"deadline"`
}

func (h *SwapHandler) parse(req SwapRequest) (service.Direction, *big.Int, error) {
	dir, err := service.ParseDirection(req.Direction)
	if err != nil {
		return "", nil, ErrInvalidDirection
	}
	amount, err := h.parseAmount(req.Amount)
	if err != nil {
		return "", nil, err
	}
	return dir, amount, nil
}

// Price serves a price-only preview for ?direction=&amount=.
func (h *SwapHandler) Price() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req SwapRequest
		if err := c.Bind().Query(&req); err != nil {
			h.logger.Debug("failed to bind query parameters", "err", err)
			return ErrInvalidQueryParameters
		}
		dir, amount, err := h.parse(req)
		if err != nil {
			return err
		}
		preview, err := h.service.Preview(context.Background(), dir, amount)
		if err != nil {
			return h.serviceError(err, ErrInternal)
		}
		return c.JSON(preview)
	}
}

// Quote fetches the firm quote the next swap will execute.
func (h *SwapHandler) Quote() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req SwapRequest
		if err := h.bindBody(c, &req); err != nil {
			return err
		}
		dir, amount, err := h.parse(req)
		if err != nil {
			return err
		}
		q, err := h.service.Quote(context.Background(), dir, amount)
		if err != nil {
			return h.serviceError(err, ErrInternal)
		}
		return c.JSON(QuoteResponse{
			SellAmount:  q.SellAmount.String(),
			BuyAmount:   q.BuyAmount.String(),
			SlippageBps: q.SlippageBps,
			Target:      q.Transaction.Target().Hex(),
			Deadline:    q.Deadline.Unix(),
		})
	}
}

// Swap executes the kept quote.
func (h *SwapHandler) Swap() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req SwapRequest
		if err := h.bindBody(c, &req); err != nil {
			return err
		}
		dir, amount, err := h.parse(req)
		if err != nil {
			return err
		}
		if err := h.service.Swap(context.Background(), dir, amount); err != nil {
			return h.serviceError(err, ErrInternal)
		}
		return c.Status(fiber.StatusAccepted).JSON(h.service.Status())
	}
}
