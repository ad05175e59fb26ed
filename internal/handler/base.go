// Package handler defines HTTP request handlers and related utilities.
package handler

import (
	"log/slog"
	"math/big"

	"github.com/gofiber/fiber/v3"
)

// BaseHandler provides common dependencies for HTTP handlers.
type BaseHandler struct {
	logger *slog.Logger
}

func (h *BaseHandler) parseAmount(amountStr string) (*big.Int, error) {
	if amountStr == "" {
		return nil, ErrAmountRequired
	}

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return nil, ErrInvalidAmountFormat
	}

	if amount.Sign() <= 0 {
		return nil, ErrAmountNonPositive
	}

	return amount, nil
}

// bindBody decodes a JSON body into out. An empty body leaves out untouched.
func (h *BaseHandler) bindBody(c fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.Bind().Body(out); err != nil {
		h.logger.Debug("failed to bind body", "err", err)
		return ErrInvalidBody
	}
	return nil
}
