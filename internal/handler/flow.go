package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Heesho/miner-miniapp/internal/service"
)

// FlowHandler exposes the status and reset of every flow by executor name.
type FlowHandler struct {
	BaseHandler
	flows map[string]*service.Flow
}

func NewFlowHandler(logger *slog.Logger, flows ...*service.Flow) *FlowHandler {
	m := make(map[string]*service.Flow, len(flows))
	for _, f := range flows {
		m[f.Name()] = f
	}
	return &FlowHandler{BaseHandler: BaseHandler{logger: logger}, flows: m}
}

func (h *FlowHandler) lookup(c fiber.Ctx) (*service.Flow, error) {
	f, ok := h.flows[c.Params("name")]
	if !ok {
		return nil, ErrUnknownFlow
	}
	return f, nil
}

func (h *FlowHandler) Status() fiber.Handler {
	return func(c fiber.Ctx) error {
		f, err := h.lookup(c)
		if err != nil {
			return err
		}
		return c.JSON(f.Status())
	}
}

func (h *FlowHandler) Reset() fiber.Handler {
	return func(c fiber.Ctx) error {
		f, err := h.lookup(c)
		if err != nil {
			return err
		}
		f.Reset()
		h.logger.Info("flow reset", "flow", f.Name())
		return c.JSON(f.Status())
	}
}
