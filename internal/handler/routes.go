package handler

import "github.com/gofiber/fiber/v3"

// Handlers groups everything Register mounts. Nil handlers are skipped.
type Handlers struct {
	Estimate *EstimateHandler
	Mine     *MineHandler
	Auction  *AuctionHandler
	Swap     *SwapHandler
	Flows    *FlowHandler
}

// Register mounts the API routes on r.
func Register(r fiber.Router, h Handlers) {
	if h.Estimate != nil {
		r.Get("/estimate", h.Estimate.Handle())
	}
	if h.Mine != nil {
		r.Get("/rig", h.Mine.View())
		r.Post("/mine", h.Mine.Mine())
	}
	if h.Auction != nil {
		r.Get("/auction", h.Auction.View())
		r.Post("/auction/buy", h.Auction.Buy())
		r.Get("/lp/plan", h.Auction.PlanLP())
		r.Post("/lp", h.Auction.AddLiquidity())
	}
	if h.Swap != nil {
		r.Get("/swap/price", h.Swap.Price())
		r.Post("/swap/quote", h.Swap.Quote())
		r.Post("/swap", h.Swap.Swap())
	}
	if h.Flows != nil {
		r.Get("/flows/:name", h.Flows.Status())
		r.Post("/flows/:name/reset", h.Flows.Reset())
	}
}
