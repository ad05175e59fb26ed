package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Heesho/miner-miniapp/internal/quote"
	"github.com/Heesho/miner-miniapp/internal/service"
)

// ErrInvalidQueryParameters indicates that the request query string could not
// be parsed into the expected structure.
var ErrInvalidQueryParameters = fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")

// ErrInvalidBody indicates that the request body could not be decoded.
var ErrInvalidBody = fiber.NewError(fiber.StatusBadRequest, "invalid request body")

// ErrSameAddresses is returned when src and dst addresses are identical.
var ErrSameAddresses = fiber.NewError(fiber.StatusBadRequest, "src and dst addresses cannot be the same")

// ErrAmountRequired is returned when the amount parameter is missing.
var ErrAmountRequired = fiber.NewError(fiber.StatusBadRequest, "amount is required")

// ErrInvalidAmountFormat is returned when the amount cannot be parsed as a
// base-10 integer.
var ErrInvalidAmountFormat = fiber.NewError(fiber.StatusBadRequest, "invalid amount format")

// ErrAmountNonPositive is returned when the amount is zero or negative.
var ErrAmountNonPositive = fiber.NewError(fiber.StatusBadRequest, "amount must be greater than zero")

// ErrSameTokenBadRequest maps a same-token validation failure to a 400 error.
var ErrSameTokenBadRequest = fiber.NewError(fiber.StatusBadRequest, "src and dst tokens cannot be the same")

// ErrPairMismatchBadRequest maps a pool that does not hold the requested
// tokens to a 400 error.
var ErrPairMismatchBadRequest = fiber.NewError(fiber.StatusBadRequest, "pool does not hold the requested tokens")

// ErrEmptyReservesBadRequest maps empty-reserve pool state to a 400 error.
var ErrEmptyReservesBadRequest = fiber.NewError(fiber.StatusBadRequest, "pool has insufficient reserves")

// ErrDustDepositBadRequest is returned when a deposit is too small to pair
// with any DONUT.
var ErrDustDepositBadRequest = fiber.NewError(fiber.StatusBadRequest, "deposit too small to require any DONUT")

// ErrEstimationFailedInternal signals a generic server-side estimation error.
var ErrEstimationFailedInternal = fiber.NewError(fiber.StatusInternalServerError, "estimation failed")

var (
	ErrInvalidDirection    = fiber.NewError(fiber.StatusBadRequest, "direction must be buy or sell")
	ErrNotReady            = fiber.NewError(fiber.StatusServiceUnavailable, "chain state not loaded yet")
	ErrInsufficientBalance = fiber.NewError(fiber.StatusUnprocessableEntity, "insufficient balance")
	ErrNoLiquidity         = fiber.NewError(fiber.StatusUnprocessableEntity, "no route or liquidity")
	ErrNothingToBuy        = fiber.NewError(fiber.StatusConflict, "auction has nothing accumulated")
	ErrJobInFlight         = fiber.NewError(fiber.StatusConflict, "a job is already in flight")
	ErrStaleQuote          = fiber.NewError(fiber.StatusConflict, "quote is stale, request a new one")
	ErrQuoteProvider       = fiber.NewError(fiber.StatusBadGateway, "quote provider failure")
	ErrUnknownFlow         = fiber.NewError(fiber.StatusNotFound, "unknown flow")
	ErrInternal            = fiber.NewError(fiber.StatusInternalServerError, "internal error")
)

// NewInvalidAmountIn wraps an amount parsing error into a 400 Bad Request with
// a descriptive message.
func NewInvalidAmountIn(err error) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid amount_in: "+err.Error())
}

// NewAddressRequired returns a 400 Bad Request for a missing address field.
func NewAddressRequired(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, field+" address is required")
}

// NewInvalidAddress returns a 400 Bad Request for an invalid address format.
func NewInvalidAddress(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid "+field+" address")
}

// serviceError maps service and quote errors to HTTP errors. Anything it
// does not know is logged and reported as fallback.
func (h *BaseHandler) serviceError(err error, fallback *fiber.Error) error {
	switch {
	case errors.Is(err, service.ErrSameToken), errors.Is(err, quote.ErrSameToken):
		return ErrSameTokenBadRequest
	case errors.Is(err, service.ErrPairMismatch):
		return ErrPairMismatchBadRequest
	case errors.Is(err, service.ErrEmptyReserves):
		return ErrEmptyReservesBadRequest
	case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, quote.ErrInvalidAmount):
		return ErrAmountNonPositive
	case errors.Is(err, service.ErrDustDeposit):
		return ErrDustDepositBadRequest
	case errors.Is(err, service.ErrInvalidDirection):
		return ErrInvalidDirection
	case errors.Is(err, service.ErrNotReady):
		return ErrNotReady
	case errors.Is(err, service.ErrInsufficientBalance):
		return ErrInsufficientBalance
	case errors.Is(err, service.ErrNothingToBuy):
		return ErrNothingToBuy
	case errors.Is(err, service.ErrJobInFlight):
		return ErrJobInFlight
	case errors.Is(err, quote.ErrNoLiquidity):
		return ErrNoLiquidity
	case errors.Is(err, quote.ErrStaleQuote):
		return ErrStaleQuote
	case errors.Is(err, quote.ErrProviderFailure), errors.Is(err, quote.ErrMissingTx):
		h.logger.Warn("quote provider failed", "err", err)
		return ErrQuoteProvider
	default:
		h.logger.Error("request failed", "err", err)
		return fallback
	}
}
