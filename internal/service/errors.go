package service

import "errors"

var (
	ErrSameToken           = errors.New("src and dst are equal")
	ErrPairMismatch        = errors.New("pair does not match src/dst")
	ErrEmptyReserves       = errors.New("empty reserves")
	ErrNotReady            = errors.New("state not loaded yet")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNothingToBuy        = errors.New("auction has nothing accumulated")
	ErrJobInFlight         = errors.New("a job is already in flight")
	ErrInvalidDirection    = errors.New("direction must be buy or sell")
	ErrDustDeposit         = errors.New("deposit too small to require any DONUT")
)
