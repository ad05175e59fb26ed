package chain

import "errors"

var (
	ErrPairMismatch     = errors.New("token is not part of the pair")
	ErrEmptyReserves    = errors.New("empty reserves")
	ErrUnexpectedOutput = errors.New("unexpected contract output")
)
