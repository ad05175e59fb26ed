package config

import "errors"

// ErrMissingRPCEndpoint indicates that the required ETH_RPC_URL variable is
// not set in the environment or the config file.
var ErrMissingRPCEndpoint = errors.New("missing ETH_RPC_URL environment variable")

// ErrMissingRigAddress indicates that no rig contract was configured.
var ErrMissingRigAddress = errors.New("missing RIG_ADDRESS")

// ErrInvalidAddress is returned when a configured address is not a valid
// hex-encoded 20-byte address.
var ErrInvalidAddress = errors.New("invalid address in configuration")

// ErrInvalidInterval is returned when a poll interval or timeout is not
// positive.
var ErrInvalidInterval = errors.New("intervals and timeouts must be positive")

// ErrInvalidSpendLimit is returned when max_call_value_wei is set but is not
// a positive base-10 integer.
var ErrInvalidSpendLimit = errors.New("max call value must be a positive integer in wei")
