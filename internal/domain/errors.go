package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrMissingVolume     = errors.New("market record missing volume")
	ErrMissingLiquidity  = errors.New("market record missing liquidity")
	ErrBadDeadline       = errors.New("market record has unparsable deadline")
	ErrNoTokens          = errors.New("market record has no outcome tokens")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrRateLimited       = errors.New("rate limited")
	ErrLockHeld          = errors.New("lock already held")
	ErrContextDone       = errors.New("context cancelled")
)
