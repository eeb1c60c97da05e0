package repositories

import "github.com/go-faster/errors"

var (
	// ErrNotFound is returned when a record does not exist or is soft-deleted.
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientStock is returned when a conditional stock decrement
	// would leave the stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrLimitReached is returned when a conditional counter increment hit its limit.
	ErrLimitReached = errors.New("limit reached")
)
