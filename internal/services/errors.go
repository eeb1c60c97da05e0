package services

import "github.com/go-faster/errors"

// Checkout validation errors.
var (
	ErrEmptyOrder               = errors.New("order must contain at least one item")
	ErrMissingShippingInfo      = errors.New("shipping address and provider are required")
	ErrInvalidQuantity          = errors.New("quantity must be positive")
	ErrAddressNotFound          = errors.New("shipping address not found")
	ErrBookNotFound             = errors.New("book not found")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrShippingProviderNotFound = errors.New("shipping provider not found")
	ErrOrderCodeExhausted       = errors.New("could not allocate a unique order code")
)

// Fulfillment errors.
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidStatus       = errors.New("invalid order status transition")
	ErrOrderNotCancellable = errors.New("order cannot be cancelled in its current status")
	ErrStatusConflict      = errors.New("order status changed concurrently")
)

// Promotion errors. Checkout wraps every one of them in ErrVoucherRejected.
var (
	ErrVoucherRejected      = errors.New("voucher rejected")
	ErrVoucherNotFound      = errors.New("voucher not found")
	ErrVoucherExpired       = errors.New("voucher expired")
	ErrVoucherExhausted     = errors.New("voucher usage limit reached")
	ErrVoucherNotApplicable = errors.New("voucher not applicable to these items")
	ErrMinimumAmountNotMet  = errors.New("order amount below voucher minimum")
	ErrAlreadyUsedByUser    = errors.New("voucher already used by this user")
)

// ErrVoucherConsumptionFailed means the order was rolled back because the
// voucher could not be recorded as used.
var ErrVoucherConsumptionFailed = errors.New("voucher consumption failed")

// classified matches its class with errors.Is and unwraps to its cause.
type classified struct {
	class error
	cause error
}

func (c *classified) Error() string        { return c.class.Error() + ": " + c.cause.Error() }
func (c *classified) Is(target error) bool { return target == c.class }
func (c *classified) Unwrap() error        { return c.cause }

func classify(class, cause error) error {
	return &classified{class: class, cause: cause}
}
