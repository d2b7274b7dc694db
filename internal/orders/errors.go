package orders

import (
	"errors"
	"fmt"

	"github.com/groweasy/groweasy/internal/inventory"
)

// InvalidOrderDataError rejects a malformed payload before anything is
// touched: no transaction, no sequence consumption, no writes.
type InvalidOrderDataError struct {
	Reason string
}

func (e *InvalidOrderDataError) Error() string {
	return "invalid order data: " + e.Reason
}

// ProcessingError wraps unexpected infrastructure failures. It is the only
// error class logged as a system error; everything else in the taxonomy is
// an expected business outcome.
type ProcessingError struct {
	Op  string
	Err error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("order processing failed (%s): %v", e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// IsBusinessError reports whether the failure is an expected business-rule
// outcome (bad input, dangling product, shortfall) rather than a system
// fault.
func IsBusinessError(err error) bool {
	var invalid *InvalidOrderDataError
	var notFound *inventory.ProductNotFoundError
	var shortfall *inventory.InsufficientStockError
	return errors.As(err, &invalid) || errors.As(err, &notFound) || errors.As(err, &shortfall)
}
