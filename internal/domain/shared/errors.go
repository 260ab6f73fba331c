package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// Costing errors. QUANTITY_OUT_OF_RANGE and NEGATIVE_STOCK indicate logic or
// concurrency bugs rather than caller mistakes; PERSISTENCE_FAILURE wraps
// store-level errors and is safe to retry.
var (
	ErrInvalidQuantity    = NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	ErrQuantityOutOfRange = NewDomainError("QUANTITY_OUT_OF_RANGE", "Adjustment would push remaining quantity outside its valid range")
	ErrInsufficientStock  = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrNegativeStock      = NewDomainError("NEGATIVE_STOCK", "Warehouse stock would become negative")
	ErrPersistenceFailure = NewDomainError("PERSISTENCE_FAILURE", "Persistence operation failed")
)
