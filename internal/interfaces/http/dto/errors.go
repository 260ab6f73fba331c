package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeDuplicateRequest is used when an idempotency key is replayed
	ErrCodeDuplicateRequest = "ERR_DUPLICATE_REQUEST"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeInvalidQuantity is used when a quantity is zero or negative
	ErrCodeInvalidQuantity = "ERR_INVALID_QUANTITY"
	// ErrCodeQuantityOutOfRange is used when an adjustment would leave a batch inconsistent
	ErrCodeQuantityOutOfRange = "ERR_QUANTITY_OUT_OF_RANGE"
	// ErrCodeInsufficientStock is used when stock is insufficient
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"
	// ErrCodeNegativeStock is used when a ledger bucket would go negative
	ErrCodeNegativeStock = "ERR_NEGATIVE_STOCK"
)

// Infrastructure error codes
const (
	// ErrCodePersistenceFailure is used when a store operation fails
	ErrCodePersistenceFailure = "ERR_PERSISTENCE_FAILURE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeDuplicateRequest:    http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:       http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock:  http.StatusUnprocessableEntity,
	ErrCodeInvalidQuantity:    http.StatusBadRequest,
	ErrCodeQuantityOutOfRange: http.StatusUnprocessableEntity,
	ErrCodeNegativeStock:      http.StatusUnprocessableEntity,

	// Infrastructure errors
	ErrCodePersistenceFailure: http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":             ErrCodeNotFound,
	"ALREADY_EXISTS":        ErrCodeAlreadyExists,
	"INVALID_INPUT":         ErrCodeInvalidInput,
	"INVALID_STATE":         ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":  ErrCodeConcurrencyConflict,
	"INVALID_QUANTITY":      ErrCodeInvalidQuantity,
	"QUANTITY_OUT_OF_RANGE": ErrCodeQuantityOutOfRange,
	"INSUFFICIENT_STOCK":    ErrCodeInsufficientStock,
	"NEGATIVE_STOCK":        ErrCodeNegativeStock,
	"PERSISTENCE_FAILURE":   ErrCodePersistenceFailure,
}

// NormalizeErrorCode converts a domain error code to the API format.
// If the code is already in the API format or unknown, returns it as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
