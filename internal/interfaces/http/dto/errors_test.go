package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeUnknown, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeInvalidQuantity, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeConcurrencyConflict, http.StatusConflict},
		{ErrCodeDuplicateRequest, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeInsufficientStock, http.StatusUnprocessableEntity},
		{ErrCodeNegativeStock, http.StatusUnprocessableEntity},
		{ErrCodeQuantityOutOfRange, http.StatusUnprocessableEntity},
		{ErrCodePersistenceFailure, http.StatusInternalServerError},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Domain codes should be normalized
		{"NOT_FOUND", ErrCodeNotFound},
		{"ALREADY_EXISTS", ErrCodeAlreadyExists},
		{"INVALID_INPUT", ErrCodeInvalidInput},
		{"INVALID_STATE", ErrCodeInvalidState},
		{"CONCURRENCY_CONFLICT", ErrCodeConcurrencyConflict},
		{"INVALID_QUANTITY", ErrCodeInvalidQuantity},
		{"QUANTITY_OUT_OF_RANGE", ErrCodeQuantityOutOfRange},
		{"INSUFFICIENT_STOCK", ErrCodeInsufficientStock},
		{"NEGATIVE_STOCK", ErrCodeNegativeStock},
		{"PERSISTENCE_FAILURE", ErrCodePersistenceFailure},
		// API codes should pass through unchanged
		{ErrCodeNotFound, ErrCodeNotFound},
		{ErrCodeValidation, ErrCodeValidation},
		// Unknown codes should pass through unchanged
		{"CUSTOM_ERROR", "CUSTOM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestDomainErrorCodeMappingTargetsAreMapped(t *testing.T) {
	// Every normalized code must resolve to a concrete HTTP status
	for domainCode, apiCode := range DomainErrorCodeMapping {
		_, ok := ErrorCodeHTTPStatus[apiCode]
		assert.True(t, ok, "domain code %s maps to unmapped API code %s", domainCode, apiCode)
	}
}
