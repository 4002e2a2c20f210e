package dto

import (
	"errors"
	"net/http"

	"github.com/ledger/backend/internal/domain/shared"
)

// Error code constants
// Format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	ErrCodeInternal            = "ERR_INTERNAL"
	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodeInvalidJSON         = "ERR_INVALID_JSON"
	ErrCodeInvalidID           = "ERR_INVALID_ID"
	ErrCodeUnauthorized        = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired        = "ERR_TOKEN_EXPIRED"
	ErrCodeForbidden           = "ERR_FORBIDDEN"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeStorageUnavailable  = "ERR_STORAGE_UNAVAILABLE"
	ErrCodeRequestTooLarge     = "ERR_REQUEST_TOO_LARGE"
)

// kindHTTPStatus maps domain error kinds to HTTP status codes
var kindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:             http.StatusBadRequest,
	shared.KindNotFound:               http.StatusNotFound,
	shared.KindForbidden:              http.StatusForbidden,
	shared.KindConflict:               http.StatusConflict,
	shared.KindConcurrentModification: http.StatusConflict,
	shared.KindStorage:                http.StatusServiceUnavailable,
}

// kindErrorCode maps domain error kinds to their generic API code
var kindErrorCode = map[shared.ErrorKind]string{
	shared.KindValidation:             ErrCodeValidation,
	shared.KindNotFound:               ErrCodeNotFound,
	shared.KindForbidden:              ErrCodeForbidden,
	shared.KindConflict:               ErrCodeConflict,
	shared.KindConcurrentModification: ErrCodeConcurrencyConflict,
	shared.KindStorage:                ErrCodeStorageUnavailable,
}

// StatusForKind returns the HTTP status for a domain error kind, 500 if unknown
func StatusForKind(kind shared.ErrorKind) int {
	if status, ok := kindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorInfoFromError builds the response error body and status for err.
// Errors that are not domain errors become an opaque 500.
func ErrorInfoFromError(err error, requestID string) (int, *ErrorInfo) {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, &ErrorInfo{
			Code:      ErrCodeInternal,
			Message:   "An unexpected error occurred",
			RequestID: requestID,
		}
	}

	code, ok := kindErrorCode[de.Kind]
	if !ok {
		code = ErrCodeInternal
	}
	info := &ErrorInfo{
		Code:      code,
		Kind:      string(de.Kind),
		Reason:    de.Code,
		Message:   de.Message,
		Field:     de.Field,
		Retryable: de.Retryable(),
		RequestID: requestID,
	}
	// Storage causes stay in the logs.
	if de.Kind == shared.KindStorage {
		info.Message = "The ledger store is temporarily unavailable"
	}
	return StatusForKind(de.Kind), info
}
