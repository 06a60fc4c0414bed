package constants

import "net/http"

// APIError is a rendered failure: code, message and HTTP status.
type APIError struct {
	Code    string
	Message string
	Status  int
}

// WithMessage returns a copy of the APIError with a custom message.
func (e APIError) WithMessage(message string) APIError {
	return APIError{
		Code:    e.Code,
		Message: message,
		Status:  e.Status,
	}
}

var (
	ErrInvalidRequestBody = APIError{
		Code:    CodeInvalidRequest,
		Message: MsgInvalidRequestBody,
		Status:  http.StatusBadRequest,
	}
	ErrPayloadTooLarge = APIError{
		Code:    CodePayloadTooLarge,
		Message: MsgPayloadTooLarge,
		Status:  http.StatusRequestEntityTooLarge,
	}
	ErrInternalError = APIError{
		Code:    CodeInternalError,
		Message: MsgInternalError,
		Status:  http.StatusInternalServerError,
	}
	ErrStoreUnavailable = APIError{
		Code:    CodeStoreUnavailable,
		Message: MsgStoreUnavailable,
		Status:  http.StatusInternalServerError,
	}
)

var (
	ErrUnauthorized = APIError{
		Code:    CodeUnauthorized,
		Message: MsgUnauthorized,
		Status:  http.StatusUnauthorized,
	}
	ErrAuthNotConfigured = APIError{
		Code:    CodeAuthNotConfigured,
		Message: MsgAuthNotConfigured,
		Status:  http.StatusInternalServerError,
	}
	ErrRateLimited = APIError{
		Code:    CodeRateLimited,
		Message: MsgRateLimited,
		Status:  http.StatusTooManyRequests,
	}
)

var (
	ErrInvalidURL = APIError{
		Code:    CodeInvalidURL,
		Message: MsgInvalidURL,
		Status:  http.StatusBadRequest,
	}
	// ErrLinkNotFound also covers disabled, expired and exhausted links so
	// anonymous callers cannot tell them apart.
	ErrLinkNotFound = APIError{
		Code:    CodeLinkNotFound,
		Message: MsgLinkNotFound,
		Status:  http.StatusNotFound,
	}
	ErrLinkConflict = APIError{
		Code:    CodeLinkConflict,
		Message: MsgLinkConflict,
		Status:  http.StatusConflict,
	}
)
