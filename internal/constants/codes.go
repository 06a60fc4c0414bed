package constants

// Machine-readable codes returned in the "error" and "code" fields.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeAuthNotConfigured = "AUTH_NOT_CONFIGURED"
	CodeRateLimited       = "RATE_LIMITED"
	CodePayloadTooLarge   = "PAYLOAD_TOO_LARGE"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"

	CodeInvalidURL   = "INVALID_URL"
	CodeLinkNotFound = "LINK_NOT_FOUND"
	CodeLinkConflict = "LINK_CONFLICT"

	CodeLinkCreated = "LINK_CREATED"
	CodeLinkUpdated = "LINK_UPDATED"
	CodeLinkDeleted = "LINK_DELETED"
	CodeLinkFound   = "LINK_FOUND"
)
