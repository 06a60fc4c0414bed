package constants

// Human-readable messages returned in the "message" field.
const (
	MsgInvalidRequestBody = "Invalid request body"
	MsgInternalError      = "An internal error occurred"
	MsgUnauthorized       = "Missing or invalid credential"
	MsgAuthNotConfigured  = "Mutations are disabled: no credential is configured"
	MsgRateLimited        = "Too many requests, slow down"
	MsgPayloadTooLarge    = "Request body exceeds 1 MiB"
	MsgStoreUnavailable   = "Link storage is temporarily unavailable"

	MsgInvalidURL   = "Invalid URL (must be an absolute http or https URL)"
	MsgLinkNotFound = "Link not found"
	MsgLinkConflict = "A link with this id already exists; set overwrite to replace it"
)
