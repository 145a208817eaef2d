package handlers

const (
	// maxBodyBytes caps JSON request bodies
	maxBodyBytes = 1 << 20
	// maxImportBytes caps backup uploads
	maxImportBytes = 32 << 20

	adminRealm = "usos-admin"

	ErrInvalidJSON          = "Invalid request body"
	ErrUnauthorized         = "Unauthorized"
	ErrSessionExpired       = "Session expired, please sign in again"
	ErrForbidden            = "You do not have access to this resource"
	ErrAdminTokenAsUser     = "Admin tokens cannot act as a user"
	ErrTooManyRequests      = "Too many requests, please slow down"
	ErrInternalServerError  = "Internal server error"
	ErrStreamingUnsupported = "Streaming not supported"
)
