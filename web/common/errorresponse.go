package common

// Error codes shared across handlers.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeMonthLocked      = "ATTENDANCE_MONTH_LOCKED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeCSRF             = "CSRF_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeSMTPNotAvailable = "SMTP_UNAVAILABLE"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the uniform error envelope: {"error":{"code","message"}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorBody{Code: code, Message: message},
	}
}
