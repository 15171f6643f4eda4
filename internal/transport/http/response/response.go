package response

import "github.com/gin-gonic/gin"

// Stable error codes that are not produced by a service.
const (
	CodeBadRequest       = "invalid_request"
	CodeUnauthorized     = "unauthorized"
	CodeNotFound         = "not_found"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeInternal         = "internal_error"
	CodeUpstream         = "upstream_error"
	CodeTimeout          = "request_timeout"
)

// ErrorBody is the body of every non-2xx response. Error is stable and safe
// for clients to branch on.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, data)
}

func Error(c *gin.Context, httpStatus int, code, details string) {
	c.JSON(httpStatus, ErrorBody{
		Error:   code,
		Details: details,
	})
}

// Abort writes the error body and stops the handler chain.
func Abort(c *gin.Context, httpStatus int, code, details string) {
	c.AbortWithStatusJSON(httpStatus, ErrorBody{
		Error:   code,
		Details: details,
	})
}
