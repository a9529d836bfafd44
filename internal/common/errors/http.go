package errors

import (
	"github.com/gin-gonic/gin"
)

// WriteHTTP writes {"error": message} with the status mapped from err's code.
// Errors that are not StandardErrors become 500 "Internal server error".
func WriteHTTP(c *gin.Context, err error) {
	stdErr := Normalize(err)
	c.AbortWithStatusJSON(HTTPStatus(stdErr.Code), gin.H{"error": stdErr.Message})
}
