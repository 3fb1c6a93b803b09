package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nhle/taskradar/internal/apperr"
)

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// writeErr maps an error to its HTTP status by kind. Unclassified errors
// are reported as internal without their text.
func writeErr(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	msg := err.Error()

	var status int
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConfigurationMissing, apperr.KindTransientIO:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
		msg = "internal error"
		_ = c.Error(err)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Kind: kind, Message: msg}})
}

func badRequest(c *gin.Context, format string, args ...any) {
	writeErr(c, apperr.Validation("decode request", format, args...))
}

func invalidParam(name, value string) error {
	return apperr.Validation("decode request", "invalid %s %q", name, value)
}
