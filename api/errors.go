package api

import (
	"net/http"

	"raffler/models"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// statusForKind maps a domain error kind to its HTTP status
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindInvalidArgument:
		return http.StatusBadRequest
	case models.KindInvalidState, models.KindConflict:
		return http.StatusConflict
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error", "kind"}. Internal detail is only logged.
func respondError(c *gin.Context, err error) {
	kind := models.KindOf(err)
	status := statusForKind(kind)

	if status == http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
		kind = models.KindInternal
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error": models.MessageOf(err),
		"kind":  kind,
	})
}

// respondBadRequest reports a malformed request body or path parameter
func respondBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error": message,
		"kind":  models.KindInvalidArgument,
	})
}
