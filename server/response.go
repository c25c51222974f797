package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/voicekit/errors"
	"github.com/kbukum/voicekit/observability"
	"github.com/kbukum/voicekit/server/middleware"
)

// DataResponse is the standard success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// RespondWithError classifies err with apperrors.From and writes its status
// and body, tagged with the request id. The error code is counted against
// the request's route.
func RespondWithError(c *gin.Context, err error) {
	appErr := apperrors.From(err, c.FullPath())
	observability.RecordErrorContext(c.Request.Context(), string(appErr.Code))
	c.JSON(appErr.HTTPStatus, appErr.ToResponse().WithRequestID(c.Writer.Header().Get(middleware.HeaderRequestID)))
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// RespondNoContent sends a 204 with no body.
func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
