package response

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"talkify/api/internal/apperr"
)

// Envelope is the body shape of every API response.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func JSON(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < 400,
	})
}

// Error renders err with the status of its kind. Only the classified
// message reaches the client; causes stay in the log.
func Error(c *gin.Context, log zerolog.Logger, err error) {
	status, message := describe(err)

	event := log.Warn()
	if status >= 500 {
		event = log.Error()
	}
	event.Err(err).
		Str("kind", apperr.KindOf(err).String()).
		Str("path", c.Request.URL.Path).
		Int("status", status).
		Msg("request failed")

	JSON(c, status, nil, message)
}

// Abort renders err like Error and stops the handler chain.
func Abort(c *gin.Context, log zerolog.Logger, err error) {
	Error(c, log, err)
	c.Abort()
}

func describe(err error) (int, string) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return apperr.KindInternal.Status(), "Internal server error"
	}
	return appErr.Kind.Status(), appErr.Message
}
