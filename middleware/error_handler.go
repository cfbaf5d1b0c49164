package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"saathi/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrorHandler recovers panics and turns errors attached with c.Error
// into API responses.
type ErrorHandler struct {
	environment string
	logger      *logrus.Logger
}

func NewErrorHandler(environment string, logger *logrus.Logger) *ErrorHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ErrorHandler{
		environment: environment,
		logger:      logger,
	}
}

func (eh *ErrorHandler) Handle() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				eh.handlePanic(c, err)
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			eh.processError(c, c.Errors.Last().Err)
		}
	})
}

func (eh *ErrorHandler) handlePanic(c *gin.Context, err interface{}) {
	eh.logger.WithFields(logrus.Fields{
		"panic":      err,
		"stack":      string(debug.Stack()),
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"user_id":    c.GetString("userID"),
	}).Error("Panic recovered")

	var details interface{}
	if eh.environment == "development" {
		details = map[string]interface{}{"panic": err}
	}

	utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error", details)
	c.Abort()
}

// processError maps driver errors onto service errors before writing.
func (eh *ErrorHandler) processError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		err = utils.NewNotFoundError("Resource")
	case mongo.IsDuplicateKeyError(err):
		err = utils.NewConflictError("Resource already exists")
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		err = utils.NewDatabaseError("request", err)
	}

	utils.HandleServiceError(c, err, "An unexpected error occurred")
}
