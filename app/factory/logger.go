package factory

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

func NewModuleLogger(module string) logrus.FieldLogger {
	return logrus.WithField("module", module)
}

func LoggerWithContext(logger logrus.FieldLogger, ctx echo.Context) logrus.FieldLogger {
	return logger.WithField("request_id", ctx.Request().Header.Get(requestIDHeader))
}

// LoggerForSubscription tags entries with the subscription and the acting caller.
func LoggerForSubscription(logger logrus.FieldLogger, subscriptionID, callerID string) logrus.FieldLogger {
	fields := logrus.Fields{"subscription_id": subscriptionID}
	if callerID != "" {
		fields["caller_id"] = callerID
	}
	return logger.WithFields(fields)
}
