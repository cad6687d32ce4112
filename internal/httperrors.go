package internal

import (
	"fmt"
	"net/http"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// HTTPStatusError is returned by SDK components when a service responds with a non-2xx status.
type HTTPStatusError struct {
	Message string
	Code    int
}

func (e HTTPStatusError) Error() string {
	return e.Message
}

// IsHTTPErrorRecoverable tests whether an HTTP error status represents a condition that might resolve on
// its own if we retry: 5xx, 408 and 429. Every other 4xx is a permanent rejection.
func IsHTTPErrorRecoverable(statusCode int) bool {
	if statusCode >= 400 && statusCode < 500 {
		switch statusCode {
		case 408: // request timeout
			return true
		case 429: // too many requests
			return true
		default:
			return false
		}
	}
	return true
}

// HTTPErrorDescription returns a short description of an HTTP error status for log messages.
func HTTPErrorDescription(statusCode int) string {
	message := ""
	if statusCode == 401 || statusCode == 403 {
		message = " (invalid app key or secret)"
	}
	return fmt.Sprintf("HTTP error %d%s", statusCode, message)
}

// CheckIfErrorIsRecoverableAndLog logs an HTTP error or network error at the appropriate level and
// determines whether it is recoverable (as defined by IsHTTPErrorRecoverable). A statusCode of zero
// means a network error, which is always recoverable.
func CheckIfErrorIsRecoverableAndLog(
	loggers ldlog.Loggers,
	errorDesc, errorContext string,
	statusCode int,
	recoverableMessage string,
) bool {
	if statusCode > 0 && !IsHTTPErrorRecoverable(statusCode) {
		loggers.Errorf("Error %s (giving up permanently): %s", errorContext, errorDesc)
		return false
	}
	loggers.Warnf("Error %s (%s): %s", errorContext, recoverableMessage, errorDesc)
	return true
}

// CheckForHTTPError returns an HTTPStatusError if the status is not 2xx.
func CheckForHTTPError(statusCode int, url string) error {
	if statusCode == http.StatusUnauthorized {
		return HTTPStatusError{
			Message: fmt.Sprintf("Invalid app credentials when accessing URL: %s. Verify that your app key is correct.", url),
			Code:    statusCode,
		}
	}

	if statusCode == http.StatusNotFound {
		return HTTPStatusError{
			Message: fmt.Sprintf("Resource not found when accessing URL: %s. Verify that this resource exists.", url),
			Code:    statusCode,
		}
	}

	if statusCode/100 != 2 {
		return HTTPStatusError{
			Message: fmt.Sprintf("Unexpected response code: %d when accessing URL: %s", statusCode, url),
			Code:    statusCode,
		}
	}
	return nil
}
