package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"quizforge/internal/domain"
)

// classifyStatus maps an HTTP status from a provider to a transient or fatal
// provider error.
func classifyStatus(status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= http.StatusInternalServerError:
		return domain.NewTransientProviderError(err)
	default:
		return domain.NewFatalProviderError(err)
	}
}

var transientMarkers = []string{
	"rate limit",
	"too many requests",
	"overloaded",
	"temporarily unavailable",
	"service unavailable",
	"timeout",
}

// classifyTransport handles failures that carry no status code. Context
// cancellation is returned untouched so callers can tell it apart.
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTransientProviderError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.NewTransientProviderError(err)
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return domain.NewTransientProviderError(err)
		}
	}
	return domain.NewFatalProviderError(err)
}
