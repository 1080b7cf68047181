package http

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrorType labels a failed transfer for logging. Nothing is retried on the
// basis of it.
type ErrorType int

const (
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential: 401, 403, 407 or an expired signed link.
	ErrorTypeCredential
	// ErrorTypeNetwork: dial failures, resets, timeouts.
	ErrorTypeNetwork
	// ErrorTypeRetryable: 408, 429 and 5xx; a later run may succeed.
	ErrorTypeRetryable
	// ErrorTypeFatal: everything a rerun will not fix, such as 404.
	ErrorTypeFatal
	// ErrorTypeCancelled: the batch context was cancelled.
	ErrorTypeCancelled
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeSuccess:    "success",
	ErrorTypeCredential: "credential",
	ErrorTypeNetwork:    "network",
	ErrorTypeRetryable:  "retryable",
	ErrorTypeFatal:      "fatal",
	ErrorTypeCancelled:  "cancelled",
}

func (t ErrorType) String() string {
	if name, ok := errorTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// messagePatterns classify errors that arrive as plain text, typically from
// a proxy. Checked in order; the first match wins.
var messagePatterns = []struct {
	kind     ErrorType
	contains []string
}{
	{ErrorTypeCredential, []string{"expired", "invalid token", "unauthorized", "forbidden", "proxy authentication required"}},
	{ErrorTypeNetwork, []string{"connection reset", "connection refused", "no such host", "broken pipe", "eof", "timeout"}},
	{ErrorTypeRetryable, []string{"server busy", "service unavailable", "throttl"}},
}

// ClassifyError determines the error type of a transfer failure.
func ClassifyError(err error) ErrorType {
	switch {
	case err == nil:
		return ErrorTypeSuccess
	case errors.Is(err, context.Canceled):
		return ErrorTypeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeNetwork
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return classifyStatus(sc.HTTPStatus())
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorTypeNetwork
	}

	msg := strings.ToLower(err.Error())
	for _, p := range messagePatterns {
		for _, s := range p.contains {
			if strings.Contains(msg, s) {
				return p.kind
			}
		}
	}
	return ErrorTypeFatal
}

func classifyStatus(code int) ErrorType {
	switch {
	case code >= 200 && code < 300:
		return ErrorTypeSuccess
	case code == 401 || code == 403 || code == 407:
		return ErrorTypeCredential
	case code == 408 || code == 429 || code >= 500:
		return ErrorTypeRetryable
	default:
		return ErrorTypeFatal
	}
}
