package http

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/rescale/dlxt/internal/config"
	"github.com/rescale/dlxt/internal/logging"
)

// NewTransferClient returns the client used by the transfer engine. It wraps
// the optimized client in retryablehttp for its logging and error-handler
// hooks. Transfers are attempted exactly once.
func NewTransferClient(cfg *config.Config, logger *logging.Logger) (*retryablehttp.Client, error) {
	logger = logging.OrNop(logger)

	base, err := CreateOptimizedClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return WrapClient(base, logger), nil
}

// WrapClient wraps an existing client with the single-attempt retryablehttp
// policy. Tests use it with httptest clients.
func WrapClient(base *nethttp.Client, logger *logging.Logger) *retryablehttp.Client {
	logger = logging.OrNop(logger)

	rc := retryablehttp.NewClient()
	rc.HTTPClient = base
	rc.RetryMax = 0
	rc.CheckRetry = noRetry
	// Hand non-2xx responses back to the caller instead of a generic
	// "giving up" error, so status codes survive.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = &leveledLogger{logger: logger}
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *nethttp.Request, attempt int) {
		logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL.Redacted()).
			Int("attempt", attempt).
			Msg("HTTP request")
	}
	rc.ResponseLogHook = func(_ retryablehttp.Logger, resp *nethttp.Response) {
		logger.Debug().
			Str("url", resp.Request.URL.Redacted()).
			Int("status", resp.StatusCode).
			Int64("content_length", resp.ContentLength).
			Msg("HTTP response")
	}
	return rc
}

func noRetry(ctx context.Context, _ *nethttp.Response, _ error) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return false, nil
}

// leveledLogger adapts logging.Logger to retryablehttp.LeveledLogger.
// retryablehttp's own messages are demoted to debug except errors.
type leveledLogger struct {
	logger *logging.Logger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	withFields(l.logger.Error(), keysAndValues).Msg(msg)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	withFields(l.logger.Debug(), keysAndValues).Msg(msg)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	withFields(l.logger.Debug(), keysAndValues).Msg(msg)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	withFields(l.logger.Warn(), keysAndValues).Msg(msg)
}

func withFields(e *zerolog.Event, keysAndValues []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		e = e.Interface(key, keysAndValues[i+1])
	}
	return e
}
