package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http2"

	"github.com/rescale/dlxt/internal/config"
	"github.com/rescale/dlxt/internal/constants"
	"github.com/rescale/dlxt/internal/logging"
)

// CreateOptimizedClient creates the HTTP client for downloads: the proxy
// client from ConfigureHTTPClient with HTTP/2 enabled for direct
// connections. Set DLXT_DISABLE_HTTP2=true to force HTTP/1.1.
//
// If cfg is nil, proxy settings are read from the environment
// (HTTP_PROXY, HTTPS_PROXY, NO_PROXY).
func CreateOptimizedClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	if cfg == nil {
		cfg = &config.Config{ProxyMode: config.ProxyModeSystem}
	}
	logger = logging.OrNop(logger)

	client, err := ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	tr := innerTransport(client.Transport)
	if tr == nil {
		return client, nil
	}

	if os.Getenv(constants.EnvPrefix+"DISABLE_HTTP2") == "true" || proxyActive(cfg) {
		disableHTTP2(tr)
		logger.Debug().Msg("HTTP/2 disabled")
		return client, nil
	}

	tr.ForceAttemptHTTP2 = true
	if err := http2.ConfigureTransport(tr); err != nil {
		logger.Debug().Err(err).Msg("HTTP/2 unavailable, using HTTP/1.1")
	}
	return client, nil
}

// innerTransport unwraps the NTLM negotiator.
func innerTransport(rt nethttp.RoundTripper) *nethttp.Transport {
	switch t := rt.(type) {
	case *nethttp.Transport:
		return t
	case ntlmssp.Negotiator:
		return innerTransport(t.RoundTripper)
	default:
		return nil
	}
}

// proxyActive reports whether requests will go through a proxy. Proxies often
// break HTTP/2 multiplexing mid-transfer, so HTTP/2 is turned off for them.
func proxyActive(cfg *config.Config) bool {
	switch cfg.ProxyMode {
	case config.ProxyModeNone, "":
		return false
	case config.ProxyModeSystem:
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return cfg.ProxyHost != ""
	}
}

func disableHTTP2(tr *nethttp.Transport) {
	tr.ForceAttemptHTTP2 = false
	tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
}
