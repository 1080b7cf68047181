package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"

	"github.com/rescale/dlxt/internal/config"
	"github.com/rescale/dlxt/internal/constants"
	"github.com/rescale/dlxt/internal/logging"
)

// ConfigureHTTPClient builds a client for cfg's proxy mode. The client has no
// overall timeout; transfers are bounded by their request context. With
// ProxyWarmup set, one request is sent through the proxy before returning.
func ConfigureHTTPClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	logger = logging.OrNop(logger)

	proxy, err := proxySelector(cfg, logger)
	if err != nil {
		return nil, err
	}

	transport := newTransport()
	transport.Proxy = proxy
	client := &nethttp.Client{Transport: transport}

	// NTLM authenticates per connection through the negotiator.
	if proxy != nil && strings.EqualFold(cfg.ProxyMode, config.ProxyModeNTLM) {
		client.Transport = ntlmssp.Negotiator{RoundTripper: transport}
	}

	if cfg.ProxyWarmup && !NeedsProxyPassword(cfg) {
		if err := warmupProxy(client, cfg.ProxyWarmupURL); err != nil {
			return nil, fmt.Errorf("proxy warmup failed: %w", err)
		}
		logger.Debug().Str("url", cfg.ProxyWarmupURL).Msg("Proxy warmup succeeded")
	}

	return client, nil
}

// proxySelector maps the proxy mode to a Transport.Proxy function. A nil
// function means direct connections.
func proxySelector(cfg *config.Config, logger *logging.Logger) (func(*nethttp.Request) (*url.URL, error), error) {
	switch mode := strings.ToLower(cfg.ProxyMode); mode {
	case config.ProxyModeNone, "":
		return nil, nil

	case config.ProxyModeSystem:
		// HTTP_PROXY / HTTPS_PROXY / NO_PROXY from the environment
		return nethttp.ProxyFromEnvironment, nil

	case config.ProxyModeBasic, config.ProxyModeNTLM:
		if cfg.ProxyHost == "" {
			logger.Warn().Str("mode", mode).Msg("Proxy host missing, connecting directly")
			return nil, nil
		}
		if mode == config.ProxyModeBasic && cfg.ProxyUser != "" && cfg.ProxyPassword == "" {
			logger.Warn().Msg("Proxy user set without password, sending no proxy credentials")
		}
		return proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy, logger), nil

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}
}

// newTransport returns a transport with the dial and TLS limits used for
// every transfer. The idle pool keeps one connection per parallel slot.
func newTransport() *nethttp.Transport {
	return &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          4 * constants.MaxParallel,
		MaxIdleConnsPerHost:   constants.MaxParallel,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
		// A server answering Content-Encoding: gzip for x.tar.gz must not
		// be decoded on the fly.
		DisableCompression: true,
	}
}

// buildProxyURL constructs a proxy URL from config
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = constants.DefaultProxyPort
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(cfg.ProxyHost, fmt.Sprint(port)),
	}

	// Only embed credentials if both user AND password are provided
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}

	return proxyURL
}

// warmupProxy performs a single GET through the proxy so that NTLM handshakes
// and connection setup happen before the first transfer.
func warmupProxy(client *nethttp.Client, warmupURL string) error {
	if warmupURL == "" {
		return fmt.Errorf("proxy warmup requested but no warmup URL configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.ProxyWarmupTimeout)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, warmupURL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("warmup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("warmup request returned server error: %d", resp.StatusCode)
	}

	return nil
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// If noProxy is empty, behaves identically to nethttp.ProxyURL.
// When noProxy is set, uses golang.org/x/net/http/httpproxy to match hosts/CIDRs.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string, logger *logging.Logger) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	logger = logging.OrNop(logger)
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			logger.Debug().Str("host", req.URL.Host).Msg("Proxy bypass (direct connection)")
		} else {
			logger.Debug().Str("host", req.URL.Host).Str("proxy", result.Host).Msg("Proxied")
		}
		return result, err
	}
}

// NeedsProxyPassword returns true if the proxy configuration requires a password
// but one has not been provided. Used by CLI to determine if interactive prompt is needed.
func NeedsProxyPassword(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.ProxyMode)
	if mode != config.ProxyModeBasic && mode != config.ProxyModeNTLM {
		return false
	}
	return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
}
