package constants

import (
	"time"
)

// Application identity
const (
	// AppName - binary and config directory name
	AppName = "dlxt"

	// EnvPrefix - prefix for environment variable overrides (DLXT_PARALLEL, ...)
	EnvPrefix = "DLXT_"

	// DefaultUserAgent - sent with every transfer unless overridden in config
	DefaultUserAgent = "dlxt/1.0 (+https://github.com/rescale/dlxt)"
)

// Transfer engine
const (
	// DefaultParallel - number of transfers allowed to run at the same time.
	// Applies across the whole batch, regardless of how many are registered.
	DefaultParallel = 3

	// MaxParallel - upper bound accepted from config/flags
	MaxParallel = 64

	// EnginePollInterval - longest time Perform waits for a completion before
	// returning control to the download loop (100ms)
	EnginePollInterval = 100 * time.Millisecond

	// CopyBufferSize - size of pooled buffers used for body copies and
	// decompression (256 KB)
	CopyBufferSize = 256 * 1024
)

// Disk space safety margin
const (
	// DiskSpaceBufferPercent - additional space to require beyond archive size (15%)
	// Compressed archives expand, so this is a lower bound, not a guarantee.
	DiskSpaceBufferPercent = 0.15
)

// Extraction
const (
	// IntermediateTarExt - appended to the bare name of a compressed tar to
	// form the transient decompressed file
	IntermediateTarExt = ".tar"

	// MagicHeaderSize - bytes read for content checks (filetype needs 262 for tar)
	MagicHeaderSize = 512

	// DirPerm / FilePerm - permissions for created directories and files
	DirPerm  = 0755
	FilePerm = 0644
)

// Progress
const (
	// ProgressRefreshRate - mpb refresh interval (~3 times per second)
	ProgressRefreshRate = 300 * time.Millisecond

	// ProgressBarWidth - mpb bar width
	ProgressBarWidth = 100
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// ProxyWarmupTimeout - timeout for the optional proxy warmup request
	ProxyWarmupTimeout = 15 * time.Second

	// DefaultProxyPort - used when a proxy host is configured without a port
	DefaultProxyPort = 8080
)
