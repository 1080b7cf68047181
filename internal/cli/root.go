// Package cli provides the command-line interface for dlxt.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rescale/dlxt/internal/config"
	"github.com/rescale/dlxt/internal/constants"
	"github.com/rescale/dlxt/internal/logging"
	"github.com/rescale/dlxt/internal/version"
)

var (
	// Global flags
	cfgFile    string
	verbose    bool
	jsonLogs   bool
	noProgress bool

	// Config overrides; only applied when set on the command line
	flagParallel      int
	flagOnDuplicate   string
	flagOnUnsupported string
	flagKeepArchives  bool
	flagCheckContent  bool
	flagUserAgent     string
	flagProxyMode     string
	flagProxyHost     string
	flagProxyPort     int
	flagProxyUser     string
	flagProxyPassword string
	flagNoProxy       string

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   constants.AppName,
		Short: "Download files in parallel and unpack the archives among them",
		Long: `dlxt ` + version.Version + ` - Built: ` + version.BuildTime + `
Downloads a list of URLs into a directory with bounded parallelism, then
extracts the tar, gzip, xz and bzip2 archives among the downloaded files.

Formats are recognized from file names:
  .tar.gz .tar.xz .tar.bz2 .tar   unpacked into the output directory
  .gz .xz .bz2                    decompressed into the output directory

Settings are read from the config file, then DLXT_* environment variables,
then command-line flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			mode := logging.ModeCLI
			if jsonLogs {
				mode = logging.ModeJSON
			}
			logger = logging.NewLogger(mode, cmd.ErrOrStderr())
			if verbose {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				logging.SetGlobalLevel(zerolog.InfoLevel)
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "Configuration file path (.yaml or .csv)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	pf.BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON lines")
	pf.BoolVar(&noProgress, "no-progress", false, "Disable progress bars")

	pf.IntVarP(&flagParallel, "parallel", "j", constants.DefaultParallel,
		fmt.Sprintf("Maximum concurrent transfers (1-%d)", constants.MaxParallel))
	pf.StringVar(&flagOnDuplicate, "on-duplicate", "skip", "When a destination exists: skip, rename or replace")
	pf.StringVar(&flagOnUnsupported, "on-unsupported", "skip", "For files that are not archives: skip or copy")
	pf.BoolVar(&flagKeepArchives, "keep-archives", false, "Keep archives after extracting them (fetch)")
	pf.BoolVar(&flagCheckContent, "check-content", false, "Warn when file content does not match its extension")
	pf.StringVar(&flagUserAgent, "user-agent", constants.DefaultUserAgent, "User-Agent header sent with requests")

	pf.StringVar(&flagProxyMode, "proxy-mode", config.ProxyModeNone, "Proxy mode: no-proxy, system, basic or ntlm")
	pf.StringVar(&flagProxyHost, "proxy-host", "", "Proxy host")
	pf.IntVar(&flagProxyPort, "proxy-port", 0, "Proxy port")
	pf.StringVar(&flagProxyUser, "proxy-user", "", "Proxy user (basic/ntlm)")
	pf.StringVar(&flagProxyPassword, "proxy-password", "", "Proxy password (prompted when omitted)")
	pf.StringVar(&flagNoProxy, "no-proxy", "", "Comma-separated hosts that bypass the proxy")

	rootCmd.Version = version.String()
	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	// Create a context that can be cancelled by signals
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\n\nReceived signal %v, cancelling transfers...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.ExecuteContext(rootContext)

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the context of cmd, which Execute ties to SIGINT and
// SIGTERM.
func GetContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	if rootContext != nil {
		return rootContext
	}
	return context.Background()
}

// loadConfig builds the effective configuration: file, environment, then the
// flags that were set explicitly on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}

	set("parallel", func() { cfg.Parallel = flagParallel })
	set("on-duplicate", func() { cfg.OnDuplicated = flagOnDuplicate })
	set("on-unsupported", func() { cfg.OnUnsupported = flagOnUnsupported })
	set("keep-archives", func() { cfg.KeepArchives = flagKeepArchives })
	set("check-content", func() { cfg.CheckContent = flagCheckContent })
	set("user-agent", func() { cfg.UserAgent = flagUserAgent })
	set("proxy-mode", func() { cfg.ProxyMode = flagProxyMode })
	set("proxy-host", func() { cfg.ProxyHost = flagProxyHost })
	set("proxy-port", func() { cfg.ProxyPort = flagProxyPort })
	set("proxy-user", func() { cfg.ProxyUser = flagProxyUser })
	set("proxy-password", func() { cfg.ProxyPassword = flagProxyPassword })
	set("no-proxy", func() { cfg.NoProxy = flagNoProxy })
}
