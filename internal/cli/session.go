package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rescale/dlxt/internal/config"
	"github.com/rescale/dlxt/internal/download"
	"github.com/rescale/dlxt/internal/extract"
	dlhttp "github.com/rescale/dlxt/internal/http"
	"github.com/rescale/dlxt/internal/logging"
	"github.com/rescale/dlxt/internal/pathutil"
	"github.com/rescale/dlxt/internal/progress"
	"github.com/rescale/dlxt/internal/transfer"
)

// session carries what one command invocation needs: the effective config,
// the logger, and the progress displays when enabled.
type session struct {
	cfg    *config.Config
	logger *logging.Logger
	out    io.Writer
	errOut io.Writer
	ui     *progress.DownloadUI
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:    cfg,
		logger: GetLogger(),
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}, nil
}

func (s *session) progressEnabled() bool {
	return !noProgress && progress.IsTerminal(s.errOut)
}

// outputDir resolves the -d flag, defaulting to the working directory.
func outputDir(dir string) (string, error) {
	return pathutil.ResolveAbsolutePath(dir)
}

// engine builds the transfer engine. When progress is enabled a download UI
// is created and log output is routed above its bars.
func (s *session) engine() (*transfer.Multi, error) {
	if err := ensureProxyPassword(s.cfg, os.Stdin, s.errOut); err != nil {
		return nil, err
	}
	client, err := dlhttp.NewTransferClient(s.cfg, s.logger)
	if err != nil {
		return nil, err
	}

	opts := transfer.Options{
		MaxParallel: s.cfg.Parallel,
		UserAgent:   s.cfg.UserAgent,
		Logger:      s.logger,
	}
	if s.progressEnabled() {
		s.ui = progress.NewDownloadUI(s.errOut)
		// JSON lines must not be interleaved with bar redraws.
		if !jsonLogs {
			s.logger.SetOutput(s.ui.LogWriter())
		}
		ui := s.ui
		opts.OnProgress = func(token transfer.Token, written, total int64) {
			ui.UpdateProgress(int(token), written, total)
		}
	}
	return transfer.NewMulti(client, opts), nil
}

// finishUI waits for the bars to drain and restores log output.
func (s *session) finishUI() {
	if s.ui == nil {
		return
	}
	s.ui.Wait()
	s.logger.SetOutput(s.errOut)
	s.ui = nil
}

func (s *session) downloadOptions() (download.Options, error) {
	policy, err := s.cfg.CollisionPolicy()
	if err != nil {
		return download.Options{}, err
	}
	opts := download.Options{OnDuplicated: policy, Logger: s.logger}
	if ui := s.ui; ui != nil {
		opts.OnRegistered = func(token transfer.Token, url, name string) {
			ui.AddFileBar(int(token), name, url)
		}
		opts.OnFinished = func(msg transfer.Message) {
			ui.Complete(int(msg.Token), msg.Bytes, msg.Err)
		}
	}
	return opts, nil
}

func (s *session) extractOptions() (extract.Options, error) {
	policy, err := s.cfg.UnsupportedPolicy()
	if err != nil {
		return extract.Options{}, err
	}
	opts := extract.Options{
		OnUnsupported: policy,
		CheckContent:  s.cfg.CheckContent,
		Logger:        s.logger,
	}
	if s.progressEnabled() {
		opts.Progress = progress.NewCLIProgress(s.errOut)
	}
	return opts, nil
}
