// Package pipeline chains download and extraction: fetch every URL into a
// directory, extract what was fetched, then delete the consumed archives.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rescale/dlxt/internal/download"
	"github.com/rescale/dlxt/internal/extract"
	"github.com/rescale/dlxt/internal/logging"
	"github.com/rescale/dlxt/internal/transfer"
	"github.com/rescale/dlxt/internal/util/buffers"
)

// Options configures one pipeline run.
type Options struct {
	// Engine performs the transfers.
	Engine transfer.Engine

	Download download.Options
	Extract  extract.Options

	// KeepArchives leaves extracted archives in place.
	KeepArchives bool

	// OnDownloaded, if set, runs between the download and extract stages.
	OnDownloaded func(paths []string)

	Logger *logging.Logger
}

// Result lists what each stage produced.
type Result struct {
	Downloaded []string
	Extracted  []string
	Removed    []string
}

// Run downloads urls into dir, extracts the downloaded files into dir, and
// removes the archives that were extracted unless KeepArchives is set.
// Stage errors stop the run; the result holds whatever finished before.
func Run(ctx context.Context, opts Options, urls []string, dir string) (Result, error) {
	if opts.Engine == nil {
		return Result{}, errors.New("pipeline: no transfer engine")
	}
	logger := logging.OrNop(opts.Logger)
	if opts.Download.Logger == nil {
		opts.Download.Logger = logger
	}
	if opts.Extract.Logger == nil {
		opts.Extract.Logger = logger
	}

	var res Result
	var err error

	res.Downloaded, err = download.NewManager(opts.Engine, opts.Download).DownloadAll(ctx, urls, dir)
	if opts.OnDownloaded != nil {
		opts.OnDownloaded(res.Downloaded)
	}
	if err != nil {
		return res, err
	}

	res.Extracted, err = extract.NewExtractor(opts.Extract).ExtractAll(ctx, res.Downloaded, dir)
	if err != nil {
		return res, err
	}

	if opts.KeepArchives {
		logger.Debug().Int("archives", len(res.Extracted)).Msg("Keeping extracted archives")
		return res, nil
	}

	res.Removed = make([]string, 0, len(res.Extracted))
	var errs []error
	for _, path := range res.Extracted {
		if err := os.Remove(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Cannot remove extracted archive")
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", path, err))
			continue
		}
		res.Removed = append(res.Removed, path)
	}

	stats := buffers.GetStats()
	logger.Debug().
		Int64("allocations", stats.CopyAllocations).
		Int64("gets", stats.CopyGets).
		Msg("Copy buffer pool")

	logger.Info().
		Int("downloaded", len(res.Downloaded)).
		Int("extracted", len(res.Extracted)).
		Int("removed", len(res.Removed)).
		Msg("Pipeline finished")
	return res, errors.Join(errs...)
}
