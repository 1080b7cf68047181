package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rescale/dlxt/internal/pipeline"
)

// newFetchCmd creates the 'fetch' command: download, extract, clean up.
func newFetchCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "fetch <url> [url...]",
		Short: "Download URLs, extract the archives, and delete them",
		Long: `Run download and extract back to back on the same directory, then delete
the archives that were extracted (unless --keep-archives).

Files that are not archives are left where they were downloaded.

Examples:
  dlxt fetch https://example.com/model.tar.xz -d ./model
  dlxt fetch --keep-archives -j 4 https://h/a.tar.gz https://h/b.bz2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			outDir, err := outputDir(dir)
			if err != nil {
				return fmt.Errorf("failed to resolve output directory: %w", err)
			}

			engine, err := s.engine()
			if err != nil {
				return err
			}
			defer s.finishUI()

			dlOpts, err := s.downloadOptions()
			if err != nil {
				return err
			}
			exOpts, err := s.extractOptions()
			if err != nil {
				return err
			}

			res, err := pipeline.Run(GetContext(cmd), pipeline.Options{
				Engine:       engine,
				Download:     dlOpts,
				Extract:      exOpts,
				KeepArchives: s.cfg.KeepArchives,
				OnDownloaded: func([]string) { s.finishUI() },
				Logger:       s.logger,
			}, args, outDir)

			fmt.Fprintf(s.errOut, "%s downloaded, %s extracted, %s removed\n",
				humanize.Comma(int64(len(res.Downloaded))),
				humanize.Comma(int64(len(res.Extracted))),
				humanize.Comma(int64(len(res.Removed))))
			printPaths(s.out, remaining(res))
			return err
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Output directory")
	return cmd
}

// remaining lists downloaded files that were not removed after extraction.
func remaining(res pipeline.Result) []string {
	removed := make(map[string]bool, len(res.Removed))
	for _, p := range res.Removed {
		removed[p] = true
	}
	out := make([]string, 0, len(res.Downloaded))
	for _, p := range res.Downloaded {
		if !removed[p] {
			out = append(out, p)
		}
	}
	return out
}
