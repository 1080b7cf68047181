package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rescale/dlxt/internal/download"
)

// newDownloadCmd creates the 'download' command.
func newDownloadCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download <url> [url...]",
		Short: "Download URLs into a directory",
		Long: `Download every URL into the output directory, running up to --parallel
transfers at once. The file name is the last segment of the URL path.

When a destination already exists, --on-duplicate decides:
  skip     leave the existing file and drop the URL (default)
  rename   save as name2.ext, name3.ext, ...
  replace  overwrite the existing file

Failed transfers are reported and dropped; the other downloads continue.
The local paths of successful downloads are printed, one per line.

Examples:
  dlxt download https://example.com/data.tar.gz -d ./data
  dlxt download -j 8 --on-duplicate rename $(cat urls.txt)`,
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

			opts, err := s.downloadOptions()
			if err != nil {
				return err
			}

			paths, err := download.NewManager(engine, opts).DownloadAll(GetContext(cmd), args, outDir)
			s.finishUI()
			printPaths(s.out, paths)
			return err
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Output directory")
	return cmd
}

func printPaths(w io.Writer, paths []string) {
	for _, p := range paths {
		fmt.Fprintln(w, p)
	}
}
