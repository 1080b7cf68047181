package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rescale/dlxt/internal/extract"
)

// newExtractCmd creates the 'extract' command.
func newExtractCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "extract <file> [file...]",
		Short: "Extract local archives into a directory",
		Long: `Extract each archive into the output directory, one at a time, in the
order given. The format is taken from the file name:

  name.tar.gz  name.tar.xz  name.tar.bz2  name.tar   unpacked
  name.gz      name.xz      name.bz2                 decompressed to name

Other files are skipped, or copied with --on-unsupported copy. Archives are
never deleted by this command. The paths of extracted archives are printed,
one per line. The first corrupt archive stops the command.

Examples:
  dlxt extract data.tar.gz -d ./data
  dlxt extract --on-unsupported copy *.gz notes.txt -d out`,
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

			opts, err := s.extractOptions()
			if err != nil {
				return err
			}

			paths, err := extract.NewExtractor(opts).ExtractAll(GetContext(cmd), args, outDir)
			printPaths(s.out, paths)
			return err
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Output directory")
	return cmd
}
