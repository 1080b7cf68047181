// Package extract unpacks downloaded archives into a directory. Formats are
// recognized from file names only: xz, gzip and bzip2 streams, tar, and tar
// wrapped in one of those codecs.
package extract

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"

	"github.com/rescale/dlxt/internal/codec"
	"github.com/rescale/dlxt/internal/constants"
	"github.com/rescale/dlxt/internal/diskspace"
	"github.com/rescale/dlxt/internal/logging"
	"github.com/rescale/dlxt/internal/progress"
	"github.com/rescale/dlxt/internal/util/buffers"
	"github.com/rescale/dlxt/internal/util/paths"
	"github.com/rescale/dlxt/internal/util/tar"
)

// Options configures an Extractor.
type Options struct {
	OnUnsupported UnsupportedPolicy

	// CheckContent compares leading bytes with the format implied by the
	// name and warns on mismatch.
	CheckContent bool

	// Progress receives per-archive byte counts of the compressed input.
	Progress progress.Reporter

	Logger *logging.Logger
}

// Extractor processes archives one at a time.
type Extractor struct {
	opts     Options
	logger   *logging.Logger
	progress progress.Reporter
}

type input struct {
	path string
	name string
	size int64
}

// NewExtractor creates an Extractor.
func NewExtractor(opts Options) *Extractor {
	return &Extractor{
		opts:     opts,
		logger:   logging.OrNop(opts.Logger),
		progress: progress.OrNoOp(opts.Progress),
	}
}

// ExtractAll extracts every recognized archive in sources into dir and
// returns the source paths that were extracted, in input order. Unsupported
// files are skipped or copied per OnUnsupported and never appear in the
// result. The first decode or unpack failure stops processing; the paths
// extracted before it are returned with the error.
func (x *Extractor) ExtractAll(ctx context.Context, sources []string, dir string) ([]string, error) {
	inputs := x.regularFiles(paths.Dedup(sources))

	if err := os.MkdirAll(dir, constants.DirPerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	extracted := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return extracted, err
		}

		ne, ok := Split(in.name)
		if !ok {
			if err := x.unsupported(in, dir); err != nil {
				return extracted, fmt.Errorf("extract %s: %w", in.path, err)
			}
			continue
		}

		if err := x.extractOne(in, ne, dir); err != nil {
			msg := "Extraction failed"
			if diskspace.IsInsufficientSpaceError(err) {
				msg = "Not enough disk space to extract"
			}
			x.logger.Error().Err(err).Str("path", in.path).Str("dir", dir).Msg(msg)
			return extracted, fmt.Errorf("extract %s: %w", in.path, err)
		}
		x.logger.Info().Str("path", in.path).Str("format", string(ne.Tag)).Str("dir", dir).Msg("Extracted")
		extracted = append(extracted, in.path)
	}
	return extracted, nil
}

// regularFiles keeps sources that exist and are regular files, following
// symlinks.
func (x *Extractor) regularFiles(sources []string) []input {
	out := make([]input, 0, len(sources))
	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil {
			x.logger.Debug().Err(err).Str("path", src).Msg("Cannot stat input, ignoring")
			continue
		}
		if !info.Mode().IsRegular() {
			x.logger.Debug().Str("path", src).Msg("Not a regular file, ignoring")
			continue
		}
		out = append(out, input{path: src, name: filepath.Base(src), size: info.Size()})
	}
	return out
}

func (x *Extractor) unsupported(in input, dir string) error {
	switch x.opts.OnUnsupported {
	case SkipUnsupported:
		x.logger.Info().Str("path", in.path).Msg("Unsupported format, skipping")
		return nil
	case CopyUnsupported:
		return x.copyFile(in, filepath.Join(dir, in.name))
	default:
		panic(fmt.Sprintf("extract: unhandled unsupported-format policy %v", x.opts.OnUnsupported))
	}
}

func (x *Extractor) extractOne(in input, ne NameExt, dir string) error {
	switch ne.Tag {
	case TagTar:
		return x.unpack(in.path, in.size, dir, ne)

	case TagXz, TagGz, TagBz2:
		return x.decode(in, ne, filepath.Join(dir, ne.Name), os.O_TRUNC)

	case TagTarXz, TagTarGz, TagTarBz2:
		intermediate, err := x.intermediatePath(dir, ne)
		if err != nil {
			return err
		}
		defer func() {
			if err := os.Remove(intermediate); err != nil && !os.IsNotExist(err) {
				x.logger.Warn().Err(err).Str("path", intermediate).Msg("Cannot remove intermediate tar")
			}
		}()
		if err := x.decode(in, ne, intermediate, os.O_EXCL); err != nil {
			return err
		}
		info, err := os.Stat(intermediate)
		if err != nil {
			return err
		}
		return x.unpack(intermediate, info.Size(), dir, NameExt{Name: ne.Name, Tag: TagTar})

	default:
		panic(fmt.Sprintf("extract: unhandled format tag %q for %s", ne.Tag, in.path))
	}
}

// intermediatePath picks the file a compressed tar is decoded into:
// bareName.tar in dir, or a numbered variant when that name is taken, so an
// existing file is never overwritten or removed.
func (x *Extractor) intermediatePath(dir string, ne NameExt) (string, error) {
	res, err := paths.Resolve(dir, ne.Name+constants.IntermediateTarExt, paths.Rename)
	if err != nil {
		return "", err
	}
	if res.Renamed {
		x.logger.Debug().Str("name", ne.Name+constants.IntermediateTarExt).Str("using", res.Name).Msg("Intermediate tar name taken")
	}
	return res.Path, nil
}

// decode decompresses in into dst. mode is os.O_TRUNC to overwrite an
// existing dst or os.O_EXCL to refuse one.
func (x *Extractor) decode(in input, ne NameExt, dst string, mode int) error {
	c, ok := ne.Codec()
	if !ok {
		panic(fmt.Sprintf("extract: tag %q has no codec", ne.Tag))
	}
	if err := diskspace.CheckForExtraction(dst, in.size); err != nil {
		return err
	}

	f, err := os.Open(in.path)
	if err != nil {
		return err
	}
	defer f.Close()
	r := x.inspect(f, in.path, ne)

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|mode, constants.FilePerm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	x.progress.Start(in.size, "Decompressing "+in.name)
	n, err := codec.Decode(c, out, progress.NewProgressReader(r, x.progress))
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close %s: %w", dst, cerr)
	}
	if err != nil {
		x.progress.Error(err)
		return err
	}
	x.progress.Finish()

	x.logger.Debug().Str("from", in.path).Str("to", dst).Int64("bytes", n).Msg("Decompressed")
	return nil
}

// unpack materializes the tar file at src under dir.
func (x *Extractor) unpack(src string, size int64, dir string, ne NameExt) error {
	if err := diskspace.CheckForExtraction(filepath.Join(dir, ne.Name), size); err != nil {
		return err
	}

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	r := x.inspect(f, src, ne)

	x.progress.Start(size, "Unpacking "+filepath.Base(src))
	if err := tar.Unpack(progress.NewProgressReader(r, x.progress), dir); err != nil {
		x.progress.Error(err)
		return err
	}
	x.progress.Finish()
	return nil
}

// inspect buffers f and, when content checks are on, warns if its magic
// number disagrees with the name.
func (x *Extractor) inspect(f *os.File, path string, ne NameExt) io.Reader {
	br := bufio.NewReaderSize(f, constants.CopyBufferSize)
	if !x.opts.CheckContent {
		return br
	}

	head, _ := br.Peek(constants.MagicHeaderSize)
	want := ne.magic()
	kind, _ := filetype.Match(head)
	if kind == filetype.Unknown || kind.Extension != want {
		got := "unknown"
		if kind != filetype.Unknown {
			got = kind.Extension
		}
		x.logger.Warn().
			Str("path", path).
			Str("expected", want).
			Str("detected", got).
			Msg("File content does not match its name")
	}
	return br
}

// copyFile copies an unsupported input verbatim. Copying a file onto itself
// is a no-op.
func (x *Extractor) copyFile(in input, dst string) error {
	if info, err := os.Stat(dst); err == nil {
		srcInfo, serr := os.Stat(in.path)
		if serr == nil && os.SameFile(info, srcInfo) {
			x.logger.Debug().Str("path", in.path).Msg("Unsupported file already in output directory")
			return nil
		}
	}
	if err := diskspace.CheckForExtraction(dst, in.size); err != nil {
		return err
	}

	src, err := os.Open(in.path)
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePerm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := buffers.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}

	x.logger.Info().Str("path", in.path).Str("to", dst).Msg("Unsupported format, copied")
	return nil
}
