// Package codec provides the three stream decompressors used by extraction:
// xz, gzip and bzip2. Each codec is an opaque transform from compressed bytes
// to raw bytes; the matching compressors exist for fixtures and round-trip
// checks.
package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/rescale/dlxt/internal/util/buffers"
)

// Codec identifies a compression algorithm by its file suffix.
type Codec string

const (
	XZ    Codec = "xz"
	Gzip  Codec = "gz"
	Bzip2 Codec = "bz2"
)

// ErrUnknownCodec is returned for suffixes outside xz, gz and bz2.
var ErrUnknownCodec = errors.New("unknown compression codec")

// All lists the supported codecs.
var All = []Codec{XZ, Gzip, Bzip2}

// ParseCodec maps a suffix ("xz", "gz", "bz2") to its codec.
func ParseCodec(s string) (Codec, error) {
	switch c := Codec(s); c {
	case XZ, Gzip, Bzip2:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCodec, s)
	}
}

func (c Codec) String() string { return string(c) }

// NewReader wraps r with a decompressing reader. Close releases decoder
// state; it does not close r.
func NewReader(c Codec, r io.Reader) (io.ReadCloser, error) {
	switch c {
	case XZ:
		zr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		return io.NopCloser(zr), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil
	case Bzip2:
		zr, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, fmt.Errorf("bzip2: %w", err)
		}
		return zr, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, string(c))
	}
}

// NewWriter wraps w with a compressing writer. The caller must Close it to
// flush the stream trailer; Close does not close w.
func NewWriter(c Codec, w io.Writer) (io.WriteCloser, error) {
	switch c {
	case XZ:
		zw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		return zw, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Bzip2:
		zw, err := bzip2.NewWriter(w, nil)
		if err != nil {
			return nil, fmt.Errorf("bzip2: %w", err)
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, string(c))
	}
}

// Decode decompresses src into dst and returns the number of raw bytes written.
func Decode(c Codec, dst io.Writer, src io.Reader) (int64, error) {
	zr, err := NewReader(c, src)
	if err != nil {
		return 0, err
	}
	n, err := buffers.Copy(dst, zr)
	if cerr := zr.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("%s decode: %w", c, err)
	}
	return n, nil
}

// Encode compresses src into dst. Used to build fixtures.
func Encode(c Codec, dst io.Writer, src io.Reader) error {
	zw, err := NewWriter(c, dst)
	if err != nil {
		return err
	}
	if _, err := buffers.Copy(zw, src); err != nil {
		zw.Close()
		return fmt.Errorf("%s encode: %w", c, err)
	}
	return zw.Close()
}
