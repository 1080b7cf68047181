package extract

import (
	"strings"

	"github.com/rescale/dlxt/internal/codec"
)

// Tag names an archive format recognized from a file name suffix.
type Tag string

const (
	TagTarBz2 Tag = "tar.bz2"
	TagTarGz  Tag = "tar.gz"
	TagTarXz  Tag = "tar.xz"
	TagTar    Tag = "tar"
	TagBz2    Tag = "bz2"
	TagGz     Tag = "gz"
	TagXz     Tag = "xz"
)

// suffixes is matched in order; compound tags come first so that
// "a.tar.gz" is never read as a gzip of "a.tar".
var suffixes = []Tag{TagTarBz2, TagTarGz, TagTarXz, TagTar, TagBz2, TagGz, TagXz}

// NameExt is a file name split into its bare name and format tag.
type NameExt struct {
	Name string
	Tag  Tag
}

// Split recognizes the archive format of a base file name. The bare name may
// contain dots but must be non-empty and free of path separators. Matching is
// case-sensitive.
func Split(fileName string) (NameExt, bool) {
	if strings.ContainsAny(fileName, `/\`) {
		return NameExt{}, false
	}
	for _, tag := range suffixes {
		name, ok := strings.CutSuffix(fileName, "."+string(tag))
		if ok && name != "" {
			return NameExt{Name: name, Tag: tag}, true
		}
	}
	return NameExt{}, false
}

// IsTar reports whether the tag ends in a tar stream.
func (t Tag) IsTar() bool {
	return t == TagTar || strings.HasPrefix(string(t), "tar.")
}

// Codec returns the compression layer of the tag. It returns false for a
// plain tar.
func (n NameExt) Codec() (codec.Codec, bool) {
	if n.Tag == TagTar {
		return "", false
	}
	s := string(n.Tag)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	c, err := codec.ParseCodec(s)
	if err != nil {
		return "", false
	}
	return c, true
}

// magic is the filetype extension expected at the start of the file.
func (n NameExt) magic() string {
	if c, ok := n.Codec(); ok {
		return c.String()
	}
	return "tar"
}
