package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// UnsupportedPolicy decides what happens to inputs whose name matches no
// known archive format.
type UnsupportedPolicy int

const (
	// SkipUnsupported leaves the file where it is.
	SkipUnsupported UnsupportedPolicy = iota
	// CopyUnsupported copies the file verbatim into the output directory.
	CopyUnsupported
)

// ErrUnknownPolicy is returned by ParseUnsupportedPolicy for unrecognized names.
var ErrUnknownPolicy = errors.New("unknown unsupported-format policy")

func (p UnsupportedPolicy) String() string {
	switch p {
	case SkipUnsupported:
		return "skip"
	case CopyUnsupported:
		return "copy"
	default:
		return "unknown(" + strconv.Itoa(int(p)) + ")"
	}
}

// ParseUnsupportedPolicy parses "skip" or "copy" (case-insensitive). An empty
// string means skip.
func ParseUnsupportedPolicy(s string) (UnsupportedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip", "":
		return SkipUnsupported, nil
	case "copy":
		return CopyUnsupported, nil
	default:
		return SkipUnsupported, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}
