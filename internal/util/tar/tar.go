package tar

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rescale/dlxt/internal/constants"
	"github.com/rescale/dlxt/internal/util/buffers"
)

// ErrUnsafePath is returned when an entry name or link target would land
// outside the extraction directory.
var ErrUnsafePath = errors.New("tar entry escapes destination directory")

// maxLinkDepth bounds symlink chains followed while resolving entry paths.
const maxLinkDepth = 40

// Unpack reads a tar stream from r and materializes it under dir.
// Directories, regular files, symlinks and hard links are created; device
// nodes and FIFOs are ignored. dir must already exist.
//
// Entry paths and link targets are resolved through the symlinks already on
// disk, including ones created earlier in the same stream, and anything that
// would land outside dir fails with ErrUnsafePath.
func Unpack(r io.Reader, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}

		name, err := entryName(header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			target, err := resolve(root, root, name, 0)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(target, dirMode(header)); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}

		case tar.TypeReg:
			target, err := entryTarget(root, name)
			if err != nil {
				return err
			}
			if err := writeFile(target, tr, header); err != nil {
				return err
			}

		case tar.TypeSymlink:
			target, err := entryTarget(root, name)
			if err != nil {
				return err
			}
			if filepath.IsAbs(header.Linkname) || path.IsAbs(header.Linkname) {
				return fmt.Errorf("%w: %s -> %s", ErrUnsafePath, name, header.Linkname)
			}
			if _, err := resolve(root, filepath.Dir(target), header.Linkname, 0); err != nil {
				return fmt.Errorf("%s -> %s: %w", name, header.Linkname, err)
			}
			if err := prepareTarget(target); err != nil {
				return err
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("failed to create symlink %s: %w", target, err)
			}

		case tar.TypeLink:
			target, err := entryTarget(root, name)
			if err != nil {
				return err
			}
			linkName, err := entryName(header.Linkname)
			if err != nil {
				return err
			}
			linkTarget, err := resolve(root, root, linkName, 0)
			if err != nil {
				return err
			}
			if err := prepareTarget(target); err != nil {
				return err
			}
			if err := os.Link(linkTarget, target); err != nil {
				return fmt.Errorf("failed to create hard link %s: %w", target, err)
			}

		default:
			// Char/block devices, FIFOs, PAX global headers
			continue
		}
	}
}

// entryName rejects absolute entry names and returns the name in slash form
// without a trailing separator.
func entryName(name string) (string, error) {
	if filepath.IsAbs(name) || path.IsAbs(filepath.ToSlash(name)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return strings.TrimSuffix(filepath.ToSlash(name), "/"), nil
}

// entryTarget returns the real path at which name is created: its parent is
// resolved through existing symlinks, its last element is not.
func entryTarget(root, name string) (string, error) {
	parent, err := resolve(root, root, path.Dir(name), 0)
	if err != nil {
		return "", err
	}
	base := path.Base(name)
	target := filepath.Join(parent, base)
	if base == "." || base == ".." || base == "/" || !within(root, target) || target == root {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

// resolve walks rel from base one element at a time, following symlinks that
// exist on disk, and returns the real path. base must be a real path inside
// root. Elements that do not exist yet are taken as plain directories, which
// is what Unpack will create for them.
func resolve(root, base, rel string, depth int) (string, error) {
	cur := base
	for _, elem := range strings.Split(filepath.ToSlash(rel), "/") {
		switch elem {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
			if !within(root, cur) {
				return "", fmt.Errorf("%w: %s", ErrUnsafePath, rel)
			}
			continue
		}

		next := filepath.Join(cur, elem)
		info, err := os.Lstat(next)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			cur = next
			continue
		case err != nil:
			return "", fmt.Errorf("failed to inspect %s: %w", next, err)
		case info.Mode()&os.ModeSymlink == 0:
			cur = next
			continue
		}

		if depth >= maxLinkDepth {
			return "", fmt.Errorf("%w: too many levels of symlinks at %s", ErrUnsafePath, next)
		}
		dest, err := os.Readlink(next)
		if err != nil {
			return "", fmt.Errorf("failed to read link %s: %w", next, err)
		}
		if filepath.IsAbs(dest) {
			if !within(root, dest) {
				return "", fmt.Errorf("%w: %s -> %s", ErrUnsafePath, next, dest)
			}
			inRoot, _ := filepath.Rel(root, dest)
			cur, err = resolve(root, root, inRoot, depth+1)
		} else {
			cur, err = resolve(root, cur, dest, depth+1)
		}
		if err != nil {
			return "", err
		}
	}
	if !within(root, cur) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, rel)
	}
	return cur, nil
}

func writeFile(target string, r io.Reader, header *tar.Header) error {
	if err := prepareTarget(target); err != nil {
		return err
	}

	perm := header.FileInfo().Mode().Perm()
	if perm == 0 {
		perm = constants.FilePerm
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", target, err)
	}
	if _, err := buffers.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write file %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %w", target, err)
	}

	if !header.ModTime.IsZero() {
		if err := os.Chtimes(target, header.ModTime, header.ModTime); err != nil {
			return fmt.Errorf("failed to set modification time of %s: %w", target, err)
		}
	}
	return nil
}

// prepareTarget makes sure the parent directory exists and that an existing
// symlink at target is removed rather than written through.
func prepareTarget(target string) error {
	if err := os.MkdirAll(filepath.Dir(target), constants.DirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(target), err)
	}
	if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("failed to replace symlink %s: %w", target, err)
		}
	}
	return nil
}

func dirMode(header *tar.Header) os.FileMode {
	perm := header.FileInfo().Mode().Perm()
	// Keep directories traversable by the owner.
	return perm | 0700
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Create writes a tar stream of the contents of srcDir to w. Entry names are
// relative to srcDir. Used to build archives for fixtures and round trips.
func Create(srcDir string, w io.Writer) error {
	info, err := os.Stat(srcDir)
	if err != nil {
		return fmt.Errorf("source directory does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source path is not a directory: %s", srcDir)
	}

	tw := tar.NewWriter(w)

	err = filepath.Walk(srcDir, func(filePath string, fileInfo os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip the root directory itself
		if filePath == srcDir {
			return nil
		}

		relPath, err := filepath.Rel(srcDir, filePath)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}

		var link string
		if fileInfo.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(filePath); err != nil {
				return fmt.Errorf("failed to read link: %w", err)
			}
		}

		header, err := tar.FileInfoHeader(fileInfo, link)
		if err != nil {
			return fmt.Errorf("failed to create tar header: %w", err)
		}
		header.Name = filepath.ToSlash(relPath)
		if fileInfo.IsDir() {
			header.Name += "/"
		}

		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}

		if fileInfo.Mode().IsRegular() {
			file, err := os.Open(filePath)
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer file.Close()

			if _, err := buffers.Copy(tw, file); err != nil {
				return fmt.Errorf("failed to write file contents: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create tar: %w", err)
	}

	return tw.Close()
}
