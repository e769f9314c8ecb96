// Package localfs provides local Markdown file access and the local sync
// endpoint.
package localfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/jbctechsolutions/docsync/internal/domain/errors"
)

const (
	// Extension is appended to every file created by the local endpoint.
	Extension = ".md"

	dirPerm  = 0755
	filePerm = 0644
)

// FileAccess reads and writes text files on an afero filesystem.
type FileAccess struct {
	fs afero.Fs
}

// NewFileAccess creates a file accessor. A nil fs means the OS filesystem.
func NewFileAccess(fs afero.Fs) *FileAccess {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileAccess{fs: fs}
}

// ReadText implements ports.FileAccessPort. Files whose content is not text
// are rejected.
func (f *FileAccess) ReadText(path string) (string, error) {
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewError(errors.CodeSourceNotFound, fmt.Sprintf("file %s does not exist", path), err)
		}
		return "", errors.NewError(errors.CodeStore, fmt.Sprintf("failed to read %s", path), err)
	}
	if len(data) > 0 && !isText(data) {
		return "", errors.NewError(errors.CodeValidation,
			fmt.Sprintf("%s is not a text file (%s)", path, mimetype.Detect(data).String()), nil)
	}
	return string(data), nil
}

func isText(data []byte) bool {
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	return false
}

// WriteTextAtomic implements ports.FileAccessPort. The content is written to a
// temporary file in the target directory, synced and renamed over path.
func (f *FileAccess) WriteTextAtomic(path, text string) (err error) {
	dir := filepath.Dir(path)
	if err := f.fs.MkdirAll(dir, dirPerm); err != nil {
		return errors.NewError(errors.CodeStore, fmt.Sprintf("failed to create directory %s", dir), err)
	}

	tmp, err := afero.TempFile(f.fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.NewError(errors.CodeStore, "failed to create temporary file", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = f.fs.Remove(tmpName)
		}
	}()

	if _, err = tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		return errors.NewError(errors.CodeStore, fmt.Sprintf("failed to write %s", tmpName), err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.NewError(errors.CodeStore, fmt.Sprintf("failed to sync %s", tmpName), err)
	}
	if err = tmp.Close(); err != nil {
		return errors.NewError(errors.CodeStore, fmt.Sprintf("failed to close %s", tmpName), err)
	}
	if err = f.fs.Chmod(tmpName, filePerm); err != nil {
		return errors.NewError(errors.CodeStore, fmt.Sprintf("failed to set permissions on %s", tmpName), err)
	}
	if err = f.fs.Rename(tmpName, path); err != nil {
		return errors.NewError(errors.CodeStore, fmt.Sprintf("failed to replace %s", path), err)
	}
	return nil
}

// Exists implements ports.FileAccessPort.
func (f *FileAccess) Exists(path string) (bool, error) {
	ok, err := afero.Exists(f.fs, path)
	if err != nil {
		return false, errors.NewError(errors.CodeStore, fmt.Sprintf("failed to stat %s", path), err)
	}
	return ok, nil
}

// Glob returns the files under dir matching pattern, a slash-separated glob
// that may use ** to cross directories. Paths are joined to dir and sorted. A
// missing dir matches nothing.
func (f *FileAccess) Glob(dir, pattern string) ([]string, error) {
	ok, err := f.Exists(dir)
	if err != nil || !ok {
		return nil, err
	}

	matches, err := doublestar.Glob(afero.NewIOFS(afero.NewBasePathFs(f.fs, dir)), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.NewError(errors.CodeValidation, fmt.Sprintf("invalid pattern %q", pattern), err)
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Join(dir, filepath.FromSlash(m)))
	}
	sort.Strings(paths)
	return paths, nil
}
