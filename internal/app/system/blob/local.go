package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Local stores objects under a directory and serves them from a URL prefix
// (the HTTP layer mounts the directory there).
type Local struct {
	Root      string
	URLPrefix string
}

var _ Store = (*Local)(nil)

// NewLocal creates root if needed.
func NewLocal(root, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create %s: %w", root, err)
	}
	return &Local{Root: root, URLPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

func (l *Local) file(objPath string) (string, error) {
	p, err := CleanPath(objPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.Root, filepath.FromSlash(p)), nil
}

func (l *Local) Put(ctx context.Context, objPath string, r io.Reader, _ *PutOptions) error {
	dst, err := l.file(objPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (l *Local) URL(_ context.Context, objPath string) (string, error) {
	p, err := CleanPath(objPath)
	if err != nil {
		return "", err
	}
	return l.URLPrefix + "/" + p, nil
}

func (l *Local) Delete(_ context.Context, objPath string) error {
	dst, err := l.file(objPath)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Handler serves stored objects by path. Directories are not listed.
func (l *Local) Handler() http.Handler {
	files := http.FileServer(http.Dir(l.Root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
