// Package blob stores uploaded images (project covers, identity documents)
// and hands out URLs for them.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidPath is returned for empty or escaping object paths.
var ErrInvalidPath = errors.New("blob: invalid object path")

// PutOptions describes an upload.
type PutOptions struct {
	ContentType string
}

// Store is an object store addressed by slash-separated paths.
type Store interface {
	Put(ctx context.Context, objPath string, r io.Reader, opts *PutOptions) error
	// URL returns a URL a browser can fetch the object from.
	URL(ctx context.Context, objPath string) (string, error)
	Delete(ctx context.Context, objPath string) error
}

// CleanPath normalizes p and rejects paths that climb out of the root.
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrInvalidPath
		}
	}
	c := strings.TrimPrefix(path.Clean("/"+p), "/")
	if c == "" {
		return "", ErrInvalidPath
	}
	return c, nil
}

// ProjectImagePath is where a project's cover image lives.
func ProjectImagePath(creatorID string) string {
	return fmt.Sprintf("proyectos/%s/%s", creatorID, uuid.NewString())
}

// IdentityPrefix holds identity documents; only staff may read it.
const IdentityPrefix = "verificaciones/"

// IdentityImagePath is where a user's identity document image lives.
func IdentityImagePath(userID string, at time.Time) string {
	return fmt.Sprintf(IdentityPrefix+"%s/frontal_%d", userID, at.UnixMilli())
}
