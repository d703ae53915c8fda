// Package source opens the named input streams a run reads from. Roots are
// local directories, s3://bucket/prefix locations or http(s) base URLs.
package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"userstats/internal/etlerr"
)

// Opener opens one named input under a root.
//
// Implementations must return an error of kind etlerr.KindMissingInput when
// the input cannot be opened, so callers can tell it apart from parse errors.
type Opener interface {
	Open(ctx context.Context, root, name string) (io.ReadCloser, error)
}

// FS opens inputs from the local filesystem.
type FS struct{}

func (FS) Open(ctx context.Context, root, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(root, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, etlerr.MissingInput("open "+path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, etlerr.MissingInput("stat "+path, err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, etlerr.MissingInput("open "+path, errors.New("is a directory"))
	}
	return f, nil
}

// Router dispatches on the root: s3:// roots go to S3, http(s):// roots to
// HTTP, everything else to Local.
type Router struct {
	Local Opener
	S3    Opener
	HTTP  Opener
}

func (r Router) Open(ctx context.Context, root, name string) (io.ReadCloser, error) {
	switch {
	case IsS3(root):
		if r.S3 == nil {
			return nil, etlerr.Config("open "+root, errors.New("s3 roots are not configured"))
		}
		return r.S3.Open(ctx, root, name)
	case IsHTTP(root):
		if r.HTTP == nil {
			return nil, etlerr.Config("open "+root, errors.New("http roots are not configured"))
		}
		return r.HTTP.Open(ctx, root, name)
	}
	local := r.Local
	if local == nil {
		local = FS{}
	}
	return local.Open(ctx, root, name)
}

// IsS3 reports whether root names an S3 location.
func IsS3(root string) bool {
	return strings.HasPrefix(strings.ToLower(root), "s3://")
}
