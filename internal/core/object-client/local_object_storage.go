package objectclient

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/markdave123-py/docuquery/internal/core"
)

// LocalClient serves keys straight from a directory on disk. Files are
// used in place, so closing them is a no-op.
type LocalClient struct {
	root string
}

func NewLocalClient(root string) (*LocalClient, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local store: %s is not a directory", abs)
	}
	return &LocalClient{root: abs}, nil
}

func (c *LocalClient) Download(ctx context.Context, key string) (*core.LocalFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Rooting the key first keeps "../" from escaping the store.
	p := filepath.Join(c.root, filepath.Clean("/"+key))

	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", core.ErrObjectNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", key)
	}
	return core.NewLocalFile(key, p, info.Size(), nil), nil
}
