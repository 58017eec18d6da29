package core

import (
	"context"
	"errors"
	"sync"

	"github.com/markdave123-py/docuquery/internal/models"
)

// ErrObjectNotFound is returned by an ObjectClient when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectClient resolves a storage key to a file on local disk.
// It's abstract so S3 can be swapped for MinIO, GCS or a plain directory.
type ObjectClient interface {
	Download(ctx context.Context, key string) (*LocalFile, error)
}

// VectorIndex is the write side of a vector database.
//
// Upsert inserts or overwrites records by ID inside the given namespace ("" is
// the shared default) and reports how many records were written.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, records []models.EmbeddedRecord) (int, error)
}

// LocalFile is a downloaded object. Close releases any temporary storage the
// object client created for it; it is safe to call more than once.
type LocalFile struct {
	Key  string
	Path string
	Size int64

	release func() error
	once    sync.Once
	err     error
}

// NewLocalFile wraps a path on disk. release may be nil.
func NewLocalFile(key, path string, size int64, release func() error) *LocalFile {
	return &LocalFile{Key: key, Path: path, Size: size, release: release}
}

func (f *LocalFile) Close() error {
	if f == nil {
		return nil
	}
	f.once.Do(func() {
		if f.release != nil {
			f.err = f.release()
		}
	})
	return f.err
}
