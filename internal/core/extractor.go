package core

import (
	"context"

	"github.com/markdave123-py/docuquery/internal/models"
)

// DocumentParser decodes a local file into its pages, in source order.
type DocumentParser interface {
	Parse(ctx context.Context, path string) ([]models.RawPage, error)
}
