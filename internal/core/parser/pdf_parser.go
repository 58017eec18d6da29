package parser

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/markdave123-py/docuquery/internal/models"
)

// PDFParser reads every page of a PDF, in order. Pages without a text layer
// come back with empty content so page numbers stay aligned with the source.
type PDFParser struct{}

func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

func (p *PDFParser) Parse(ctx context.Context, path string) (pages []models.RawPage, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrCorruptDocument, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]models.RawPage, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(i)
		text := ""
		if !page.V.IsNull() {
			text, err = page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("read page %d: %w", i, err)
			}
		}
		pages = append(pages, models.RawPage{PageContent: text, PageNumber: i})
	}
	return pages, nil
}
