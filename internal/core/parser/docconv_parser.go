package parser

import (
	"context"
	"fmt"
	"os"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/docuquery/internal/models"
)

// docconvTypes are the MIME types docconv.Convert has a converter for.
// Anything else comes back from docconv as an empty body with no error.
var docconvTypes = map[string]bool{
	"application/msword":                                                        true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/vnd.oasis.opendocument.text":                                   true,
	"application/vnd.apple.pages":                                               true,
	"application/rtf":                                                           true,
	"text/html":                                                                 true,
	"text/xml":                                                                  true,
	"text/plain":                                                                true,
	"image/jpeg":                                                                true,
	"image/png":                                                                 true,
	"image/tif":                                                                 true,
	"image/tiff":                                                                true,
}

// DocconvParser handles the non-PDF formats docconv understands (docx, odt,
// html, xml, txt, ...). These formats carry no page structure, so the whole
// body becomes page 1.
type DocconvParser struct {
	useReadability bool
}

func NewDocconvParser(useReadability bool) *DocconvParser {
	return &DocconvParser{useReadability: useReadability}
}

func (p *DocconvParser) Parse(ctx context.Context, path string) ([]models.RawPage, error) {
	mimeType := docconv.MimeTypeByExtension(path)
	if !docconvTypes[mimeType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, mimeType)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	type result struct {
		res *docconv.Response
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer f.Close()
		res, err := docconv.Convert(f, mimeType, p.useReadability)
		done <- result{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptDocument, mimeType, out.err)
		}
		return []models.RawPage{{PageContent: out.res.Body, PageNumber: 1}}, nil
	}
}
