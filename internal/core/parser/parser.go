// Package parser turns downloaded files into pages of text.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/markdave123-py/docuquery/internal/core"
	"github.com/markdave123-py/docuquery/internal/models"
)

var (
	// ErrCorruptDocument means the file claims to be a PDF but can't be read.
	ErrCorruptDocument = errors.New("corrupt document")

	// ErrUnsupportedDocument means no parser understands the file.
	ErrUnsupportedDocument = errors.New("unsupported document")
)

var pdfMagic = []byte("%PDF-")

// Parser picks the PDF parser when the file starts with the PDF header and
// falls back to docconv for everything else. Extensions are not trusted.
type Parser struct {
	pdf      core.DocumentParser
	fallback core.DocumentParser
	logger   zerolog.Logger
}

var _ core.DocumentParser = (*Parser)(nil)

// NewParser builds the routing parser. useReadability is handed to docconv
// for HTML.
func NewParser(useReadability bool, logger zerolog.Logger) *Parser {
	return &Parser{
		pdf:      NewPDFParser(),
		fallback: NewDocconvParser(useReadability),
		logger:   logger.With().Str("component", "parser").Logger(),
	}
}

func (p *Parser) Parse(ctx context.Context, path string) ([]models.RawPage, error) {
	isPDF, err := sniffPDF(path)
	if err != nil {
		return nil, err
	}

	target, kind := p.fallback, "docconv"
	if isPDF {
		target, kind = p.pdf, "pdf"
	}

	pages, err := target.Parse(ctx, path)
	if err != nil {
		return nil, err
	}
	if kind == "docconv" && len(pages) == 1 && pages[0].PageContent == "" {
		p.logger.Warn().Str("path", path).Msg("docconv extracted no text")
	}
	p.logger.Debug().Str("path", path).Str("parser", kind).Int("pages", len(pages)).Msg("document parsed")
	return pages, nil
}

func sniffPDF(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read header: %w", err)
	}
	return bytes.Equal(head[:n], pdfMagic), nil
}
