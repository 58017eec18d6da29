package parser

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF assembles a minimal PDF with one text line per page and a correct
// cross-reference table.
func buildPDF(pages ...string) []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // page tree, filled below
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	var kids []string
	for i, text := range pages {
		pageObj, contentObj := 4+2*i, 5+2*i
		kids = append(kids, fmt.Sprintf("%d 0 R", pageObj))

		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", contentObj),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestPDFParser_Parse(t *testing.T) {
	ctx := context.Background()

	t.Run("pages in order", func(t *testing.T) {
		path := writeFile(t, "doc.pdf", buildPDF("Hello PDF", "Second page"))

		pages, err := NewPDFParser().Parse(ctx, path)
		require.NoError(t, err)
		require.Len(t, pages, 2)

		assert.Equal(t, 1, pages[0].PageNumber)
		assert.Contains(t, pages[0].PageContent, "Hello")
		assert.Equal(t, 2, pages[1].PageNumber)
		assert.Contains(t, pages[1].PageContent, "Second")
	})

	t.Run("blank page kept", func(t *testing.T) {
		path := writeFile(t, "blank.pdf", buildPDF("Cover", ""))

		pages, err := NewPDFParser().Parse(ctx, path)
		require.NoError(t, err)
		require.Len(t, pages, 2)
		assert.Empty(t, strings.TrimSpace(pages[1].PageContent))
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := writeFile(t, "bad.pdf", []byte("%PDF-1.4\nthis is not really a pdf"))

		_, err := NewPDFParser().Parse(ctx, path)
		assert.ErrorIs(t, err, ErrCorruptDocument)
	})

	t.Run("cancelled", func(t *testing.T) {
		path := writeFile(t, "doc.pdf", buildPDF("Hello PDF"))
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := NewPDFParser().Parse(cctx, path)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestParser_Routing(t *testing.T) {
	ctx := context.Background()
	p := NewParser(false, zerolog.Nop())

	t.Run("pdf detected by header not extension", func(t *testing.T) {
		path := writeFile(t, "upload.bin", buildPDF("Sniffed"))

		pages, err := p.Parse(ctx, path)
		require.NoError(t, err)
		require.Len(t, pages, 1)
		assert.Contains(t, pages[0].PageContent, "Sniffed")
	})

	t.Run("text goes through docconv", func(t *testing.T) {
		path := writeFile(t, "notes.txt", []byte("Hello from docconv\nsecond line\n"))

		pages, err := p.Parse(ctx, path)
		require.NoError(t, err)
		require.Len(t, pages, 1)
		assert.Equal(t, 1, pages[0].PageNumber)
		assert.Equal(t, "Hello from docconv\nsecond line", pages[0].PageContent)
	})

	t.Run("empty text file is one empty page", func(t *testing.T) {
		path := writeFile(t, "empty.txt", []byte("  \n"))

		pages, err := p.Parse(ctx, path)
		require.NoError(t, err)
		require.Len(t, pages, 1)
		assert.Empty(t, pages[0].PageContent)
	})

	t.Run("unknown format", func(t *testing.T) {
		path := writeFile(t, "blob.xyz", []byte{0x00, 0x01, 0x02})

		pages, err := p.Parse(ctx, path)
		assert.ErrorIs(t, err, ErrUnsupportedDocument)
		assert.Nil(t, pages)
	})

	t.Run("no extension", func(t *testing.T) {
		path := writeFile(t, "README", []byte("plain words"))

		_, err := p.Parse(ctx, path)
		assert.ErrorIs(t, err, ErrUnsupportedDocument)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := p.Parse(ctx, filepath.Join(t.TempDir(), "nope.pdf"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
