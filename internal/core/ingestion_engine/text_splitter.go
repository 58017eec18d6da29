package ingestion_engine

import (
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/docuquery/internal/models"
)

const (
	DefaultChunkSize     = 1000  // characters
	DefaultChunkOverlap  = 200   // characters
	DefaultTruncateBytes = 36000 // bytes of page text kept as display metadata
)

// DefaultSeparators are the split boundaries tried from coarsest to finest:
// paragraphs, sentences, words. Below the last level text is hard-cut.
var DefaultSeparators = [][]string{
	{"\n\n"},
	{". ", "! ", "? "},
	{" "},
}

var newlineStripper = strings.NewReplacer("\r", "", "\n", "")

// CleanPageText removes line breaks from page text. They are replaced with
// nothing, not a space, so words split across lines are glued together.
func CleanPageText(text string) string {
	return newlineStripper.Replace(text)
}

// TruncateStringByBytes returns the longest prefix of s that fits in n bytes
// without cutting a multi-byte character in half.
func TruncateStringByBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// SplitterConfig tunes the TextSplitter.
//
// ChunkSize:     maximum characters per chunk.
// ChunkOverlap:  maximum characters repeated from the end of one chunk at the start of the next.
// TruncateBytes: byte budget of the page text copied onto every chunk.
// Separators:    split levels, coarsest first; nil means DefaultSeparators.
type SplitterConfig struct {
	ChunkSize     int
	ChunkOverlap  int
	TruncateBytes int
	Separators    [][]string
}

// TextSplitter cuts page text into bounded, overlapping chunks, preferring
// paragraph, then sentence, then word boundaries.
type TextSplitter struct {
	chunkSize     int
	chunkOverlap  int
	truncateBytes int
	separators    [][]string
}

func NewTextSplitter(cfg SplitterConfig) (*TextSplitter, error) {
	if cfg.ChunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, ErrInvalidChunkOverlap
	}
	truncate := cfg.TruncateBytes
	if truncate <= 0 {
		truncate = DefaultTruncateBytes
	}
	seps := cfg.Separators
	if seps == nil {
		seps = DefaultSeparators
	}
	return &TextSplitter{
		chunkSize:     cfg.ChunkSize,
		chunkOverlap:  cfg.ChunkOverlap,
		truncateBytes: truncate,
		separators:    seps,
	}, nil
}

// Split cleans a page and yields its chunks left to right. An empty page
// yields nothing.
func (s *TextSplitter) Split(page models.RawPage) iter.Seq[models.Chunk] {
	return func(yield func(models.Chunk) bool) {
		text := CleanPageText(page.PageContent)
		if strings.TrimSpace(text) == "" {
			return
		}
		truncated := TruncateStringByBytes(text, s.truncateBytes)

		idx := 0
		for _, sp := range s.spans(text) {
			content := strings.TrimSpace(text[sp.start:sp.end])
			if content == "" {
				continue
			}
			ch := models.Chunk{
				Content:       content,
				PageNumber:    page.PageNumber,
				Index:         idx,
				TruncatedText: truncated,
			}
			if !yield(ch) {
				return
			}
			idx++
		}
	}
}

// span is a half-open byte range of the page text.
type span struct {
	start, end int
}

// textIndex maps between byte offsets and character counts of one text.
type textIndex struct {
	text    string
	runeAt  []int // byte offset -> characters before it (valid on rune boundaries)
	byteFor []int // character number -> byte offset
}

func newTextIndex(text string) *textIndex {
	t := &textIndex{
		text:    text,
		runeAt:  make([]int, len(text)+1),
		byteFor: make([]int, 0, len(text)+1),
	}
	n := 0
	for i := range text {
		t.runeAt[i] = n
		t.byteFor = append(t.byteFor, i)
		n++
	}
	t.runeAt[len(text)] = n
	t.byteFor = append(t.byteFor, len(text))
	return t
}

func (t *textIndex) runeLen(start, end int) int {
	return t.runeAt[end] - t.runeAt[start]
}

// spans returns chunk ranges covering the whole text. Consecutive spans
// overlap by at most chunkOverlap characters and each is at most chunkSize
// characters long.
func (s *TextSplitter) spans(text string) []span {
	t := newTextIndex(text)
	segs := s.segment(t, 0, len(text), 0)

	var out []span
	for i := 0; i < len(segs); {
		// Grow the chunk while the next piece still fits.
		j := i
		for j+1 < len(segs) && t.runeLen(segs[i].start, segs[j+1].end) <= s.chunkSize {
			j++
		}
		out = append(out, span{segs[i].start, segs[j].end})
		if j == len(segs)-1 {
			break
		}

		// Start the next chunk on the longest tail of whole pieces that fits
		// the overlap budget and still leaves room for the next piece.
		next := j + 1
		for k := j; k > i; k-- {
			if t.runeLen(segs[k].start, segs[j].end) > s.chunkOverlap ||
				t.runeLen(segs[k].start, segs[j+1].end) > s.chunkSize {
				break
			}
			next = k
		}
		i = next
	}
	return out
}

// segment breaks text[start:end] into contiguous pieces no longer than
// chunkSize, using separator level `level` and finer ones as needed.
func (s *TextSplitter) segment(t *textIndex, start, end, level int) []span {
	if t.runeLen(start, end) <= s.chunkSize {
		return []span{{start, end}}
	}
	if level >= len(s.separators) {
		return s.hardCut(t, start, end)
	}

	cuts := cutsAfter(t.text, start, end, s.separators[level])
	if len(cuts) == 0 {
		return s.segment(t, start, end, level+1)
	}

	var out []span
	prev := start
	for _, c := range append(cuts, end) {
		out = append(out, s.segment(t, prev, c, level+1)...)
		prev = c
	}
	return out
}

// hardCut slices text[start:end] every chunkSize characters.
func (s *TextSplitter) hardCut(t *textIndex, start, end int) []span {
	first, last := t.runeAt[start], t.runeAt[end]
	var out []span
	for r := first; r < last; r += s.chunkSize {
		stop := min(r+s.chunkSize, last)
		out = append(out, span{t.byteFor[r], t.byteFor[stop]})
	}
	return out
}

// cutsAfter returns the offsets just past each separator occurrence inside
// text[start:end], excluding end itself. Keeping separators on the left
// piece means the pieces concatenate back to the input.
func cutsAfter(text string, start, end int, seps []string) []int {
	var cuts []int
	for i := start; i < end; {
		matched := false
		for _, sep := range seps {
			if sep != "" && strings.HasPrefix(text[i:end], sep) {
				i += len(sep)
				if i < end {
					cuts = append(cuts, i)
				}
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}
	return cuts
}
