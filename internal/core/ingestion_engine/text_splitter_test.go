package ingestion_engine

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docuquery/internal/models"
)

func newSplitter(t *testing.T, size, overlap int) *TextSplitter {
	t.Helper()
	s, err := NewTextSplitter(SplitterConfig{ChunkSize: size, ChunkOverlap: overlap})
	require.NoError(t, err)
	return s
}

func contents(chunks []models.Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Content)
	}
	return out
}

func collect(s *TextSplitter, page models.RawPage) []models.Chunk {
	var out []models.Chunk
	for c := range s.Split(page) {
		out = append(out, c)
	}
	return out
}

func TestNewTextSplitter(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := NewTextSplitter(SplitterConfig{ChunkSize: DefaultChunkSize, ChunkOverlap: DefaultChunkOverlap})
		require.NoError(t, err)
		assert.Equal(t, DefaultTruncateBytes, s.truncateBytes)
		assert.Equal(t, DefaultSeparators, s.separators)
	})

	t.Run("rejects non-positive size", func(t *testing.T) {
		_, err := NewTextSplitter(SplitterConfig{ChunkSize: 0})
		assert.ErrorIs(t, err, ErrInvalidChunkSize)
	})

	t.Run("rejects negative overlap", func(t *testing.T) {
		_, err := NewTextSplitter(SplitterConfig{ChunkSize: 10, ChunkOverlap: -1})
		assert.ErrorIs(t, err, ErrInvalidChunkOverlap)
	})

	t.Run("rejects overlap equal to size", func(t *testing.T) {
		_, err := NewTextSplitter(SplitterConfig{ChunkSize: 10, ChunkOverlap: 10})
		assert.ErrorIs(t, err, ErrInvalidChunkOverlap)
	})
}

func TestCleanPageText(t *testing.T) {
	assert.Equal(t, "Helloworld.", CleanPageText("Hello\nworld."))
	assert.Equal(t, "ab", CleanPageText("a\r\nb"))
	assert.Equal(t, "no breaks", CleanPageText("no breaks"))
}

func TestTruncateStringByBytes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"fits", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello", 3, "hel"},
		{"zero", "hello", 0, ""},
		{"negative", "hello", -1, ""},
		{"backs off multibyte", "héllo", 2, "h"},
		{"keeps whole multibyte", "héllo", 3, "hé"},
		{"four byte rune", "a🚀b", 4, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateStringByBytes(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, len(got), max(tt.n, 0))
		})
	}
}

func TestTextSplitter_Split(t *testing.T) {
	t.Run("newlines glued before splitting", func(t *testing.T) {
		s := newSplitter(t, 20, 0)
		chunks := collect(s, models.RawPage{PageContent: "Hello\nworld. This is page one.", PageNumber: 1})

		assert.Equal(t, []string{"Helloworld.", "This is page one."}, contents(chunks))
		for i, c := range chunks {
			assert.Equal(t, 1, c.PageNumber)
			assert.Equal(t, i, c.Index)
			assert.Equal(t, "Helloworld. This is page one.", c.TruncatedText)
		}
	})

	t.Run("word level with overlap", func(t *testing.T) {
		s := newSplitter(t, 20, 10)
		chunks := collect(s, models.RawPage{PageContent: "alpha beta gamma delta epsilon zeta eta theta", PageNumber: 3})

		assert.Equal(t, []string{
			"alpha beta gamma",
			"gamma delta epsilon",
			"epsilon zeta eta",
			"zeta eta theta",
		}, contents(chunks))
	})

	t.Run("sentence boundaries preferred", func(t *testing.T) {
		s := newSplitter(t, 25, 0)
		chunks := collect(s, models.RawPage{PageContent: "Sentence one. Sentence two! Sentence three? End", PageNumber: 1})

		assert.Equal(t, []string{"Sentence one.", "Sentence two!", "Sentence three? End"}, contents(chunks))
	})

	t.Run("hard cut without separators", func(t *testing.T) {
		s := newSplitter(t, 10, 0)
		chunks := collect(s, models.RawPage{PageContent: "abcdefghijklmnopqrstuvwxy", PageNumber: 1})

		assert.Equal(t, []string{"abcdefghij", "klmnopqrst", "uvwxy"}, contents(chunks))
	})

	t.Run("hard cut counts characters not bytes", func(t *testing.T) {
		s := newSplitter(t, 2, 0)
		chunks := collect(s, models.RawPage{PageContent: "ééééé", PageNumber: 1})

		assert.Equal(t, []string{"éé", "éé", "é"}, contents(chunks))
	})

	t.Run("empty page yields nothing", func(t *testing.T) {
		s := newSplitter(t, 20, 0)
		assert.Empty(t, collect(s, models.RawPage{PageContent: "", PageNumber: 2}))
		assert.Empty(t, collect(s, models.RawPage{PageContent: " \n\r\n  ", PageNumber: 2}))
	})

	t.Run("truncated text shared by every chunk", func(t *testing.T) {
		s, err := NewTextSplitter(SplitterConfig{ChunkSize: 10, ChunkOverlap: 0, TruncateBytes: 7})
		require.NoError(t, err)

		chunks := collect(s, models.RawPage{PageContent: "one two three four five", PageNumber: 1})
		require.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.Equal(t, "one two", c.TruncatedText)
		}
	})

	t.Run("consumer can stop early", func(t *testing.T) {
		s := newSplitter(t, 5, 0)
		var got []string
		for c := range s.Split(models.RawPage{PageContent: "aa bb cc dd ee ff", PageNumber: 1}) {
			got = append(got, c.Content)
			if len(got) == 2 {
				break
			}
		}
		assert.Len(t, got, 2)
	})
}

// randomText builds page text from words of mixed length and script, with
// sentence and paragraph breaks sprinkled in.
func randomText(r *rand.Rand) string {
	alphabet := []rune("abcdefghijklmnopqrstuvwxyzéüß漢字🚀")
	var b strings.Builder
	words := r.Intn(200)
	for w := 0; w < words; w++ {
		n := 1 + r.Intn(12)
		if r.Intn(20) == 0 {
			n = 40 + r.Intn(40) // longer than most chunk sizes
		}
		for i := 0; i < n; i++ {
			b.WriteRune(alphabet[r.Intn(len(alphabet))])
		}
		switch r.Intn(10) {
		case 0:
			b.WriteString(". ")
		case 1:
			b.WriteString("\n\n")
		case 2:
			b.WriteString("\n")
		default:
			b.WriteString(" ")
		}
	}
	return b.String()
}

func TestTextSplitter_SpansProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for iter := 0; iter < 300; iter++ {
		size := 5 + r.Intn(60)
		overlap := r.Intn(size)
		s := newSplitter(t, size, overlap)

		text := CleanPageText(randomText(r))
		if text == "" {
			continue
		}
		idx := newTextIndex(text)
		spans := s.spans(text)
		require.NotEmpty(t, spans)

		assert.Equal(t, 0, spans[0].start, "first span starts at the beginning")
		assert.Equal(t, len(text), spans[len(spans)-1].end, "last span reaches the end")

		for i, sp := range spans {
			assert.True(t, utf8.ValidString(text[sp.start:sp.end]))
			assert.LessOrEqual(t, idx.runeLen(sp.start, sp.end), size, "span %d longer than chunk size", i)
			if i == 0 {
				continue
			}
			prev := spans[i-1]
			assert.Greater(t, sp.start, prev.start, "spans move forward")
			assert.LessOrEqual(t, sp.start, prev.end, "no gap between spans")
			assert.LessOrEqual(t, idx.runeLen(sp.start, prev.end), overlap, "overlap bounded")
		}

		// Dropping each span's overlap with its predecessor rebuilds the text.
		var rebuilt strings.Builder
		rebuilt.WriteString(text[spans[0].start:spans[0].end])
		for i := 1; i < len(spans); i++ {
			rebuilt.WriteString(text[spans[i-1].end:spans[i].end])
		}
		assert.Equal(t, text, rebuilt.String())

		page := models.RawPage{PageContent: text, PageNumber: 1}
		for c := range s.Split(page) {
			assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), size)
			assert.NotEmpty(t, strings.TrimSpace(c.Content))
			assert.Contains(t, text, c.Content)
		}
	}
}

func TestTruncateStringByBytes_Property(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for iter := 0; iter < 500; iter++ {
		s := randomText(r)
		n := r.Intn(len(s) + 8)

		got := TruncateStringByBytes(s, n)
		require.True(t, utf8.ValidString(got))
		require.LessOrEqual(t, len(got), n)
		require.True(t, strings.HasPrefix(s, got))
		if len(s) > n {
			// one more rune would not have fit
			_, size := utf8.DecodeRuneInString(s[len(got):])
			require.Greater(t, len(got)+size, n)
		}
	}
}
