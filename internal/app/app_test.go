package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docuquery/internal/config"
	"github.com/markdave123-py/docuquery/internal/core/mock"
)

// onePagePDF builds a single-page PDF showing text.
func onePagePDF(text string) []byte {
	stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [4 0 R] /Count 1 >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents 5 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
	}
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

// fakeEmbeddings serves an OpenAI-compatible /embeddings endpoint.
func fakeEmbeddings(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		resp := struct {
			Object string `json:"object"`
			Data   []item `json:"data"`
			Model  string `json:"model"`
		}{Object: "list", Model: "fake"}
		for i, in := range req.Input {
			resp.Data = append(resp.Data, item{Object: "embedding", Index: i, Embedding: mock.DeterministicVector(in, 8)})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, storeDir, embedURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Port:             "0",
		JWTSecret:        "secret",
		ObjectStore:      config.ObjectStoreLocal,
		LocalStoreDir:    storeDir,
		EmbedProvider:    config.EmbedProviderOpenAI,
		OpenAIBaseURL:    embedURL,
		EmbedModel:       "fake",
		EmbedDim:         8,
		VectorStore:      config.VectorStoreChromem,
		IndexName:        "docu-query",
		ChunkSize:        20,
		ChunkOverlap:     0,
		TruncateBytes:    36000,
		EmbedConcurrency: 4,
		UpsertBatchSize:  100,
		EmbedRetryDelay:  time.Millisecond,
		FetchTimeout:     time.Minute,
		ParseTimeout:     time.Minute,
		EmbedTimeout:     time.Minute,
		UpsertTimeout:    time.Minute,
		IngestWorkers:    1,
	}
}

func bearer(t *testing.T, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u-1"}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + s
}

func TestApp_IngestEndToEnd(t *testing.T) {
	storeDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(storeDir, "report.pdf"), onePagePDF("Hello world again"), 0o644))

	cfg := testConfig(t, storeDir, fakeEmbeddings(t).URL)
	a, err := NewApp(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	srv := httptest.NewServer(a.Server.httpServer.Handler)
	defer srv.Close()

	call := func(path, body string, auth bool) *http.Response {
		req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if auth {
			req.Header.Set("Authorization", bearer(t, cfg.JWTSecret))
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("requires a token", func(t *testing.T) {
		resp := call("/api/ingest", `{"file_key": "report.pdf"}`, false)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("ingests a stored pdf", func(t *testing.T) {
		resp := call("/api/ingest", `{"file_key": "report.pdf"}`, true)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			FileKey string `json:"file_key"`
			Chunks  []struct {
				Content    string `json:"content"`
				PageNumber int    `json:"page_number"`
			} `json:"chunks"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "report.pdf", body.FileKey)
		require.NotEmpty(t, body.Chunks)
		for _, c := range body.Chunks {
			assert.Equal(t, 1, c.PageNumber)
			assert.LessOrEqual(t, len([]rune(c.Content)), cfg.ChunkSize)
		}
	})

	t.Run("missing key is 404", func(t *testing.T) {
		resp := call("/api/ingest", `{"file_key": "nope.pdf"}`, true)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "fetch", body["stage"])
	})

	t.Run("unparseable file is 422", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(storeDir, "broken.pdf"), []byte("%PDF-1.4 junk"), 0o644))

		resp := call("/api/ingest", `{"file_key": "broken.pdf"}`, true)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("async is accepted", func(t *testing.T) {
		resp := call("/api/ingest/async", `{"file_key": "report.pdf"}`, true)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	})
}

func TestRouter_Healthz(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret"}
	h := NewRouter(cfg, nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngestConfig(t *testing.T) {
	cfg := &config.Config{
		ChunkSize:        500,
		ChunkOverlap:     50,
		TruncateBytes:    1000,
		UseNamespace:     true,
		EmbedConcurrency: 3,
		UpsertBatchSize:  10,
		EmbedTimeout:     time.Second,
	}
	ic := IngestConfig(cfg)

	assert.Equal(t, 500, ic.ChunkSize)
	assert.Equal(t, 50, ic.ChunkOverlap)
	assert.Equal(t, 1000, ic.TruncateBytes)
	assert.True(t, ic.UseNamespace)
	assert.Equal(t, 3, ic.EmbedConcurrency)
	assert.Equal(t, 10, ic.UpsertBatchSize)
	assert.Equal(t, time.Second, ic.EmbedTimeout)
	assert.Equal(t, 64, ic.QueueSize)
}
