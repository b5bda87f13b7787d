// Package retrieval implements the hybrid search layer: a dense-encoder
// wrapper and its TEI HTTP client, an optional cross-encoder re-ranker with
// a tri-state failure cache, Reciprocal Rank Fusion over the full-text and
// vector rankings, and the HybridSearch entry point built on all three.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// EmbeddingDim is the fixed dense-vector width every stored embedding and
// query vector must have.
const EmbeddingDim = 384

// Encoder produces L2-normalized 384-dimensional embeddings for a batch of
// strings. Implementations must normalize their own output; Embed does not
// re-normalize on the caller's behalf.
type Encoder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// TeiEncoderConfig configures a TEI-backed dense encoder.
type TeiEncoderConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// TeiEncoder implements Encoder against a TEI (Text Embeddings Inference)
// server, trying the OpenAI-compatible /v1/embeddings endpoint first and
// falling back to TEI's native /embed endpoint.
type TeiEncoder struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewTeiEncoder creates a dense-encoder client against a running TEI server.
func NewTeiEncoder(cfg TeiEncoderConfig) (*TeiEncoder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("retrieval: TEI base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &TeiEncoder{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type teiEmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model,omitempty"`
}

type teiEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type teiNativeEmbedRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate,omitempty"`
}

// Embed sends texts to the TEI server in batches of 64 internally handled
// by the caller's chunking (see IndexEmbeddings), and L2-normalizes every
// returned vector — TEI's sentence-transformer output is not guaranteed to
// already be unit-length for every model, so this is enforced here rather
// than trusted from upstream.
func (e *TeiEncoder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.embedViaOpenAI(ctx, texts)
	if err != nil {
		vectors, err = e.embedViaNative(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("TEI embedding failed: %w", err)
		}
	}
	for i, v := range vectors {
		vectors[i] = normalize(v)
	}
	return vectors, nil
}

func (e *TeiEncoder) embedViaOpenAI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(teiEmbeddingRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, err
	}
	resp, err := e.post(ctx, "/v1/embeddings", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var parsed teiEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	return out, nil
}

func (e *TeiEncoder) embedViaNative(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(teiNativeEmbedRequest{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, err
	}
	resp, err := e.post(ctx, "/embed", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func (e *TeiEncoder) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("TEI returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return resp, nil
}

// normalize returns v scaled to unit L2 norm. A zero vector is returned
// unchanged (normalizing it would divide by zero).
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// EmbeddingText builds the per-symbol embedding input:
// the content-row header plus the first line of its content, deliberately
// truncated to keep encoder input short — full content lives in the
// full-text index and the re-ranker's input instead.
func EmbeddingText(header, content string) string {
	firstLine := content
	for i, r := range content {
		if r == '\n' {
			firstLine = content[:i]
			break
		}
	}
	return header + "\n" + firstLine
}

// CosineSimilarity returns the cosine similarity of two equal-length
// vectors; used for brute-force nearest-neighbor search over the store's
// in-memory embedding table (there is no native vector index in SQLite, and
// a local corpus's symbol count keeps a full scan cheap).
func CosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
