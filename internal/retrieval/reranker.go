package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// rerankerState is the tri-state circuit breaker guarding repeated calls to
// a cross-encoder endpoint that may not be deployed: unknown before the
// first call, ready once a call has succeeded, failed once a call has
// errored — a failed engine is never retried for the lifetime of the
// process, so one dead endpoint doesn't add latency to every later search.
type rerankerState int

const (
	rerankerUntried rerankerState = iota
	rerankerReady
	rerankerFailed
)

// Reranker scores (query, document) pairs with a cross-encoder model served
// over HTTP, and remembers whether the endpoint is reachable at all.
type Reranker struct {
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	state rerankerState
}

// RerankerConfig configures a cross-encoder reranker client.
type RerankerConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewReranker creates a reranker client. The endpoint is not contacted until
// the first Score call.
func NewReranker(cfg RerankerConfig) *Reranker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Reranker{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		state:   rerankerUntried,
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores,omitempty"`
}

type rerankResultItem struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Available reports whether this reranker is still worth trying: false once
// a prior call has failed.
func (r *Reranker) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state != rerankerFailed
}

// Score cross-encodes query against each of documents and returns one score
// per document, in the same order. On any failure the engine is marked
// failed for the remainder of the process and an error is returned; callers
// fall back to the unscored ranking.
func (r *Reranker) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if !r.Available() {
		return nil, fmt.Errorf("retrieval: reranker previously failed, not retrying")
	}
	if len(documents) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: documents, RawScores: true})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.markFailed()
		return nil, fmt.Errorf("reranker HTTP request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		r.markFailed()
		return nil, fmt.Errorf("reranker returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var items []rerankResultItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		r.markFailed()
		return nil, fmt.Errorf("decode reranker response: %w", err)
	}

	scores := make([]float64, len(documents))
	for _, item := range items {
		if item.Index >= 0 && item.Index < len(scores) {
			scores[item.Index] = item.Score
		}
	}

	r.mu.Lock()
	r.state = rerankerReady
	r.mu.Unlock()
	return scores, nil
}

func (r *Reranker) markFailed() {
	r.mu.Lock()
	r.state = rerankerFailed
	r.mu.Unlock()
}
