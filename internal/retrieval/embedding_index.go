package retrieval

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	// idChunkSize bounds how many symbol ids are pulled from the store and
	// held in memory at once while embedding a large corpus.
	idChunkSize = 512
	// encodeBatchSize is how many texts are sent to the encoder per HTTP
	// call; TEI servers cap batch size and this keeps comfortably under it.
	encodeBatchSize = 64
	// flushBatchSize is how many vectors are written to the store per
	// transaction.
	flushBatchSize = 256
)

// EmbeddingResult summarizes one index_embeddings call.
type EmbeddingResult struct {
	Embedded int
	Skipped  int
	Failed   int
}

// IndexEmbeddings computes and stores dense embeddings for every symbol that
// lacks one (or, if force is true, every symbol). Symbol
// ids are processed in chunks so memory stays bounded on large corpora;
// within a chunk, encode calls are batched, and failed batches are retried
// one symbol at a time so a single bad input doesn't drop an entire batch.
func (e *Engine) IndexEmbeddings(ctx context.Context, force bool) (EmbeddingResult, error) {
	var result EmbeddingResult
	if e.Encoder == nil {
		return result, fmt.Errorf("retrieval: no encoder configured")
	}

	if force {
		if err := e.Store.ClearEmbeddings(); err != nil {
			return result, err
		}
	}

	ids, err := e.Store.SymbolIDsWithoutEmbedding()
	if err != nil {
		return result, err
	}

	for start := 0; start < len(ids); start += idChunkSize {
		end := start + idChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		contentByID, err := e.Store.ContentFor(chunk)
		if err != nil {
			return result, err
		}

		pending := make(map[string][]float32, len(chunk))
		for batchStart := 0; batchStart < len(chunk); batchStart += encodeBatchSize {
			batchEnd := batchStart + encodeBatchSize
			if batchEnd > len(chunk) {
				batchEnd = len(chunk)
			}
			batchIDs := chunk[batchStart:batchEnd]

			texts := make([]string, len(batchIDs))
			for i, id := range batchIDs {
				row := contentByID[id]
				texts[i] = EmbeddingText(row.Header, row.Content)
			}

			vectors, err := e.Encoder.Embed(ctx, texts)
			if err != nil {
				e.embedOneAtATime(ctx, batchIDs, texts, pending, &result)
				continue
			}
			for i, id := range batchIDs {
				if i < len(vectors) && vectors[i] != nil {
					pending[id] = vectors[i]
					result.Embedded++
				} else {
					result.Skipped++
				}
			}

			if len(pending) >= flushBatchSize {
				if err := e.Store.PutEmbeddings(pending); err != nil {
					return result, err
				}
				pending = make(map[string][]float32)
			}
		}

		if len(pending) > 0 {
			if err := e.Store.PutEmbeddings(pending); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

// embedOneAtATime is the fallback path when a batch embed call fails
// outright: each text is retried individually so one malformed input
// doesn't sink the rest of the batch.
func (e *Engine) embedOneAtATime(ctx context.Context, ids, texts []string, pending map[string][]float32, result *EmbeddingResult) {
	for i, id := range ids {
		vectors, err := e.Encoder.Embed(ctx, []string{texts[i]})
		if err != nil || len(vectors) == 0 {
			slog.Warn("embedding failed for symbol", "symbol_id", id, "error", err)
			result.Failed++
			continue
		}
		pending[id] = vectors[0]
		result.Embedded++
	}
}
