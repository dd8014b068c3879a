package store

import (
	"context"
	"fmt"
)

// UpsertEmbeddings writes vectors keyed by chunk id in one transaction.
// Nil vectors are skipped; the caller's slot alignment is preserved by
// passing matched slices. Re-embedding a chunk replaces its vector.
func (s *Store) UpsertEmbeddings(ctx context.Context, chunkIDs []int64, vectors [][]float32, model string) (int, error) {
	if len(chunkIDs) != len(vectors) {
		return 0, &ValidationError{Field: "vectors", Reason: fmt.Sprintf("got %d for %d chunks", len(vectors), len(chunkIDs))}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stored := 0
	for i, vec := range vectors {
		if vec == nil {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings (chunk_id, embedding, model)
			VALUES (?, ?, ?)
			ON CONFLICT(chunk_id) DO UPDATE SET
				embedding=excluded.embedding,
				model=excluded.model,
				created_at=CURRENT_TIMESTAMP
		`, chunkIDs[i], EncodeVector(vec), model)
		if err != nil {
			return 0, fmt.Errorf("upserting embedding for chunk %d: %w", chunkIDs[i], err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing embeddings: %w", err)
	}
	return stored, nil
}

// EmbeddingByChunk loads one vector. dims > 0 enforces the expected
// dimension on decode.
func (s *Store) EmbeddingByChunk(ctx context.Context, chunkID int64, dims int) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT embedding FROM embeddings WHERE chunk_id = ?", chunkID).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("loading embedding for chunk %d: %w", chunkID, err)
	}
	return DecodeVector(blob, dims)
}

// EmbeddingsBySite loads every stored vector for one side of the
// analysis, joined with its chunk and page.
func (s *Store) EmbeddingsBySite(ctx context.Context, isPrimary bool, dims int) ([]ChunkEmbedding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.chunk_id, c.page_id, e.embedding, p.url
		FROM embeddings e
		JOIN chunks c ON e.chunk_id = c.id
		JOIN pages p ON c.page_id = p.id
		WHERE p.is_primary = ?
		ORDER BY e.chunk_id
	`, isPrimary)
	if err != nil {
		return nil, fmt.Errorf("listing embeddings: %w", err)
	}
	defer rows.Close()

	var out []ChunkEmbedding
	for rows.Next() {
		var (
			ce   ChunkEmbedding
			blob []byte
		)
		if err := rows.Scan(&ce.ChunkID, &ce.PageID, &blob, &ce.URL); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		if ce.Vector, err = DecodeVector(blob, dims); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", ce.ChunkID, err)
		}
		out = append(out, ce)
	}
	return out, rows.Err()
}
