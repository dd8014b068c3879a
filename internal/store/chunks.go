package store

import (
	"context"
	"fmt"
)

// ReplaceChunks deletes a page's existing chunks and writes the new set
// in one transaction. Re-chunking a page never leaves stale windows
// behind.
func (s *Store) ReplaceChunks(ctx context.Context, pageID int64, chunks []Chunk) ([]int64, error) {
	for i := range chunks {
		chunks[i].PageID = pageID
		if err := chunks[i].validate(); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE page_id = ?", pageID); err != nil {
		return nil, fmt.Errorf("clearing chunks for page %d: %w", pageID, err)
	}

	ids := make([]int64, len(chunks))
	for i, c := range chunks {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (page_id, chunk_index, content, token_count)
			VALUES (?, ?, ?, ?)
		`, c.PageID, c.ChunkIndex, c.Content, c.TokenCount)
		if err != nil {
			return nil, fmt.Errorf("inserting chunk %d for page %d: %w", c.ChunkIndex, pageID, err)
		}
		if ids[i], err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("reading chunk id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing chunks: %w", err)
	}
	return ids, nil
}

// ChunksByPage lists a page's chunks in window order.
func (s *Store) ChunksByPage(ctx context.Context, pageID int64) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, chunk_index, content, COALESCE(token_count, 0)
		FROM chunks WHERE page_id = ? ORDER BY chunk_index
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks for page %d: %w", pageID, err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.PageID, &c.ChunkIndex, &c.Content, &c.TokenCount); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
