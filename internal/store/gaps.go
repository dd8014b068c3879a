package store

import (
	"context"
	"fmt"
)

// ReplaceGaps clears previous results and writes the new set in one
// transaction. Gaps are a rebuildable view of the latest analysis run.
func (s *Store) ReplaceGaps(ctx context.Context, gaps []Gap) error {
	for i := range gaps {
		if err := gaps[i].validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM gaps"); err != nil {
		return fmt.Errorf("clearing gaps: %w", err)
	}
	for _, g := range gaps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO gaps (competitor_url, gap_type, similarity_score, closest_match_url, analysis, priority)
			VALUES (?, ?, ?, ?, ?, ?)
		`, g.CompetitorURL, string(g.Type), g.SimilarityScore, g.ClosestMatchURL, g.Analysis, g.Priority)
		if err != nil {
			return fmt.Errorf("inserting gap for %s: %w", g.CompetitorURL, err)
		}
	}
	return tx.Commit()
}

// GapsByType lists stored gaps, all of them when gapType is empty.
func (s *Store) GapsByType(ctx context.Context, gapType GapType) ([]Gap, error) {
	query := `
		SELECT id, competitor_url, gap_type, similarity_score,
		       COALESCE(closest_match_url, ''), COALESCE(analysis, ''), COALESCE(priority, '')
		FROM gaps`
	args := []any{}
	if gapType != "" {
		query += " WHERE gap_type = ?"
		args = append(args, string(gapType))
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing gaps: %w", err)
	}
	defer rows.Close()

	var gaps []Gap
	for rows.Next() {
		var g Gap
		if err := rows.Scan(&g.ID, &g.CompetitorURL, &g.Type, &g.SimilarityScore,
			&g.ClosestMatchURL, &g.Analysis, &g.Priority); err != nil {
			return nil, fmt.Errorf("scanning gap: %w", err)
		}
		gaps = append(gaps, g)
	}
	return gaps, rows.Err()
}

// CountsByStage returns row counts for the progress snapshot.
func (s *Store) CountsByStage(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, table := range []string{"pages", "chunks", "embeddings", "gaps"} {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
