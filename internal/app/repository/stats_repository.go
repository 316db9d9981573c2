package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TopLink is one entry of the most-clicked ranking.
type TopLink struct {
	ShortCode   string `json:"short_code"`
	OriginalURL string `json:"original_url"`
	ClickCount  int64  `json:"click_count"`
}

// StatsSummary aggregates usage over all active links.
type StatsSummary struct {
	TotalLinks  int64     `json:"total_links"`
	TotalClicks int64     `json:"total_clicks"`
	TopLinks    []TopLink `json:"top_links"`
}

// StatsRepository computes aggregate statistics straight from Postgres.
type StatsRepository interface {
	Summary(ctx context.Context) (*StatsSummary, error)
}

type statsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository returns a pgx-backed StatsRepository.
func NewStatsRepository(pool *pgxpool.Pool) StatsRepository {
	return &statsRepository{pool: pool}
}

func (r *statsRepository) Summary(ctx context.Context) (*StatsSummary, error) {
	summary := &StatsSummary{TopLinks: []TopLink{}}

	err := r.pool.QueryRow(ctx,
		`SELECT count(*), COALESCE(sum(click_count), 0)
		 FROM links
		 WHERE is_active`,
	).Scan(&summary.TotalLinks, &summary.TotalClicks)
	if err != nil {
		return nil, fmt.Errorf("stats: totals: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT short_code, original_url, click_count
		 FROM links
		 WHERE is_active
		 ORDER BY click_count DESC
		 LIMIT 10`,
	)
	if err != nil {
		return nil, fmt.Errorf("stats: top links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var top TopLink
		if err := rows.Scan(&top.ShortCode, &top.OriginalURL, &top.ClickCount); err != nil {
			return nil, fmt.Errorf("stats: scan top link: %w", err)
		}
		summary.TopLinks = append(summary.TopLinks, top)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: iterate top links: %w", err)
	}

	return summary, nil
}
