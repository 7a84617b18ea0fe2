package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/thisux/shortlink/internal/app/model"
)

// ClickRepository records clicks and serves cross-link aggregates. It
// runs against the pgx pool directly: click recording must be a single
// server-side statement so concurrent clicks on the same link never
// lose updates to a read-modify-write race.
type ClickRepository interface {
	Record(ctx context.Context, linkID string, ev model.ClickEvent) error
	OwnerStats(ctx context.Context, ownerID string) (*model.OwnerStats, error)
}

type clickRepository struct {
	pool *pgxpool.Pool
}

// NewClickRepository returns a pgx-backed ClickRepository.
func NewClickRepository(pool *pgxpool.Pool) ClickRepository {
	return &clickRepository{pool: pool}
}

// recordClickSQL appends the event, bumps the counter and stamps
// last_clicked_at in one statement. The subquery keeps only the newest
// MaxClickEvents entries in arrival order; the row lock taken by UPDATE
// serializes concurrent clicks on the same link.
const recordClickSQL = `
UPDATE links SET
    clicks = clicks + 1,
    last_clicked_at = $2,
    updated_at = $2,
    click_events = (
        SELECT coalesce(jsonb_agg(e ORDER BY ord), '[]'::jsonb)
        FROM (
            SELECT e, ord
            FROM jsonb_array_elements(click_events || $3::jsonb) WITH ORDINALITY AS t(e, ord)
            ORDER BY ord DESC
            LIMIT %d
        ) kept
    )
WHERE id = $1`

func (r *clickRepository) Record(ctx context.Context, linkID string, ev model.ClickEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("click repository: marshal event: %w", err)
	}

	query := fmt.Sprintf(recordClickSQL, model.MaxClickEvents)
	tag, err := r.pool.Exec(ctx, query, linkID, ev.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("click repository: record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLinkNotFound
	}
	return nil
}

const ownerStatsSQL = `
SELECT count(*),
       coalesce(sum(clicks), 0),
       count(*) FILTER (WHERE is_active AND (expires_at IS NULL OR expires_at > now()))
FROM links
WHERE owner_id = $1`

// OwnerStats computes the cross-link aggregate for one owner on demand.
func (r *clickRepository) OwnerStats(ctx context.Context, ownerID string) (*model.OwnerStats, error) {
	var stats model.OwnerStats
	err := r.pool.QueryRow(ctx, ownerStatsSQL, ownerID).
		Scan(&stats.TotalLinks, &stats.TotalClicks, &stats.ActiveLinks)
	if err != nil {
		return nil, fmt.Errorf("click repository: owner stats: %w", err)
	}
	return &stats, nil
}
