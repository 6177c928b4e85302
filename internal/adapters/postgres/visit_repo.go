package postgres

import (
	"context"
	"fmt"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
)

// VisitRepo implements ports.VisitStore for deployments that keep visits
// in their own database instead of the listing service.
type VisitRepo struct {
	db *DB
}

func NewVisitRepo(db *DB) *VisitRepo {
	return &VisitRepo{db: db}
}

// RecordVisit inserts a visit. Revisiting a venue keeps the latest rating.
func (r *VisitRepo) RecordVisit(ctx context.Context, visit domain.Visit) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO visits (user_id, restaurant_id, rating, visited_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, restaurant_id)
		DO UPDATE SET rating = EXCLUDED.rating, visited_at = EXCLUDED.visited_at
	`, visit.UserID, visit.RestaurantID, visit.Rating, visit.VisitedAt)
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

// FetchVisited lists the venue ids userID has visited.
func (r *VisitRepo) FetchVisited(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT restaurant_id FROM visits WHERE user_id = $1 ORDER BY visited_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
