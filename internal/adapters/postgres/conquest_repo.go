package postgres

import (
	"context"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
)

// ConquestRepo implements ports.ConquestRepository.
type ConquestRepo struct {
	db *DB
}

func NewConquestRepo(db *DB) *ConquestRepo {
	return &ConquestRepo{db: db}
}

// Create inserts an award. Redelivered awards are ignored.
func (r *ConquestRepo) Create(ctx context.Context, c *domain.Conquest) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO conquests (id, user_id, station, venue_count, conquered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.UserID, c.Station, c.VenueCount, c.ConqueredAt)
	return err
}

func (r *ConquestRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM conquests WHERE id = $1`, id)
	return err
}

func (r *ConquestRepo) ListByUser(ctx context.Context, userID string) ([]domain.Conquest, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, user_id, station, venue_count, conquered_at
		FROM conquests WHERE user_id = $1
		ORDER BY conquered_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conquests := []domain.Conquest{}
	for rows.Next() {
		var c domain.Conquest
		if err := rows.Scan(&c.ID, &c.UserID, &c.Station, &c.VenueCount, &c.ConqueredAt); err != nil {
			return nil, err
		}
		conquests = append(conquests, c)
	}
	return conquests, rows.Err()
}
