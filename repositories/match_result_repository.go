package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
)

type MatchResultRepository interface {
	Upsert(ctx context.Context, result *models.MatchResult) error
}

type postgresMatchResultRepository struct {
	db *sql.DB
}

func NewPostgresMatchResultRepository(db *sql.DB) MatchResultRepository {
	return &postgresMatchResultRepository{db: db}
}

// Upsert перезаписывает запись с тем же ключом tournamentId_matchId.
func (r *postgresMatchResultRepository) Upsert(ctx context.Context, m *models.MatchResult) error {
	query := `
		INSERT INTO match_results (id, tournament_id, match_id, winner_id, scores, recorded_by, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
			SET winner_id = EXCLUDED.winner_id, scores = EXCLUDED.scores,
				recorded_by = EXCLUDED.recorded_by, recorded_at = EXCLUDED.recorded_at`
	_, err := r.db.ExecContext(ctx, query, m.ID, m.TournamentID, m.MatchID, m.WinnerID, m.Scores, m.RecordedBy, m.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record match result %s: %w", m.ID, err)
	}
	return nil
}
