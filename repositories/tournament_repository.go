package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
)

var (
	ErrTournamentNotFound      = errors.New("tournament not found")
	ErrTournamentExists        = errors.New("tournament already mirrored")
	ErrTournamentStateConflict = errors.New("tournament status changed concurrently")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id string) (*models.Tournament, error)
	List(ctx context.Context, status *models.TournamentStatus) ([]models.Tournament, error)
	// FindActive возвращает live-турнир, иначе ближайший upcoming.
	FindActive(ctx context.Context) (*models.Tournament, error)
	FindUpcomingWithCapacity(ctx context.Context) (*models.Tournament, error)
	ListUpcoming(ctx context.Context) ([]models.Tournament, error)
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]models.Tournament, error)
	AppendTeam(ctx context.Context, id string, entry models.TournamentTeam) (bool, error)
	SetParticipantID(ctx context.Context, id, teamID string, participantID int64) error
	MarkStarted(ctx context.Context, id string, at time.Time) error
	MarkCompleted(ctx context.Context, id string, at time.Time) error
	UpdateStartDate(ctx context.Context, id string, startDate time.Time) error
	SyncMirror(ctx context.Context, t *models.Tournament) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[models.TournamentStatus]int, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `
	id, name, description, entry_fee, max_teams, start_date, game, status, challonge_id, challonge_url,
	teams, matches, started_at, completed_at, created_at, updated_at`

func scanTournament(row rowScanner) (*models.Tournament, error) {
	var t models.Tournament
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.EntryFee, &t.MaxTeams, &t.StartDate, &t.Game, &t.Status, &t.ChallongeID, &t.ChallongeURL,
		&t.Teams, &t.Matches, &t.StartedAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (
			id, name, description, entry_fee, max_teams, start_date, game, status, challonge_id, challonge_url,
			teams, matches, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Name, t.Description, t.EntryFee, t.MaxTeams, t.StartDate, t.Game, t.Status, t.ChallongeID, t.ChallongeURL,
		t.Teams, t.Matches, t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "tournaments_pkey") {
			return ErrTournamentExists
		}
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	t.UpdatedAt = t.CreatedAt
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id string) (*models.Tournament, error) {
	return r.getOne(ctx, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1`, id)
}

func (r *postgresTournamentRepository) FindActive(ctx context.Context) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments
		WHERE status IN ('live', 'upcoming')
		ORDER BY CASE status WHEN 'live' THEN 0 ELSE 1 END, start_date NULLS LAST, created_at
		LIMIT 1`
	return r.getOne(ctx, query)
}

func (r *postgresTournamentRepository) FindUpcomingWithCapacity(ctx context.Context) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments
		WHERE status = 'upcoming' AND jsonb_array_length(teams) < max_teams
		ORDER BY start_date NULLS LAST, created_at
		LIMIT 1`
	return r.getOne(ctx, query)
}

func (r *postgresTournamentRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Tournament, error) {
	t, err := scanTournament(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, status *models.TournamentStatus) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY start_date NULLS LAST, created_at DESC`
	return r.queryTournaments(ctx, query, args...)
}

func (r *postgresTournamentRepository) ListUpcoming(ctx context.Context) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE status = 'upcoming' ORDER BY start_date NULLS LAST, created_at`
	return r.queryTournaments(ctx, query)
}

func (r *postgresTournamentRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments
		WHERE status = 'upcoming' AND start_date >= $1 AND start_date <= $2
		ORDER BY start_date`
	return r.queryTournaments(ctx, query, from, to)
}

func (r *postgresTournamentRepository) queryTournaments(ctx context.Context, query string, args ...interface{}) ([]models.Tournament, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", err)
		}
		tournaments = append(tournaments, *t)
	}
	return tournaments, rows.Err()
}

// AppendTeam атомарно добавляет запись в teams: без дублей по teamId и без превышения max_teams.
// Возвращает false, если запись не была добавлена.
func (r *postgresTournamentRepository) AppendTeam(ctx context.Context, id string, entry models.TournamentTeam) (bool, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("failed to encode tournament team: %w", err)
	}
	probe, err := json.Marshal([]map[string]string{{"teamId": entry.TeamID}})
	if err != nil {
		return false, err
	}

	query := `
		UPDATE tournaments
		SET teams = teams || jsonb_build_array($2::jsonb), updated_at = now()
		WHERE id = $1
			AND status = 'upcoming'
			AND NOT teams @> $3::jsonb
			AND jsonb_array_length(teams) < max_teams`
	result, err := r.db.ExecContext(ctx, query, id, string(payload), string(probe))
	if err != nil {
		return false, fmt.Errorf("failed to append team to tournament %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *postgresTournamentRepository) SetParticipantID(ctx context.Context, id, teamID string, participantID int64) error {
	query := `
		UPDATE tournaments t
		SET teams = (
			SELECT COALESCE(jsonb_agg(
				CASE WHEN elem->>'teamId' = $2
					THEN jsonb_set(elem, '{participantId}', to_jsonb($3::bigint))
					ELSE elem END
				ORDER BY ord), '[]'::jsonb)
			FROM jsonb_array_elements(t.teams) WITH ORDINALITY AS e(elem, ord)
		), updated_at = now()
		WHERE t.id = $1`
	result, err := r.db.ExecContext(ctx, query, id, teamID, participantID)
	if err != nil {
		return fmt.Errorf("failed to set participant id for team %s: %w", teamID, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) MarkStarted(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE tournaments SET status = 'live', started_at = $2, updated_at = $2 WHERE id = $1 AND status = 'upcoming'`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark tournament %s started: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentStateConflict)
}

func (r *postgresTournamentRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE tournaments SET status = 'completed', completed_at = $2, updated_at = $2 WHERE id = $1 AND status = 'live'`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark tournament %s completed: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentStateConflict)
}

func (r *postgresTournamentRepository) UpdateStartDate(ctx context.Context, id string, startDate time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tournaments SET start_date = $2, updated_at = now() WHERE id = $1`, id, startDate)
	if err != nil {
		return fmt.Errorf("failed to update start date of tournament %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// SyncMirror записывает данные, полученные из Challonge. Статус не откатывается назад.
// Записи, добавленные в teams после чтения, сохраняются в конце списка.
func (r *postgresTournamentRepository) SyncMirror(ctx context.Context, t *models.Tournament) error {
	query := `
		UPDATE tournaments
		SET teams = $2::jsonb || (
				SELECT COALESCE(jsonb_agg(elem ORDER BY ord), '[]'::jsonb)
				FROM jsonb_array_elements(teams) WITH ORDINALITY AS e(elem, ord)
				WHERE NOT $2::jsonb @> jsonb_build_array(jsonb_build_object('teamId', elem->'teamId'))
			),
			matches = $3,
			status = CASE
				WHEN status = 'completed' THEN status
				WHEN status = 'live' AND $4::text = 'upcoming' THEN status
				ELSE $4::text END,
			updated_at = now()
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, t.ID, t.Teams, t.Matches, t.Status)
	if err != nil {
		return fmt.Errorf("failed to sync tournament %s: %w", t.ID, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tournament %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) CountByStatus(ctx context.Context) (map[models.TournamentStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tournaments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tournaments: %w", err)
	}
	defer rows.Close()

	counts := map[models.TournamentStatus]int{}
	for rows.Next() {
		var (
			status models.TournamentStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
