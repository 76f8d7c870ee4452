package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/venue-tournaments/models"
)

type TournamentFilter struct {
	ID     *string
	Game   *string
	Status *models.TournamentStatus
}

type TournamentRepository interface {
	List(ctx context.Context, filter TournamentFilter) ([]models.Tournament, error)
	Insert(ctx context.Context, tournament *models.Tournament) error
	UpdateStatus(ctx context.Context, filter TournamentFilter, status models.TournamentStatus) (int64, error)
	Delete(ctx context.Context, filter TournamentFilter) (int64, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (f TournamentFilter) where() *whereBuilder {
	b := &whereBuilder{}
	if f.ID != nil {
		// сравнение по тексту, чтобы мусорный id давал пустой результат, а не 22P02
		b.add("id::text = $%d", *f.ID)
	}
	if f.Game != nil {
		b.add("game = $%d", *f.Game)
	}
	if f.Status != nil {
		b.add("status = $%d", string(*f.Status))
	}
	return b
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter TournamentFilter) ([]models.Tournament, error) {
	where := filter.where()
	query := `
		SELECT id, game, edition, status, start_date
		FROM tournaments` + where.sql() + `
		ORDER BY start_date DESC, edition DESC`

	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, classifyError("list tournaments", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if scanErr := rows.Scan(&t.ID, &t.Game, &t.Edition, &t.Status, &t.StartDate); scanErr != nil {
			return nil, classifyError("scan tournament", scanErr)
		}
		tournaments = append(tournaments, t)
	}

	if err = rows.Err(); err != nil {
		return nil, classifyError("iterate tournaments", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Insert(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (game, edition, status, start_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id, start_date`

	err := r.db.QueryRowContext(ctx, query, t.Game, t.Edition, t.Status, t.StartDate).Scan(&t.ID, &t.StartDate)
	return classifyError("insert tournament", err)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, filter TournamentFilter, status models.TournamentStatus) (int64, error) {
	query, args, err := updateStatusQuery(filter, status)
	if err != nil {
		return 0, err
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classifyError("update tournaments", err)
	}
	return affectedRows(result)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, filter TournamentFilter) (int64, error) {
	where := filter.where()
	if where.empty() {
		return 0, fmt.Errorf("delete tournaments: %w", ErrUnfilteredWrite)
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments`+where.sql(), where.args...)
	if err != nil {
		return 0, classifyError("delete tournaments", err)
	}
	return affectedRows(result)
}

// updateStatusQuery ставит статус последним аргументом, после условий фильтра.
func updateStatusQuery(filter TournamentFilter, status models.TournamentStatus) (string, []interface{}, error) {
	where := filter.where()
	if where.empty() {
		return "", nil, fmt.Errorf("update tournaments: %w", ErrUnfilteredWrite)
	}
	args := append(where.args, string(status))
	return fmt.Sprintf(`UPDATE tournaments SET status = $%d`, len(args)) + where.sql(), args, nil
}
