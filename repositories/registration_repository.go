package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/venue-tournaments/models"
)

type RegistrationFilter struct {
	TournamentID   *string
	WhatsappNumber *string
}

type RegistrationRepository interface {
	List(ctx context.Context, filter RegistrationFilter) ([]models.Registration, error)
	// Insert при maxPerTournament > 0 блокирует строку турнира и перепроверяет
	// количество заявок в той же транзакции.
	Insert(ctx context.Context, registration *models.Registration, maxPerTournament int) error
	Delete(ctx context.Context, filter RegistrationFilter) (int64, error)
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (f RegistrationFilter) where() *whereBuilder {
	b := &whereBuilder{}
	if f.TournamentID != nil {
		b.add("tournament_id::text = $%d", *f.TournamentID)
	}
	if f.WhatsappNumber != nil {
		b.add("whatsapp_number = $%d", *f.WhatsappNumber)
	}
	return b
}

func (r *postgresRegistrationRepository) List(ctx context.Context, filter RegistrationFilter) ([]models.Registration, error) {
	where := filter.where()
	query := `
		SELECT id, full_name, whatsapp_number, tournament_id, created_at
		FROM registrations` + where.sql() + `
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, classifyError("list registrations", err)
	}
	defer rows.Close()

	registrations := make([]models.Registration, 0)
	for rows.Next() {
		var reg models.Registration
		if scanErr := rows.Scan(&reg.ID, &reg.FullName, &reg.WhatsappNumber, &reg.TournamentID, &reg.CreatedAt); scanErr != nil {
			return nil, classifyError("scan registration", scanErr)
		}
		registrations = append(registrations, reg)
	}
	if err = rows.Err(); err != nil {
		return nil, classifyError("iterate registrations", err)
	}
	return registrations, nil
}

// Закрытый турнир не блокируется, и вставка получает ErrReferenceViolation.
const lockActiveTournamentQuery = `SELECT id FROM tournaments WHERE id::text = $1 AND status = 'active' FOR UPDATE`

func (r *postgresRegistrationRepository) Insert(ctx context.Context, reg *models.Registration, maxPerTournament int) (err error) {
	if maxPerTournament <= 0 {
		return classifyError("insert registration", insertRegistration(ctx, r.db, reg))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyError("begin registration transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Error("registration rollback failed", slog.Any("error", rbErr), slog.Any("cause", err))
			}
		} else if cErr := tx.Commit(); cErr != nil {
			err = classifyError("commit registration", cErr)
		}
	}()

	var lockedID string
	lockErr := tx.QueryRowContext(ctx, lockActiveTournamentQuery, reg.TournamentID).Scan(&lockedID)
	if lockErr != nil {
		if errors.Is(lockErr, sql.ErrNoRows) {
			return fmt.Errorf("lock tournament %s: %w", reg.TournamentID, ErrReferenceViolation)
		}
		return classifyError("lock tournament", lockErr)
	}

	var current int
	if countErr := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE tournament_id = $1`, lockedID,
	).Scan(&current); countErr != nil {
		return classifyError("count registrations", countErr)
	}
	if current >= maxPerTournament {
		return fmt.Errorf("insert registration (%d/%d): %w", current, maxPerTournament, ErrCapacityExceeded)
	}

	return classifyError("insert registration", insertRegistration(ctx, tx, reg))
}

func insertRegistration(ctx context.Context, exec SQLExecutor, reg *models.Registration) error {
	query := `
		INSERT INTO registrations (full_name, whatsapp_number, tournament_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	return exec.QueryRowContext(ctx, query, reg.FullName, reg.WhatsappNumber, reg.TournamentID).
		Scan(&reg.ID, &reg.CreatedAt)
}

func (r *postgresRegistrationRepository) Delete(ctx context.Context, filter RegistrationFilter) (int64, error) {
	where := filter.where()
	if where.empty() {
		return 0, fmt.Errorf("delete registrations: %w", ErrUnfilteredWrite)
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM registrations`+where.sql(), where.args...)
	if err != nil {
		return 0, classifyError("delete registrations", err)
	}
	return affectedRows(result)
}
