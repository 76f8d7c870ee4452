package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/venue-tournaments/models"
	"github.com/Dosada05/venue-tournaments/repositories"
)

// CreateNewEdition закрывает активные турниры игры и открывает редакцию currentEdition+1.
// Ошибка закрытия старых редакций только логируется и не прерывает создание.
func (r *TournamentRegistry) CreateNewEdition(ctx context.Context, game string, currentEdition int) (*models.Tournament, error) {
	if !r.IsAdministrator(ctx) {
		return nil, ErrUnauthorized
	}
	game = strings.TrimSpace(game)
	if game == "" || currentEdition < 0 {
		return nil, fmt.Errorf("%w: game is required and edition cannot be negative", ErrValidationFailed)
	}
	log := r.logger.With(slog.String("game", game), slog.Int("current_edition", currentEdition))

	latest, err := r.latestEdition(ctx, game)
	if err != nil {
		return nil, err
	}
	if currentEdition != latest {
		log.Warn("stale edition in create request", slog.Int("latest_edition", latest))
		return nil, fmt.Errorf("%w: got %d, latest is %d", ErrEditionConflict, currentEdition, latest)
	}

	closedPrevious := false
	if currentEdition > 0 {
		closedPrevious = r.closeActiveEditions(ctx, game, log)
	}

	tournament := &models.Tournament{
		Game:      game,
		Edition:   currentEdition + 1,
		Status:    models.StatusActive,
		StartDate: r.now(),
	}
	callCtx, cancel := r.gatewayContext(ctx)
	defer cancel()
	insertErr := r.tournamentsRepo.Insert(callCtx, tournament)
	r.observe("tournaments", "insert", insertErr)
	if insertErr != nil {
		if errors.Is(insertErr, repositories.ErrConflict) {
			log.Warn("edition already exists", slog.Any("error", insertErr))
			return nil, fmt.Errorf("create edition: %w: %w", ErrEditionConflict, insertErr)
		}
		err = translateGatewayError("create edition", insertErr)
		log.Error("failed to create edition", slog.Any("error", err))
		return nil, err
	}

	r.mu.Lock()
	if closedPrevious {
		for i := range r.tournaments {
			if r.tournaments[i].Game == game && r.tournaments[i].IsActive() {
				r.tournaments[i].Status = models.StatusClosed
			}
		}
	}
	r.tournaments = append([]models.Tournament{*tournament}, r.tournaments...)
	r.version++
	r.invalidateTournamentSnapshotsLocked()
	cached := len(r.tournaments)
	r.mu.Unlock()
	r.metrics.CachedTournaments.Set(float64(cached))

	log.Info("edition created", slog.String("tournament_id", tournament.ID), slog.Int("edition", tournament.Edition))
	r.publish(LobbyRoom, EventTournamentsUpdated, tournament)
	r.runBackground("reconcile-tournaments", r.reconcileDelay, func(ctx context.Context) error {
		return r.refreshTournaments(ctx, true)
	})

	out := *tournament
	return &out, nil
}

func (r *TournamentRegistry) latestEdition(ctx context.Context, game string) (int, error) {
	callCtx, cancel := r.gatewayContext(ctx)
	defer cancel()
	existing, err := r.tournamentsRepo.List(callCtx, repositories.TournamentFilter{Game: &game})
	r.observe("tournaments", "list", err)
	if err != nil {
		return 0, translateGatewayError("load editions", err)
	}
	latest := 0
	for _, t := range existing {
		latest = max(latest, t.Edition)
	}
	return latest, nil
}

func (r *TournamentRegistry) closeActiveEditions(ctx context.Context, game string, log *slog.Logger) bool {
	active := models.StatusActive
	callCtx, cancel := r.gatewayContext(ctx)
	defer cancel()
	affected, err := r.tournamentsRepo.UpdateStatus(callCtx,
		repositories.TournamentFilter{Game: &game, Status: &active}, models.StatusClosed)
	r.observe("tournaments", "update", err)
	if err != nil {
		err = translateGatewayError("close previous editions", err)
		r.setLastError(err)
		r.metrics.BackgroundFailures.WithLabelValues("close-previous-editions").Inc()
		log.Error("failed to close previous editions, creating the new one anyway", slog.Any("error", err))
		return false
	}
	log.Info("previous editions closed", slog.Int64("affected", affected))
	return true
}

// DeleteTournament removes the registrations first and only then the tournament.
// If the first step fails the tournament is left in place.
func (r *TournamentRegistry) DeleteTournament(ctx context.Context, tournamentID string) error {
	if !r.IsAdministrator(ctx) {
		return ErrUnauthorized
	}
	tournamentID = strings.TrimSpace(tournamentID)
	if tournamentID == "" {
		return ErrTournamentNotFound
	}
	log := r.logger.With(slog.String("tournament_id", tournamentID))

	if _, err := r.deleteRegistrations(ctx, tournamentID); err != nil {
		log.Error("failed to delete registrations, tournament kept", slog.Any("error", err))
		return err
	}

	callCtx, cancel := r.gatewayContext(ctx)
	defer cancel()
	affected, err := r.tournamentsRepo.Delete(callCtx, repositories.TournamentFilter{ID: &tournamentID})
	r.observe("tournaments", "delete", err)
	if err != nil {
		if errors.Is(err, repositories.ErrReferenceViolation) {
			log.Warn("registrations arrived during deletion", slog.Any("error", err))
			return fmt.Errorf("delete tournament: %w: %w", ErrTournamentInUse, err)
		}
		err = translateGatewayError("delete tournament", err)
		log.Error("failed to delete tournament", slog.Any("error", err))
		return err
	}
	if affected == 0 {
		return ErrTournamentNotFound
	}

	r.mu.Lock()
	kept := r.tournaments[:0:0]
	for _, t := range r.tournaments {
		if t.ID != tournamentID {
			kept = append(kept, t)
		}
	}
	r.tournaments = kept
	r.version++
	r.invalidateTournamentSnapshotsLocked()
	r.pruneRegistrationsLocked(tournamentID)
	tCount, rCount := len(r.tournaments), len(r.registrations)
	r.mu.Unlock()
	r.metrics.CachedTournaments.Set(float64(tCount))
	r.metrics.CachedRegistration.Set(float64(rCount))

	log.Info("tournament deleted")
	r.publish(LobbyRoom, EventTournamentsUpdated, nil)
	return nil
}

// ResetTournament clears all registrations and leaves the tournament as it is.
func (r *TournamentRegistry) ResetTournament(ctx context.Context, tournamentID string) (int64, error) {
	if !r.IsAdministrator(ctx) {
		return 0, ErrUnauthorized
	}
	tournamentID = strings.TrimSpace(tournamentID)
	log := r.logger.With(slog.String("tournament_id", tournamentID))

	if _, err := r.LookupTournament(ctx, tournamentID, false); err != nil {
		return 0, err
	}
	removed, err := r.deleteRegistrations(ctx, tournamentID)
	if err != nil {
		log.Error("failed to reset tournament", slog.Any("error", err))
		return 0, err
	}

	r.mu.Lock()
	r.pruneRegistrationsLocked(tournamentID)
	cached := len(r.registrations)
	r.mu.Unlock()
	r.metrics.CachedRegistration.Set(float64(cached))

	log.Info("tournament reset", slog.Int64("removed", removed))
	r.publishRegistrations(tournamentID)
	return removed, nil
}

func (r *TournamentRegistry) deleteRegistrations(ctx context.Context, tournamentID string) (int64, error) {
	callCtx, cancel := r.gatewayContext(ctx)
	defer cancel()
	removed, err := r.registrationsRepo.Delete(callCtx, repositories.RegistrationFilter{TournamentID: &tournamentID})
	r.observe("registrations", "delete", err)
	if err != nil {
		return 0, translateGatewayError("delete registrations", err)
	}
	return removed, nil
}

func (r *TournamentRegistry) pruneRegistrationsLocked(tournamentID string) {
	for id, reg := range r.registrations {
		if reg.TournamentID == tournamentID {
			delete(r.registrations, id)
		}
	}
	r.invalidateRegistrationSnapshotsLocked()
}
