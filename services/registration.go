package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/venue-tournaments/models"
	"github.com/Dosada05/venue-tournaments/repositories"
	"github.com/Dosada05/venue-tournaments/utils"
)

// RegisterPlayer validates and stores one registration. The steps run in a fixed
// order and the first failing check decides the error:
// input, active tournament, duplicate number, capacity, insert.
// Capacity is checked again inside the insert so concurrent callers cannot
// overfill a tournament.
func (r *TournamentRegistry) RegisterPlayer(ctx context.Context, tournamentID, fullName, whatsapp string) (reg *models.Registration, err error) {
	defer func() {
		r.metrics.RegistrationResult.WithLabelValues(registrationOutcome(err)).Inc()
	}()

	tournamentID = strings.TrimSpace(tournamentID)
	fullName = strings.TrimSpace(fullName)
	number := utils.NormalizeWhatsapp(whatsapp)
	if tournamentID == "" || fullName == "" || number == "" {
		return nil, fmt.Errorf("%w: full name and a whatsapp number with digits are required", ErrValidationFailed)
	}

	log := r.logger.With(slog.String("tournament_id", tournamentID))

	tournament, err := r.LookupTournament(ctx, tournamentID, true)
	if err != nil {
		log.Warn("registration rejected", slog.Any("error", err))
		return nil, err
	}

	sameNumber, err := r.listRegistrations(ctx, repositories.RegistrationFilter{
		TournamentID:   &tournamentID,
		WhatsappNumber: &number,
	})
	if err != nil {
		return nil, err
	}
	if len(sameNumber) > 0 {
		log.Warn("registration rejected", slog.Any("error", ErrDuplicateRegistration))
		return nil, ErrDuplicateRegistration
	}

	current, err := r.listRegistrations(ctx, repositories.RegistrationFilter{TournamentID: &tournamentID})
	if err != nil {
		return nil, err
	}
	capacity := r.capacity.Capacity(tournament.Game)
	if len(current) >= capacity {
		log.Warn("registration rejected", slog.Int("capacity", capacity), slog.Any("error", ErrTournamentFull))
		return nil, ErrTournamentFull
	}

	reg = &models.Registration{
		FullName:       fullName,
		WhatsappNumber: number,
		TournamentID:   tournamentID,
	}
	callCtx, cancel := r.gatewayContext(ctx)
	defer cancel()
	insertErr := r.registrationsRepo.Insert(callCtx, reg, capacity)
	r.observe("registrations", "insert", insertErr)
	if insertErr != nil {
		err = translateGatewayError("register player", insertErr)
		if isBusinessRejection(err) {
			log.Warn("registration rejected", slog.Any("error", err))
		} else {
			log.Error("registration failed", slog.Any("error", err))
		}
		return nil, err
	}

	r.mu.Lock()
	r.cacheTournamentLocked(*tournament)
	r.registrations[reg.ID] = *reg
	r.invalidateRegistrationSnapshotsLocked()
	cached, cachedTournaments := len(r.registrations), len(r.tournaments)
	r.mu.Unlock()
	r.metrics.CachedRegistration.Set(float64(cached))
	r.metrics.CachedTournaments.Set(float64(cachedTournaments))

	log.Info("player registered", slog.String("registration_id", reg.ID))
	r.publishRegistrations(tournamentID)
	r.runBackground("reconcile-registrations", 0, func(ctx context.Context) error {
		return r.refreshAllRegistrations(ctx, true)
	})

	out := *reg
	return &out, nil
}

func (r *TournamentRegistry) listRegistrations(ctx context.Context, filter repositories.RegistrationFilter) ([]models.Registration, error) {
	callCtx, cancel := r.gatewayContext(ctx)
	defer cancel()
	regs, err := r.registrationsRepo.List(callCtx, filter)
	r.observe("registrations", "list", err)
	if err != nil {
		err = translateGatewayError("list registrations", err)
		r.logger.Error("failed to list registrations", slog.Any("error", err))
		return nil, err
	}
	return regs, nil
}

func registrationOutcome(err error) string {
	switch {
	case err == nil:
		return "registered"
	case errors.Is(err, ErrValidationFailed):
		return "invalid"
	case errors.Is(err, ErrTournamentNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateRegistration):
		return "duplicate"
	case errors.Is(err, ErrTournamentFull):
		return "full"
	default:
		return "error"
	}
}
