package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dosada05/venue-tournaments/metrics"
	"github.com/Dosada05/venue-tournaments/models"
	"github.com/Dosada05/venue-tournaments/repositories"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultGatewayTimeout = 10 * time.Second
	DefaultReconcileDelay = 500 * time.Millisecond

	// LobbyRoom получает события по списку турниров.
	LobbyRoom = "lobby"

	EventTournamentsUpdated   = "TOURNAMENTS_UPDATED"
	EventRegistrationsUpdated = "REGISTRATIONS_UPDATED"
)

// ChangeNotifier рассылает изменения подключенным клиентам.
type ChangeNotifier interface {
	Publish(room string, message any)
}

type ChangeEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	RoomID  string `json:"room_id,omitempty"`
}

type RegistrationsPayload struct {
	TournamentID      string `json:"tournament_id"`
	RegistrationCount int    `json:"registration_count"`
	RemainingSpots    int    `json:"remaining_spots"`
}

func TournamentRoom(tournamentID string) string {
	return "tournament_" + tournamentID
}

type noopNotifier struct{}

func (noopNotifier) Publish(string, any) {}

type RegistryConfig struct {
	Tournaments   repositories.TournamentRepository
	Registrations repositories.RegistrationRepository
	Identity      AdminChecker

	Capacity           CapacityPolicy
	Clock              func() time.Time
	TournamentWindow   time.Duration
	RegistrationWindow time.Duration
	GatewayTimeout     time.Duration
	ReconcileDelay     time.Duration

	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Notifier ChangeNotifier
}

// TournamentRegistry держит кэш турниров и заявок и выполняет все операции над ними.
// Кэш читается без обращения к хранилищу; запись идет через шлюз, после чего кэш
// сливается оптимистично и сверяется фоновым обновлением.
type TournamentRegistry struct {
	tournamentsRepo   repositories.TournamentRepository
	registrationsRepo repositories.RegistrationRepository
	identity          AdminChecker
	capacity          CapacityPolicy
	now               func() time.Time
	gatewayTimeout    time.Duration
	reconcileDelay    time.Duration
	logger            *slog.Logger
	metrics           *metrics.Metrics
	notifier          ChangeNotifier

	mu            sync.RWMutex
	tournaments   []models.Tournament
	registrations map[string]models.Registration
	version       uint64
	activeVersion uint64
	activeByGame  map[string]models.Tournament
	lastErr       error

	// Номера запусков полных выборок. Выборка применяется, только если после ее
	// старта не было ни более свежей выборки, ни локальной записи.
	tournamentFetchSeq   atomic.Uint64
	tournamentApplied    uint64
	registrationFetchSeq atomic.Uint64
	registrationApplied  uint64

	tournamentThrottle   *throttle
	registrationThrottle *throttle
	flight               singleflight.Group

	baseCtx    context.Context
	cancelBase context.CancelFunc
	background sync.WaitGroup
}

func NewTournamentRegistry(cfg RegistryConfig) *TournamentRegistry {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.TournamentWindow <= 0 {
		cfg.TournamentWindow = TournamentRefreshWindow
	}
	if cfg.RegistrationWindow <= 0 {
		cfg.RegistrationWindow = RegistrationRefreshWindow
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = DefaultGatewayTimeout
	}
	switch {
	case cfg.ReconcileDelay == 0:
		cfg.ReconcileDelay = DefaultReconcileDelay
	case cfg.ReconcileDelay < 0:
		cfg.ReconcileDelay = 0
	}
	if cfg.Capacity.Default() == 0 {
		cfg.Capacity = DefaultCapacityPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if cfg.Notifier == nil {
		cfg.Notifier = noopNotifier{}
	}
	if cfg.Identity == nil {
		cfg.Identity = SessionAdminChecker{}
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &TournamentRegistry{
		tournamentsRepo:      cfg.Tournaments,
		registrationsRepo:    cfg.Registrations,
		identity:             cfg.Identity,
		capacity:             cfg.Capacity,
		now:                  cfg.Clock,
		gatewayTimeout:       cfg.GatewayTimeout,
		reconcileDelay:       cfg.ReconcileDelay,
		logger:               cfg.Logger.With(slog.String("component", "tournament_registry")),
		metrics:              cfg.Metrics,
		notifier:             cfg.Notifier,
		registrations:        make(map[string]models.Registration),
		tournamentThrottle:   newThrottle(cfg.TournamentWindow),
		registrationThrottle: newThrottle(cfg.RegistrationWindow),
		baseCtx:              baseCtx,
		cancelBase:           cancel,
	}
}

// Wait blocks until every background reconciliation started so far has finished.
func (r *TournamentRegistry) Wait() {
	r.background.Wait()
}

// Close cancels pending background work and waits for it.
func (r *TournamentRegistry) Close() {
	r.cancelBase()
	r.background.Wait()
}

func (r *TournamentRegistry) IsAdministrator(ctx context.Context) bool {
	return r.identity.IsAdministrator(ctx)
}

func (r *TournamentRegistry) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

func (r *TournamentRegistry) setLastError(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

func (r *TournamentRegistry) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.gatewayTimeout)
}

func (r *TournamentRegistry) observe(collection, op string, err error) {
	r.metrics.GatewayCalls.WithLabelValues(collection, op, metrics.Outcome(err)).Inc()
}

func (r *TournamentRegistry) publish(room, eventType string, payload any) {
	r.notifier.Publish(room, ChangeEvent{Type: eventType, Payload: payload, RoomID: room})
}

// runBackground запускает задачу вне запроса. Ошибки только логируются.
func (r *TournamentRegistry) runBackground(task string, delay time.Duration, fn func(ctx context.Context) error) {
	r.background.Add(1)
	go func() {
		defer r.background.Done()
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-r.baseCtx.Done():
				return
			}
		}
		if err := fn(r.baseCtx); err != nil {
			r.metrics.BackgroundFailures.WithLabelValues(task).Inc()
			r.logger.Warn("background task failed", slog.String("task", task), slog.Any("error", err))
		}
	}()
}

// RefreshTournaments reloads the tournament list unless the previous successful
// reload happened less than the tournament window ago.
func (r *TournamentRegistry) RefreshTournaments(ctx context.Context) error {
	return r.refreshTournaments(ctx, false)
}

func (r *TournamentRegistry) refreshTournaments(ctx context.Context, force bool) error {
	if force {
		return r.fetchTournaments(ctx)
	}
	if !r.tournamentThrottle.ready(r.now()) {
		r.metrics.RefreshSkipped.WithLabelValues("tournaments").Inc()
		return nil
	}
	_, err, _ := r.flight.Do("tournaments", func() (any, error) {
		return nil, r.fetchTournaments(ctx)
	})
	return err
}

func (r *TournamentRegistry) fetchTournaments(ctx context.Context) error {
	seq := r.tournamentFetchSeq.Add(1)

	callCtx, cancel := r.gatewayContext(ctx)
	defer cancel()
	tournaments, err := r.tournamentsRepo.List(callCtx, repositories.TournamentFilter{})
	r.observe("tournaments", "list", err)
	if err != nil {
		err = translateGatewayError("refresh tournaments", err)
		r.setLastError(err)
		r.logger.Error("failed to refresh tournaments", slog.Any("error", err))
		return err
	}
	r.tournamentThrottle.mark(r.now())

	r.mu.Lock()
	if seq > r.tournamentApplied {
		r.tournamentApplied = seq
		r.tournaments = tournaments
		r.version++
	}
	r.lastErr = nil
	cached := len(r.tournaments)
	r.mu.Unlock()

	r.metrics.CachedTournaments.Set(float64(cached))
	r.logger.Debug("tournaments refreshed", slog.Int("count", len(tournaments)))
	r.publish(LobbyRoom, EventTournamentsUpdated, nil)

	// заявки подтягиваются следом, чтобы счетчики мест не отставали от списка
	r.runBackground("refresh-registrations", 0, func(ctx context.Context) error {
		return r.RefreshAllRegistrations(ctx)
	})
	return nil
}

// RefreshRegistrationsForTournament fetches the registrations of one tournament
// and replaces that slice of the cache. It is not throttled.
func (r *TournamentRegistry) RefreshRegistrationsForTournament(ctx context.Context, tournamentID string) ([]models.Registration, error) {
	startSeq := r.registrationFetchSeq.Load()
	callCtx, cancel := r.gatewayContext(ctx)
	defer cancel()
	regs, err := r.registrationsRepo.List(callCtx, repositories.RegistrationFilter{TournamentID: &tournamentID})
	r.observe("registrations", "list", err)
	if err != nil {
		err = translateGatewayError("refresh registrations", err)
		r.logger.Error("failed to refresh registrations",
			slog.String("tournament_id", tournamentID), slog.Any("error", err))
		return nil, err
	}

	r.mu.Lock()
	for id, reg := range r.registrations {
		if reg.TournamentID == tournamentID {
			delete(r.registrations, id)
		}
	}
	for _, reg := range regs {
		r.registrations[reg.ID] = reg
	}
	r.registrationApplied = max(r.registrationApplied, startSeq)
	cached := len(r.registrations)
	r.mu.Unlock()

	r.metrics.CachedRegistration.Set(float64(cached))
	r.publishRegistrations(tournamentID)
	return regs, nil
}

// RefreshAllRegistrations reloads every registration, throttled by the
// registration window.
func (r *TournamentRegistry) RefreshAllRegistrations(ctx context.Context) error {
	return r.refreshAllRegistrations(ctx, false)
}

func (r *TournamentRegistry) refreshAllRegistrations(ctx context.Context, force bool) error {
	if force {
		return r.fetchAllRegistrations(ctx)
	}
	if !r.registrationThrottle.ready(r.now()) {
		r.metrics.RefreshSkipped.WithLabelValues("registrations").Inc()
		return nil
	}
	_, err, _ := r.flight.Do("registrations", func() (any, error) {
		return nil, r.fetchAllRegistrations(ctx)
	})
	return err
}

func (r *TournamentRegistry) fetchAllRegistrations(ctx context.Context) error {
	seq := r.registrationFetchSeq.Add(1)

	callCtx, cancel := r.gatewayContext(ctx)
	defer cancel()
	regs, err := r.registrationsRepo.List(callCtx, repositories.RegistrationFilter{})
	r.observe("registrations", "list", err)
	if err != nil {
		err = translateGatewayError("refresh registrations", err)
		r.logger.Error("failed to refresh registrations", slog.Any("error", err))
		return err
	}
	r.registrationThrottle.mark(r.now())

	fresh := make(map[string]models.Registration, len(regs))
	for _, reg := range regs {
		fresh[reg.ID] = reg
	}

	r.mu.Lock()
	applied := seq > r.registrationApplied
	if applied {
		r.registrationApplied = seq
		r.registrations = fresh
	}
	cached := len(r.registrations)
	r.mu.Unlock()

	if applied {
		r.metrics.CachedRegistration.Set(float64(cached))
		r.publish(LobbyRoom, EventRegistrationsUpdated, nil)
	}
	return nil
}

// Локальные записи делают устаревшими все полные выборки, начатые до них.
// Вызывать под r.mu.
func (r *TournamentRegistry) invalidateTournamentSnapshotsLocked() {
	r.tournamentApplied = r.tournamentFetchSeq.Load()
}

func (r *TournamentRegistry) invalidateRegistrationSnapshotsLocked() {
	r.registrationApplied = r.registrationFetchSeq.Load()
}

// cacheTournamentLocked добавляет турнир, прочитанный из хранилища мимо кэша,
// чтобы места считались по его игре. Уже закэшированный турнир не трогается.
// Вызывать под r.mu.
func (r *TournamentRegistry) cacheTournamentLocked(t models.Tournament) {
	for _, cached := range r.tournaments {
		if cached.ID == t.ID {
			return
		}
	}
	at := sort.Search(len(r.tournaments), func(i int) bool {
		return !r.tournaments[i].StartDate.After(t.StartDate)
	})
	r.tournaments = slices.Insert(r.tournaments, at, t)
	r.version++
}

func (r *TournamentRegistry) publishRegistrations(tournamentID string) {
	r.publish(TournamentRoom(tournamentID), EventRegistrationsUpdated, RegistrationsPayload{
		TournamentID:      tournamentID,
		RegistrationCount: r.RegistrationCount(tournamentID),
		RemainingSpots:    r.RemainingSpots(tournamentID),
	})
}

// Tournaments returns the cached list, newest first.
func (r *TournamentRegistry) Tournaments() []models.Tournament {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Tournament, len(r.tournaments))
	copy(out, r.tournaments)
	return out
}

func (r *TournamentRegistry) Tournament(id string) (models.Tournament, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tournaments {
		if t.ID == id {
			return t, true
		}
	}
	return models.Tournament{}, false
}

// ActiveTournamentsByGame возвращает по одному активному турниру на игру.
// Результат пересчитывается только после изменения кэша.
func (r *TournamentRegistry) ActiveTournamentsByGame() map[string]models.Tournament {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeByGame == nil || r.activeVersion != r.version {
		r.activeByGame = ActiveByGame(r.tournaments)
		r.activeVersion = r.version
	}
	return maps.Clone(r.activeByGame)
}

// ActiveTournaments is ActiveTournamentsByGame as a slice, newest first.
func (r *TournamentRegistry) ActiveTournaments() []models.Tournament {
	byGame := r.ActiveTournamentsByGame()
	out := make([]models.Tournament, 0, len(byGame))
	for _, t := range byGame {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].Game < out[j].Game
	})
	return out
}

// ActiveByGame keeps, per game, the active tournament with the highest edition.
func ActiveByGame(tournaments []models.Tournament) map[string]models.Tournament {
	result := make(map[string]models.Tournament)
	for _, t := range tournaments {
		if !t.IsActive() {
			continue
		}
		if current, ok := result[t.Game]; !ok || t.Edition > current.Edition {
			result[t.Game] = t
		}
	}
	return result
}

// Registrations returns the cached registrations of one tournament in arrival order.
func (r *TournamentRegistry) Registrations(tournamentID string) []models.Registration {
	r.mu.RLock()
	out := make([]models.Registration, 0)
	for _, reg := range r.registrations {
		if reg.TournamentID == tournamentID {
			out = append(out, reg)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *TournamentRegistry) RegistrationCount(tournamentID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked(tournamentID)
}

func (r *TournamentRegistry) countLocked(tournamentID string) int {
	n := 0
	for _, reg := range r.registrations {
		if reg.TournamentID == tournamentID {
			n++
		}
	}
	return n
}

// Capacity returns the seat limit of a cached tournament, or the default limit
// when the tournament is not cached.
func (r *TournamentRegistry) Capacity(tournamentID string) int {
	if t, ok := r.Tournament(tournamentID); ok {
		return r.capacity.Capacity(t.Game)
	}
	return r.capacity.Default()
}

// RemainingSpots never goes below zero.
func (r *TournamentRegistry) RemainingSpots(tournamentID string) int {
	return max(0, r.Capacity(tournamentID)-r.RegistrationCount(tournamentID))
}

func (r *TournamentRegistry) Spots(tournamentID string) (models.TournamentSpots, bool) {
	t, ok := r.Tournament(tournamentID)
	if !ok {
		return models.TournamentSpots{}, false
	}
	capacity := r.capacity.Capacity(t.Game)
	count := r.RegistrationCount(tournamentID)
	return models.TournamentSpots{
		Tournament:        t,
		RegistrationCount: count,
		Capacity:          capacity,
		RemainingSpots:    max(0, capacity-count),
	}, true
}

// LookupTournament reads one tournament straight from the gateway.
func (r *TournamentRegistry) LookupTournament(ctx context.Context, tournamentID string, onlyActive bool) (*models.Tournament, error) {
	if tournamentID == "" {
		return nil, ErrTournamentNotFound
	}
	filter := repositories.TournamentFilter{ID: &tournamentID}
	if onlyActive {
		active := models.StatusActive
		filter.Status = &active
	}

	callCtx, cancel := r.gatewayContext(ctx)
	defer cancel()
	found, err := r.tournamentsRepo.List(callCtx, filter)
	r.observe("tournaments", "lookup", err)
	if err != nil {
		return nil, translateGatewayError("lookup tournament", err)
	}
	if len(found) == 0 {
		return nil, ErrTournamentNotFound
	}
	return &found[0], nil
}

func isBusinessRejection(err error) bool {
	return errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrDuplicateRegistration) ||
		errors.Is(err, ErrTournamentFull) ||
		errors.Is(err, ErrTournamentNotFound) ||
		errors.Is(err, ErrEditionConflict) ||
		errors.Is(err, ErrUnauthorized)
}
