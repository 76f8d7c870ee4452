package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dosada05/venue-tournaments/models"
	"github.com/Dosada05/venue-tournaments/repositories"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingTournaments считает вызовы List и может подменять ошибки шлюза.
type countingTournaments struct {
	repositories.TournamentRepository
	listCalls atomic.Int32

	mu        sync.Mutex
	listErr   error
	updateErr error
}

func (c *countingTournaments) setListErr(err error) {
	c.mu.Lock()
	c.listErr = err
	c.mu.Unlock()
}

func (c *countingTournaments) List(ctx context.Context, f repositories.TournamentFilter) ([]models.Tournament, error) {
	c.listCalls.Add(1)
	c.mu.Lock()
	err := c.listErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.TournamentRepository.List(ctx, f)
}

func (c *countingTournaments) UpdateStatus(ctx context.Context, f repositories.TournamentFilter, s models.TournamentStatus) (int64, error) {
	c.mu.Lock()
	err := c.updateErr
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return c.TournamentRepository.UpdateStatus(ctx, f, s)
}

type countingRegistrations struct {
	repositories.RegistrationRepository
	listCalls atomic.Int32

	mu        sync.Mutex
	listErr   error
	deleteErr error
}

func (c *countingRegistrations) List(ctx context.Context, f repositories.RegistrationFilter) ([]models.Registration, error) {
	c.listCalls.Add(1)
	c.mu.Lock()
	err := c.listErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.RegistrationRepository.List(ctx, f)
}

func (c *countingRegistrations) Delete(ctx context.Context, f repositories.RegistrationFilter) (int64, error) {
	c.mu.Lock()
	err := c.deleteErr
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return c.RegistrationRepository.Delete(ctx, f)
}

type testEnv struct {
	store         *repositories.MemoryStore
	tournaments   *countingTournaments
	registrations *countingRegistrations
	clock         *fakeClock
	registry      *TournamentRegistry
}

func newTestEnv(t *testing.T, opts ...func(*RegistryConfig)) *testEnv {
	t.Helper()
	store := repositories.NewMemoryStore()
	clock := newFakeClock()
	store.Now = clock.Now

	env := &testEnv{
		store:         store,
		tournaments:   &countingTournaments{TournamentRepository: store.Tournaments()},
		registrations: &countingRegistrations{RegistrationRepository: store.Registrations()},
		clock:         clock,
	}
	cfg := RegistryConfig{
		Tournaments:    env.tournaments,
		Registrations:  env.registrations,
		Clock:          clock.Now,
		GatewayTimeout: time.Second,
		ReconcileDelay: time.Hour,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	env.registry = NewTournamentRegistry(cfg)
	t.Cleanup(env.registry.Close)
	return env
}

func (e *testEnv) seedTournament(t *testing.T, game string, edition int, status models.TournamentStatus) models.Tournament {
	t.Helper()
	e.clock.Advance(time.Minute)
	tournament := &models.Tournament{Game: game, Edition: edition, Status: status, StartDate: e.clock.Now()}
	require.NoError(t, e.store.Tournaments().Insert(context.Background(), tournament))
	return *tournament
}

func (e *testEnv) seedRegistration(t *testing.T, tournamentID, name, number string) models.Registration {
	t.Helper()
	reg := &models.Registration{FullName: name, WhatsappNumber: number, TournamentID: tournamentID}
	require.NoError(t, e.store.Registrations().Insert(context.Background(), reg, 0))
	return *reg
}

func (e *testEnv) storedRegistrations(t *testing.T, tournamentID string) []models.Registration {
	t.Helper()
	regs, err := e.store.Registrations().List(context.Background(),
		repositories.RegistrationFilter{TournamentID: &tournamentID})
	require.NoError(t, err)
	return regs
}

func adminContext() context.Context {
	return ContextWithAdmin(context.Background(), &models.Admin{
		Email:     "admin@example.com",
		TokenID:   "test-session",
		ExpiresAt: time.Now().Add(time.Hour),
	})
}
