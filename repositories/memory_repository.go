package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/venue-tournaments/models"
	"github.com/google/uuid"
)

// MemoryStore keeps both collections in process memory. It enforces the same
// constraints as schema.sql: unique (game, edition), unique
// (tournament_id, whatsapp_number), restrict-on-delete for tournaments that still
// have registrations, and the checked capacity insert (active tournaments only).
type MemoryStore struct {
	mu            sync.RWMutex
	seq           int64
	tournaments   map[string]memoryTournament
	registrations map[string]memoryRegistration

	// Now подменяется в тестах.
	Now func() time.Time
}

type memoryTournament struct {
	models.Tournament
	seq int64
}

type memoryRegistration struct {
	models.Registration
	seq int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tournaments:   make(map[string]memoryTournament),
		registrations: make(map[string]memoryRegistration),
		Now:           time.Now,
	}
}

func (s *MemoryStore) Tournaments() TournamentRepository {
	return &memoryTournamentRepository{store: s}
}

func (s *MemoryStore) Registrations() RegistrationRepository {
	return &memoryRegistrationRepository{store: s}
}

func (s *MemoryStore) nextSeq() int64 {
	s.seq++
	return s.seq
}

type memoryTournamentRepository struct {
	store *MemoryStore
}

func (f TournamentFilter) matches(t models.Tournament) bool {
	if f.ID != nil && t.ID != *f.ID {
		return false
	}
	if f.Game != nil && t.Game != *f.Game {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	return true
}

func (f TournamentFilter) isEmpty() bool {
	return f.ID == nil && f.Game == nil && f.Status == nil
}

func (r *memoryTournamentRepository) List(ctx context.Context, filter TournamentFilter) ([]models.Tournament, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyError("list tournaments", err)
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows := make([]memoryTournament, 0, len(r.store.tournaments))
	for _, t := range r.store.tournaments {
		if filter.matches(t.Tournament) {
			rows = append(rows, t)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].StartDate.Equal(rows[j].StartDate) {
			return rows[i].StartDate.After(rows[j].StartDate)
		}
		return rows[i].seq > rows[j].seq
	})

	tournaments := make([]models.Tournament, len(rows))
	for i, row := range rows {
		tournaments[i] = row.Tournament
	}
	return tournaments, nil
}

func (r *memoryTournamentRepository) Insert(ctx context.Context, t *models.Tournament) error {
	if err := ctx.Err(); err != nil {
		return classifyError("insert tournament", err)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.tournaments {
		if existing.Game == t.Game && existing.Edition == t.Edition {
			return fmt.Errorf("insert tournament %s #%d: %w", t.Game, t.Edition, ErrConflict)
		}
	}

	t.ID = uuid.NewString()
	if t.StartDate.IsZero() {
		t.StartDate = r.store.Now()
	}
	r.store.tournaments[t.ID] = memoryTournament{Tournament: *t, seq: r.store.nextSeq()}
	return nil
}

func (r *memoryTournamentRepository) UpdateStatus(ctx context.Context, filter TournamentFilter, status models.TournamentStatus) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, classifyError("update tournaments", err)
	}
	if filter.isEmpty() {
		return 0, fmt.Errorf("update tournaments: %w", ErrUnfilteredWrite)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var affected int64
	for id, t := range r.store.tournaments {
		if filter.matches(t.Tournament) {
			t.Status = status
			r.store.tournaments[id] = t
			affected++
		}
	}
	return affected, nil
}

func (r *memoryTournamentRepository) Delete(ctx context.Context, filter TournamentFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, classifyError("delete tournaments", err)
	}
	if filter.isEmpty() {
		return 0, fmt.Errorf("delete tournaments: %w", ErrUnfilteredWrite)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	doomed := make([]string, 0)
	for id, t := range r.store.tournaments {
		if filter.matches(t.Tournament) {
			doomed = append(doomed, id)
		}
	}
	for _, id := range doomed {
		for _, reg := range r.store.registrations {
			if reg.TournamentID == id {
				return 0, fmt.Errorf("delete tournament %s: %w", id, ErrReferenceViolation)
			}
		}
	}
	for _, id := range doomed {
		delete(r.store.tournaments, id)
	}
	return int64(len(doomed)), nil
}

type memoryRegistrationRepository struct {
	store *MemoryStore
}

func (f RegistrationFilter) matches(reg models.Registration) bool {
	if f.TournamentID != nil && reg.TournamentID != *f.TournamentID {
		return false
	}
	if f.WhatsappNumber != nil && reg.WhatsappNumber != *f.WhatsappNumber {
		return false
	}
	return true
}

func (r *memoryRegistrationRepository) List(ctx context.Context, filter RegistrationFilter) ([]models.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyError("list registrations", err)
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows := make([]memoryRegistration, 0)
	for _, reg := range r.store.registrations {
		if filter.matches(reg.Registration) {
			rows = append(rows, reg)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	registrations := make([]models.Registration, len(rows))
	for i, row := range rows {
		registrations[i] = row.Registration
	}
	return registrations, nil
}

func (r *memoryRegistrationRepository) Insert(ctx context.Context, reg *models.Registration, maxPerTournament int) error {
	if err := ctx.Err(); err != nil {
		return classifyError("insert registration", err)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tournament, ok := r.store.tournaments[reg.TournamentID]
	if !ok || (maxPerTournament > 0 && !tournament.IsActive()) {
		return fmt.Errorf("insert registration for %s: %w", reg.TournamentID, ErrReferenceViolation)
	}

	current := 0
	for _, existing := range r.store.registrations {
		if existing.TournamentID != reg.TournamentID {
			continue
		}
		if existing.WhatsappNumber == reg.WhatsappNumber {
			return fmt.Errorf("insert registration %s: %w", reg.WhatsappNumber, ErrConflict)
		}
		current++
	}
	if maxPerTournament > 0 && current >= maxPerTournament {
		return fmt.Errorf("insert registration (%d/%d): %w", current, maxPerTournament, ErrCapacityExceeded)
	}

	reg.ID = uuid.NewString()
	reg.CreatedAt = r.store.Now()
	r.store.registrations[reg.ID] = memoryRegistration{Registration: *reg, seq: r.store.nextSeq()}
	return nil
}

func (r *memoryRegistrationRepository) Delete(ctx context.Context, filter RegistrationFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, classifyError("delete registrations", err)
	}
	if filter.TournamentID == nil && filter.WhatsappNumber == nil {
		return 0, fmt.Errorf("delete registrations: %w", ErrUnfilteredWrite)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var affected int64
	for id, reg := range r.store.registrations {
		if filter.matches(reg.Registration) {
			delete(r.store.registrations, id)
			affected++
		}
	}
	return affected, nil
}
