package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

// memTermRepo mimics the single-active guard of the SQL repository under one mutex.
type memTermRepo struct {
	mu          sync.Mutex
	terms       map[string]models.Term
	enrollments map[string]int
	seq         int
}

func newMemTermRepo(terms ...models.Term) *memTermRepo {
	repo := &memTermRepo{terms: make(map[string]models.Term), enrollments: make(map[string]int)}
	for _, t := range terms {
		repo.terms[t.ID] = t
	}
	return repo
}

func (m *memTermRepo) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Term
	for _, t := range m.terms {
		if filter.IsActive != nil && t.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (m *memTermRepo) FindByID(ctx context.Context, id string) (*models.Term, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.terms[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memTermRepo) FindActive(ctx context.Context) (*models.Term, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.terms {
		if t.IsActive {
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memTermRepo) ExistsByLabel(ctx context.Context, label, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.terms {
		if t.Label == label && t.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTermRepo) otherActive(id string) bool {
	for _, t := range m.terms {
		if t.IsActive && t.ID != id {
			return true
		}
	}
	return false
}

func (m *memTermRepo) Create(ctx context.Context, term *models.Term) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if term.ID == "" {
		m.seq++
		term.ID = fmt.Sprintf("term-%d", m.seq)
	}
	if term.IsActive && m.otherActive(term.ID) {
		return repository.ErrActiveTermExists
	}
	m.terms[term.ID] = *term
	return nil
}

func (m *memTermRepo) Update(ctx context.Context, term *models.Term) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.terms[term.ID]; !ok {
		return sql.ErrNoRows
	}
	if term.IsActive && m.otherActive(term.ID) {
		return repository.ErrActiveTermExists
	}
	m.terms[term.ID] = *term
	return nil
}

func (m *memTermRepo) Activate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.terms[id]
	if !ok {
		return sql.ErrNoRows
	}
	if m.otherActive(id) {
		return repository.ErrActiveTermExists
	}
	t.IsActive = true
	m.terms[id] = t
	return nil
}

func (m *memTermRepo) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.terms[id]
	if !ok {
		return sql.ErrNoRows
	}
	t.IsActive = false
	m.terms[id] = t
	return nil
}

func (m *memTermRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.terms, id)
	return nil
}

func (m *memTermRepo) CountEnrollments(ctx context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrollments[id], nil
}

func (m *memTermRepo) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.terms {
		if t.IsActive {
			n++
		}
	}
	return n
}

func TestTermServiceCreateDuplicateLabel(t *testing.T) {
	repo := newMemTermRepo(models.Term{ID: "t1", Label: "2025", Period: 1})
	svc := NewTermService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateTermRequest{Label: "2025", Period: 2})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestTermServiceCreateValidatesPeriod(t *testing.T) {
	svc := NewTermService(newMemTermRepo(), nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateTermRequest{Label: "2025", Period: 5})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestTermServiceCreateActiveWhileAnotherActive(t *testing.T) {
	repo := newMemTermRepo(models.Term{ID: "t1", Label: "2024", Period: 1, IsActive: true})
	metrics := NewMetricsService()
	svc := NewTermService(repo, nil, metrics, nil)

	_, err := svc.Create(context.Background(), CreateTermRequest{Label: "2025", Period: 1, IsActive: true})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Len(t, repo.terms, 1)
	assert.Equal(t, uint64(1), metrics.Snapshot().TermActivationConflicts)
}

func TestTermServiceActivateRequiresExplicitDeactivate(t *testing.T) {
	repo := newMemTermRepo(
		models.Term{ID: "t1", Label: "2024", Period: 1, IsActive: true},
		models.Term{ID: "t2", Label: "2025", Period: 1},
	)
	svc := NewTermService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Activate(ctx, "t2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Deactivate(ctx, "t1")
	require.NoError(t, err)
	term, err := svc.Activate(ctx, "t2")
	require.NoError(t, err)
	assert.True(t, term.IsActive)

	active, err := svc.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t2", active.ID)
}

func TestTermServiceActivateMissing(t *testing.T) {
	svc := NewTermService(newMemTermRepo(), nil, nil, nil)

	_, err := svc.Activate(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestTermServiceGetActiveNone(t *testing.T) {
	svc := NewTermService(newMemTermRepo(models.Term{ID: "t1", Label: "2025"}), nil, nil, nil)

	_, err := svc.GetActive(context.Background())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestTermServiceConcurrentActivationLeavesOneActive(t *testing.T) {
	repo := newMemTermRepo()
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("t%d", i)
		repo.terms[id] = models.Term{ID: id, Label: fmt.Sprintf("20%02d", i), Period: 1}
	}
	svc := NewTermService(repo, nil, nil, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := svc.Activate(context.Background(), id); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(fmt.Sprintf("t%d", i))
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, repo.activeCount())
}

func TestTermServiceUpdateActivationConflict(t *testing.T) {
	repo := newMemTermRepo(
		models.Term{ID: "t1", Label: "2024", Period: 1, IsActive: true},
		models.Term{ID: "t2", Label: "2025", Period: 1},
	)
	svc := NewTermService(repo, nil, nil, nil)
	active := true

	_, err := svc.Update(context.Background(), "t2", UpdateTermRequest{Label: "2025", Period: 2, IsActive: &active})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Update(context.Background(), "t1", UpdateTermRequest{Label: "2024", Period: 3, IsActive: &active})
	require.NoError(t, err)
}

func TestTermServiceDeleteGuards(t *testing.T) {
	repo := newMemTermRepo(
		models.Term{ID: "t1", Label: "2024", Period: 1, IsActive: true},
		models.Term{ID: "t2", Label: "2023", Period: 1},
		models.Term{ID: "t3", Label: "2022", Period: 1},
	)
	repo.enrollments["t2"] = 3
	svc := NewTermService(repo, nil, nil, nil)
	ctx := context.Background()

	err := svc.Delete(ctx, "t1")
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
	err = svc.Delete(ctx, "t2")
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
	require.NoError(t, svc.Delete(ctx, "t3"))
	_, ok := repo.terms["t3"]
	assert.False(t, ok)
}
