package service

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

// memEnrollmentRepo enforces the same unique keys as the enrollments table.
type memEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[string]models.Enrollment
	seq         int
	lastFilter  models.EnrollmentFilter
	listCalls   int
}

func newMemEnrollmentRepo() *memEnrollmentRepo {
	return &memEnrollmentRepo{enrollments: make(map[string]models.Enrollment)}
}

func (m *memEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter, window models.Window) ([]models.EnrollmentDetail, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	m.listCalls++
	var all []models.EnrollmentDetail
	for i := 1; i <= m.seq; i++ {
		e, ok := m.enrollments[fmt.Sprintf("enr-%d", i)]
		if !ok {
			continue
		}
		if (filter.CohortID == "" || e.CohortID == filter.CohortID) &&
			(filter.LocationID == "" || e.LocationID == filter.LocationID) &&
			(filter.TermID == "" || e.TermID == filter.TermID) {
			all = append(all, models.EnrollmentDetail{Enrollment: e})
		}
	}
	total := len(all)
	from, to := window.Offset(), window.To
	if from > total {
		from = total
	}
	if to > total {
		to = total
	}
	return all[from:to], total, nil
}

func (m *memEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	e, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.EnrollmentDetail{Enrollment: *e, TermLabel: "2025"}, nil
}

func (m *memEnrollmentRepo) ExistsForStudentInTerm(ctx context.Context, studentID, termID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.TermID == termID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memEnrollmentRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *memEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.Code == enrollment.Code {
			return repository.ErrDuplicateCode
		}
		if e.StudentID == enrollment.StudentID && e.TermID == enrollment.TermID {
			return repository.ErrDuplicateEnrollment
		}
	}
	m.seq++
	enrollment.ID = fmt.Sprintf("enr-%d", m.seq)
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m *memEnrollmentRepo) Update(ctx context.Context, enrollment *models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.enrollments[enrollment.ID]
	if !ok {
		return sql.ErrNoRows
	}
	enrollment.Average, enrollment.Rank = stored.Average, stored.Rank
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m *memEnrollmentRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.enrollments, id)
	return nil
}

type stubDirectory struct {
	students  map[string]bool
	cohorts   map[string]bool
	locations map[string]bool
	subjects  map[string]models.Subject
	teachers  map[string]bool
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		students:  map[string]bool{"stu-1": true, "stu-2": true},
		cohorts:   map[string]bool{"coh-1": true, "coh-2": true},
		locations: map[string]bool{"loc-1": true},
		subjects:  map[string]models.Subject{"sub-1": {ID: "sub-1", Name: "Math", CohortID: "coh-1"}, "sub-2": {ID: "sub-2", Name: "Art", CohortID: "coh-2"}},
		teachers:  map[string]bool{"tch-1": true},
	}
}

func (d *stubDirectory) FindStudent(ctx context.Context, id string) (*models.Student, error) {
	if !d.students[id] {
		return nil, sql.ErrNoRows
	}
	return &models.Student{ID: id}, nil
}

func (d *stubDirectory) FindCohort(ctx context.Context, id string) (*models.Cohort, error) {
	if !d.cohorts[id] {
		return nil, sql.ErrNoRows
	}
	return &models.Cohort{ID: id}, nil
}

func (d *stubDirectory) FindLocation(ctx context.Context, id string) (*models.Location, error) {
	if !d.locations[id] {
		return nil, sql.ErrNoRows
	}
	return &models.Location{ID: id}, nil
}

func (d *stubDirectory) FindSubject(ctx context.Context, id string) (*models.Subject, error) {
	s, ok := d.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (d *stubDirectory) FindTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	if !d.teachers[id] {
		return nil, sql.ErrNoRows
	}
	return &models.Teacher{ID: id}, nil
}

var activeTerm2025 = stubActiveTerm{term: &models.Term{ID: "term-1", Label: "2025", Period: 1, IsActive: true}}

func newEnrollmentService(repo *memEnrollmentRepo, terms activeTermProvider) *EnrollmentService {
	return NewEnrollmentService(repo, newStubDirectory(), terms, NewCodeAllocator(repo, 10, nil, nil), nil, nil)
}

func TestEnrollmentServiceRegister(t *testing.T) {
	repo := newMemEnrollmentRepo()
	svc := newEnrollmentService(repo, activeTerm2025)

	detail, err := svc.Register(context.Background(), RegisterEnrollmentRequest{StudentID: "stu-1", CohortID: "coh-1", LocationID: "loc-1"})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^E2025-\d{4}$`), detail.Code)
	assert.Equal(t, "term-1", detail.TermID)
	assert.Equal(t, models.EnrollmentStatusActive, detail.Status)
	assert.Zero(t, detail.Average)
	assert.Zero(t, detail.Rank)
}

func TestEnrollmentServiceRegisterTwiceInTerm(t *testing.T) {
	repo := newMemEnrollmentRepo()
	svc := newEnrollmentService(repo, activeTerm2025)
	req := RegisterEnrollmentRequest{StudentID: "stu-1", CohortID: "coh-1", LocationID: "loc-1"}

	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Len(t, repo.enrollments, 1)
}

func TestEnrollmentServiceRegisterWithoutActiveTerm(t *testing.T) {
	repo := newMemEnrollmentRepo()
	svc := newEnrollmentService(repo, stubActiveTerm{})

	_, err := svc.Register(context.Background(), RegisterEnrollmentRequest{StudentID: "stu-1", CohortID: "coh-1", LocationID: "loc-1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Empty(t, repo.enrollments)
}

func TestEnrollmentServiceRegisterUnknownCohort(t *testing.T) {
	svc := newEnrollmentService(newMemEnrollmentRepo(), activeTerm2025)

	_, err := svc.Register(context.Background(), RegisterEnrollmentRequest{StudentID: "stu-1", CohortID: "nope", LocationID: "loc-1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentServiceRegisterExhaustedLeavesNothing(t *testing.T) {
	repo := newMemEnrollmentRepo()
	allocator := NewCodeAllocator(repo, 10, nil, nil)
	allocator.intn = func(int) int { return 0 }
	repo.enrollments["enr-0"] = models.Enrollment{ID: "enr-0", Code: "E2025-1000", StudentID: "stu-2", TermID: "term-1"}
	svc := NewEnrollmentService(repo, newStubDirectory(), activeTerm2025, allocator, nil, nil)

	_, err := svc.Register(context.Background(), RegisterEnrollmentRequest{StudentID: "stu-1", CohortID: "coh-1", LocationID: "loc-1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrExhausted))
	assert.Len(t, repo.enrollments, 1)
}

func TestEnrollmentServiceConcurrentRegistrationsGetDistinctCodes(t *testing.T) {
	repo := newMemEnrollmentRepo()
	dir := newStubDirectory()
	for i := 0; i < 20; i++ {
		dir.students[fmt.Sprintf("s-%d", i)] = true
	}
	allocator := NewCodeAllocator(repo, 10, nil, nil)
	allocator.intn = sequence(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19)
	svc := NewEnrollmentService(repo, dir, activeTerm2025, allocator, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(student string) {
			defer wg.Done()
			_, _ = svc.Register(context.Background(), RegisterEnrollmentRequest{StudentID: student, CohortID: "coh-1", LocationID: "loc-1"})
		}(fmt.Sprintf("s-%d", i))
	}
	wg.Wait()

	codes := map[string]bool{}
	for _, e := range repo.enrollments {
		assert.False(t, codes[e.Code], "duplicate code %s", e.Code)
		codes[e.Code] = true
	}
	assert.NotEmpty(t, codes)
}

func TestEnrollmentServiceUpdateIgnoresDerivedFields(t *testing.T) {
	repo := newMemEnrollmentRepo()
	repo.seq = 1
	repo.enrollments["enr-1"] = models.Enrollment{ID: "enr-1", Code: "E2025-1234", StudentID: "stu-1", CohortID: "coh-1", TermID: "term-1", Average: 8.2, Rank: 2, Status: models.EnrollmentStatusActive}
	svc := newEnrollmentService(repo, activeTerm2025)

	status := models.EnrollmentStatusWithdrawn
	cohort := "coh-2"
	detail, err := svc.Update(context.Background(), "enr-1", UpdateEnrollmentRequest{Status: &status, CohortID: &cohort})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWithdrawn, detail.Status)
	assert.Equal(t, "coh-2", detail.CohortID)
	assert.Equal(t, 8.2, detail.Average)
	assert.Equal(t, 2, detail.Rank)
}

func TestEnrollmentServiceUpdateMissing(t *testing.T) {
	svc := newEnrollmentService(newMemEnrollmentRepo(), activeTerm2025)

	_, err := svc.Update(context.Background(), "nope", UpdateEnrollmentRequest{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentServiceUpdateRejectsUnknownStatus(t *testing.T) {
	svc := newEnrollmentService(newMemEnrollmentRepo(), activeTerm2025)
	status := models.EnrollmentStatus("GRADUATED")

	_, err := svc.Update(context.Background(), "enr-1", UpdateEnrollmentRequest{Status: &status})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEnrollmentServiceDegenerateWindows(t *testing.T) {
	repo := newMemEnrollmentRepo()
	svc := newEnrollmentService(repo, activeTerm2025)
	ctx := context.Background()

	for _, w := range []models.Window{{From: 0, To: 0}, {From: 5, To: 2}, {From: 3, To: 3}, {From: 0, To: -1}} {
		page, err := svc.ListByCohort(ctx, "coh-1", w)
		require.NoError(t, err)
		assert.Equal(t, 0, page.Total)
		assert.Empty(t, page.Enrollments)

		page, err = svc.ListByLocation(ctx, "loc-1", w)
		require.NoError(t, err)
		assert.Equal(t, 0, page.Total)
	}
	assert.Zero(t, repo.listCalls)
}

func TestEnrollmentServiceListByCohortScopesActiveTerm(t *testing.T) {
	repo := newMemEnrollmentRepo()
	svc := newEnrollmentService(repo, activeTerm2025)
	ctx := context.Background()
	for _, student := range []string{"stu-1", "stu-2"} {
		_, err := svc.Register(ctx, RegisterEnrollmentRequest{StudentID: student, CohortID: "coh-1", LocationID: "loc-1"})
		require.NoError(t, err)
	}

	page, err := svc.ListByCohort(ctx, "coh-1", models.Window{From: 0, To: 1})
	require.NoError(t, err)
	assert.Len(t, page.Enrollments, 1)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "term-1", repo.lastFilter.TermID)
}

func TestEnrollmentServiceListBySubject(t *testing.T) {
	repo := newMemEnrollmentRepo()
	svc := newEnrollmentService(repo, activeTerm2025)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterEnrollmentRequest{StudentID: "stu-1", CohortID: "coh-1", LocationID: "loc-1"})
	require.NoError(t, err)

	page, err := svc.ListBySubject(ctx, "sub-1", models.Window{To: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = svc.ListBySubject(ctx, "sub-2", models.Window{To: 10})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	_, err = svc.ListBySubject(ctx, "missing", models.Window{To: 10})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentServiceSearchRequiresQuery(t *testing.T) {
	svc := newEnrollmentService(newMemEnrollmentRepo(), activeTerm2025)

	_, err := svc.Search(context.Background(), "  ", models.Window{To: 10})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEnrollmentServiceDelete(t *testing.T) {
	repo := newMemEnrollmentRepo()
	repo.enrollments["enr-1"] = models.Enrollment{ID: "enr-1"}
	svc := newEnrollmentService(repo, activeTerm2025)

	require.NoError(t, svc.Delete(context.Background(), "enr-1"))
	err := svc.Delete(context.Background(), "enr-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
