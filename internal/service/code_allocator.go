package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

// DefaultCodeAttempts is the candidate budget of one allocation.
const DefaultCodeAttempts = 10

const (
	codeNumberMin  = 1000
	codeNumberSpan = 9000
	codeLabelWidth = 4
)

type codeStore interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// CodeAllocator mints enrollment codes of the form E<label>-<1000..9999>.
type CodeAllocator struct {
	store       codeStore
	maxAttempts int
	intn        func(n int) int
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewCodeAllocator constructs an allocator. maxAttempts <= 0 falls back to DefaultCodeAttempts.
func NewCodeAllocator(store codeStore, maxAttempts int, metrics *MetricsService, logger *zap.Logger) *CodeAllocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultCodeAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeAllocator{store: store, maxAttempts: maxAttempts, intn: rand.Intn, metrics: metrics, logger: logger}
}

// EnrollmentCode renders the code for a term label and number.
func EnrollmentCode(label string, number int) string {
	label = strings.ToUpper(strings.TrimSpace(label))
	if pad := codeLabelWidth - len(label); pad > 0 {
		label = strings.Repeat("0", pad) + label
	}
	return fmt.Sprintf("E%s-%d", label, number)
}

func (a *CodeAllocator) candidate(term *models.Term) string {
	return EnrollmentCode(term.Label, codeNumberMin+a.intn(codeNumberSpan))
}

// Allocate returns a code not yet used by any enrollment.
func (a *CodeAllocator) Allocate(ctx context.Context, term *models.Term) (string, error) {
	return a.AllocateWith(ctx, term, nil)
}

// AllocateWith allocates a code and hands it to persist. A persist failure with
// repository.ErrDuplicateCode consumes an attempt and the loop carries on with a
// fresh candidate, so the store's unique index settles races between callers.
func (a *CodeAllocator) AllocateWith(ctx context.Context, term *models.Term, persist func(code string) error) (string, error) {
	if term == nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, "no active term")
	}
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code := a.candidate(term)
		taken, err := a.store.CodeExists(ctx, code)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment code")
		}
		if taken {
			continue
		}
		if persist != nil {
			if err := persist(code); err != nil {
				if errors.Is(err, repository.ErrDuplicateCode) {
					a.logger.Debug("enrollment code taken concurrently", zap.String("code", code), zap.Int("attempt", attempt))
					continue
				}
				return "", err
			}
		}
		a.metrics.ObserveCodeAttempts(attempt)
		return code, nil
	}
	a.metrics.ObserveCodeAttempts(a.maxAttempts)
	a.logger.Warn("enrollment code space exhausted", zap.String("term_id", term.ID), zap.Int("attempts", a.maxAttempts))
	return "", appErrors.Clone(appErrors.ErrExhausted, fmt.Sprintf("no unique enrollment code after %d attempts", a.maxAttempts))
}
