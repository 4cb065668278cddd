package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/NeuEntity/surm-student-portal-sub000/internal/dto"
	"github.com/NeuEntity/surm-student-portal-sub000/internal/models"
	appErrors "github.com/NeuEntity/surm-student-portal-sub000/pkg/errors"
)

type balanceProvider interface {
	Balance(ctx context.Context, personID string, year int, actor *models.JWTClaims) (*models.LeaveBalance, error)
}

type submissionLister interface {
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// OverviewService serves a cached dashboard view of a person's leave year.
// Only this read path is cached; balance checks during submission always hit
// the store. Mutations invalidate by pattern, so a stale overview lives at
// most one TTL.
type OverviewService struct {
	balance     balanceProvider
	submissions submissionLister
	users       userFinder
	cache       cacheStore
	ttl         time.Duration
	logger      *zap.Logger
}

// NewOverviewService constructs the service.
func NewOverviewService(balance balanceProvider, submissions submissionLister, users userFinder, cache cacheStore, ttl time.Duration, logger *zap.Logger) *OverviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverviewService{balance: balance, submissions: submissions, users: users, cache: cache, ttl: ttl, logger: logger}
}

func overviewKey(personID string, year int) string {
	return fmt.Sprintf("overview:%s:%d", personID, year)
}

// Overview returns the person's year summary, from cache when fresh. The
// second return reports whether the payload came from cache. Scope is
// checked before the cache is consulted so a hit cannot leak past it.
func (s *OverviewService) Overview(ctx context.Context, personID string, year int, actor *models.JWTClaims) (*dto.LeaveOverviewResponse, bool, error) {
	if err := authorizePersonRead(ctx, s.users, actor, personID); err != nil {
		return nil, false, err
	}
	key := overviewKey(personID, year)
	if s.cache != nil {
		var cached dto.LeaveOverviewResponse
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("overview cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	overview, err := s.build(ctx, personID, year, actor)
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, overview, s.ttl); err != nil {
			s.logger.Warn("overview cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return overview, false, nil
}

func (s *OverviewService) build(ctx context.Context, personID string, year int, actor *models.JWTClaims) (*dto.LeaveOverviewResponse, error) {
	balance, err := s.balance.Balance(ctx, personID, year, actor)
	if err != nil {
		return nil, err
	}

	start, end := models.YearWindow(year)
	pending, err := s.count(ctx, personID, []models.SubmissionStatus{models.StatusPending}, start, end)
	if err != nil {
		return nil, err
	}
	decided, err := s.count(ctx, personID, []models.SubmissionStatus{models.StatusApproved, models.StatusRejected}, start, end)
	if err != nil {
		return nil, err
	}

	return &dto.LeaveOverviewResponse{
		PersonID:    personID,
		Year:        year,
		Balance:     *balance,
		Pending:     pending,
		Decided:     decided,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (s *OverviewService) count(ctx context.Context, personID string, statuses []models.SubmissionStatus, start, end time.Time) (int, error) {
	_, total, err := s.submissions.List(ctx, models.SubmissionFilter{
		RequesterID: personID,
		Status:      statuses,
		DateFrom:    &start,
		DateTo:      &end,
		Page:        1,
		PageSize:    1,
	})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to count submissions")
	}
	return total, nil
}

// InvalidatePerson drops every cached overview for the person. Invalidation
// is best effort; a failed delete only shortens nothing, the TTL still caps
// staleness.
func (s *OverviewService) InvalidatePerson(ctx context.Context, personID string) {
	if s.cache == nil {
		return
	}
	pattern := fmt.Sprintf("overview:%s:*", personID)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("overview cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
