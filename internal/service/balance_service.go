package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/NeuEntity/surm-student-portal-sub000/internal/models"
	appErrors "github.com/NeuEntity/surm-student-portal-sub000/pkg/errors"
)

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type usageReader interface {
	Usage(ctx context.Context, requesterID string, categories []models.SubmissionCategory, year int) ([]models.CategoryUsage, error)
}

// BalanceService computes leave balances on demand. Every call reads current
// usage from the store; balances are derived, never stored, so they cannot
// drift from the submissions that produce them.
type BalanceService struct {
	users       userFinder
	submissions usageReader
	table       *models.EntitlementTable
	logger      *zap.Logger
}

// NewBalanceService constructs the service.
func NewBalanceService(users userFinder, submissions usageReader, table *models.EntitlementTable, logger *zap.Logger) *BalanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceService{users: users, submissions: submissions, table: table, logger: logger}
}

var balanceCategories = []models.SubmissionCategory{models.CategoryAnnualLeave, models.CategoryMedicalCert}

// Balance aggregates a person's year: entitlement totals from their
// classification, used days from APPROVED submissions, pending days from
// PENDING ones. Remaining is clamped at zero so historical overdrafts report
// an exhausted balance instead of a negative one. Visible to the person
// themselves and to actors with wide scope (admins, principals).
func (s *BalanceService) Balance(ctx context.Context, personID string, year int, actor *models.JWTClaims) (*models.LeaveBalance, error) {
	if err := authorizePersonRead(ctx, s.users, actor, personID); err != nil {
		return nil, err
	}
	person, err := s.users.FindByID(ctx, personID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load person")
	}

	usage, err := s.submissions.Usage(ctx, personID, balanceCategories, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to aggregate usage")
	}

	entitlement := s.table.For(person.Employment)
	balance := &models.LeaveBalance{
		PersonID:     personID,
		Year:         year,
		AnnualLeave:  models.CategoryBalance{Total: entitlement.AnnualLeaveDays},
		MedicalLeave: models.CategoryBalance{Total: entitlement.MedicalLeaveDays},
	}

	for _, row := range usage {
		target := &balance.AnnualLeave
		if row.Category == models.CategoryMedicalCert {
			target = &balance.MedicalLeave
		}
		switch row.Status {
		case models.StatusApproved:
			target.Used += row.Days
		case models.StatusPending:
			target.Pending += row.Days
		}
	}

	finalize(&balance.AnnualLeave)
	finalize(&balance.MedicalLeave)
	return balance, nil
}

func finalize(b *models.CategoryBalance) {
	b.Remaining = b.Total - b.Used - b.Pending
	if b.Remaining < 0 {
		b.Remaining = 0
	}
}
