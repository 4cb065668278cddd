package models

import "github.com/NeuEntity/surm-student-portal-sub000/pkg/config"

// Entitlement holds the annual day allotments per leave category.
type Entitlement struct {
	AnnualLeaveDays  int `json:"annual_leave_days"`
	MedicalLeaveDays int `json:"medical_leave_days"`
}

// EntitlementTable maps an employment classification to its allotments.
// It is immutable policy data; lookups are total and never error.
type EntitlementTable struct {
	tiers map[EmploymentType]Entitlement
}

// NewEntitlementTable builds the table from configuration.
func NewEntitlementTable(cfg config.EntitlementConfig) *EntitlementTable {
	return &EntitlementTable{
		tiers: map[EmploymentType]Entitlement{
			EmploymentFullTime:          {AnnualLeaveDays: cfg.FullTimeAnnual, MedicalLeaveDays: cfg.FullTimeMedical},
			EmploymentPermanentPartTime: {AnnualLeaveDays: cfg.PermanentPartTimeAnnual, MedicalLeaveDays: cfg.PermanentPartTimeMedical},
			EmploymentPartTime:          {AnnualLeaveDays: cfg.PartTimeAnnual, MedicalLeaveDays: cfg.PartTimeMedical},
		},
	}
}

// For returns the allotments for the classification. Unknown or absent
// classifications yield the zero entitlement.
func (t *EntitlementTable) For(classification EmploymentType) Entitlement {
	if t == nil {
		return Entitlement{}
	}
	return t.tiers[classification]
}

// DaysFor returns the allotment for a single balance-tracked category.
func (t *EntitlementTable) DaysFor(classification EmploymentType, category SubmissionCategory) int {
	entitlement := t.For(classification)
	switch category {
	case CategoryAnnualLeave:
		return entitlement.AnnualLeaveDays
	case CategoryMedicalCert:
		return entitlement.MedicalLeaveDays
	default:
		return 0
	}
}
