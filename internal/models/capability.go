package models

// Capability enumerates the decision rights the approval flow checks. The
// category → capability matrix lives here so authorization is explicit and
// exhaustively testable instead of scattered string membership checks.
type Capability string

const (
	// CapDecideStaffLeave authorizes decisions on staff annual-leave and
	// medical-certificate submissions.
	CapDecideStaffLeave Capability = "DECIDE_STAFF_LEAVE"
	// CapDecideStudentSubmission authorizes decisions on student letters,
	// early-dismissal forms and medical certificates.
	CapDecideStudentSubmission Capability = "DECIDE_STUDENT_SUBMISSION"
)

// HasCapability reports whether the actor holds the capability. It is
// evaluated on every call; results are never cached.
func HasCapability(actor *User, capability Capability) bool {
	if actor == nil || !actor.Active {
		return false
	}
	switch capability {
	case CapDecideStaffLeave:
		return actor.HasFlag(FlagPrincipal)
	case CapDecideStudentSubmission:
		return actor.Role == RoleAdmin || actor.Role == RoleSuperAdmin
	default:
		return false
	}
}

// DecisionCapability returns the capability required to decide a submission,
// given its category and the requester's role. The second return is false
// for categories that are never reviewed.
func DecisionCapability(category SubmissionCategory, requesterRole UserRole) (Capability, bool) {
	switch category {
	case CategoryAnnualLeave:
		return CapDecideStaffLeave, true
	case CategoryMedicalCert:
		if requesterRole == RoleStudent {
			return CapDecideStudentSubmission, true
		}
		return CapDecideStaffLeave, true
	case CategoryLetters, CategoryEarlyDismissal:
		return CapDecideStudentSubmission, true
	default:
		return "", false
	}
}
