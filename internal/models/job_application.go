package models

import "time"

// ApplicationStatus is the hiring-stage of an application. The employer
// pipeline view groups these into four buckets (unsorted, shortlisted,
// offer_sent, rejected); that grouping is a filter, not a separate field.
type ApplicationStatus string

// ApplicationStatus values.
const (
	// StatusUnsorted is the initial bucket before employer triage.
	StatusUnsorted ApplicationStatus = "unsorted"
	// StatusApplied marks a freshly submitted application.
	StatusApplied ApplicationStatus = "applied"
	// StatusScreening marks an application under initial review.
	StatusScreening ApplicationStatus = "screening"
	// StatusInterview marks an application in the interview stage.
	StatusInterview ApplicationStatus = "interview"
	// StatusShortlisted marks a shortlisted application.
	StatusShortlisted ApplicationStatus = "shortlisted"
	// StatusOfferSent marks an application with an outstanding offer.
	StatusOfferSent ApplicationStatus = "offer_sent"
	// StatusRejected is terminal: the employer declined the candidate.
	StatusRejected ApplicationStatus = "rejected"
	// StatusHired is terminal: the candidate accepted an offer.
	StatusHired ApplicationStatus = "hired"
	// StatusWithdrawn is terminal: the candidate withdrew.
	StatusWithdrawn ApplicationStatus = "withdrawn"
)

// ApplyVia indicates which resume source an application used.
type ApplyVia string

// ApplyVia values.
const (
	// ApplyViaCustomCV attaches a resume uploaded for this application.
	ApplyViaCustomCV ApplyVia = "custom_cv"
	// ApplyViaProfileCV references the candidate's profile resume.
	ApplyViaProfileCV ApplyVia = "profile_cv"
)

// JobApplication is a candidate's application to a job. Rows are never
// hard-deleted; the status moves to a terminal value instead.
type JobApplication struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	JobID uint64 `gorm:"not null;index"`   // Applied-to job ID.
	Job   Job    `gorm:"foreignKey:JobID"` // Applied-to job record.

	CandidateID uint64    `gorm:"not null;index"`         // Applying candidate ID.
	Candidate   Candidate `gorm:"foreignKey:CandidateID"` // Applying candidate record.

	ResumeID *uint64 `gorm:"index"`              // Attached resume ID, if any.
	Resume   *Resume `gorm:"foreignKey:ResumeID"` // Attached resume record.

	CoverLetter string   `gorm:"type:text"`                                // Cover letter text.
	ApplyVia    ApplyVia `gorm:"type:varchar(16);not null;default:profile_cv"` // Resume source.

	Status        ApplicationStatus `gorm:"type:varchar(16);not null;default:applied;index"` // Current hiring stage.
	EmployerNotes string            `gorm:"type:text"`                                       // Employer-only notes.

	WithdrawalReason string     `gorm:"type:text"` // Candidate-supplied withdrawal reason.
	WithdrawnAt      *time.Time ``                 // Withdrawal timestamp.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// ValidStatus reports whether s is a member of the closed status enumeration.
func ValidStatus(s ApplicationStatus) bool {
	switch s {
	case StatusUnsorted, StatusApplied, StatusScreening, StatusInterview,
		StatusShortlisted, StatusOfferSent, StatusRejected, StatusHired, StatusWithdrawn:
		return true
	}
	return false
}

// TerminalStatus reports whether s permits no further transitions.
func TerminalStatus(s ApplicationStatus) bool {
	return s == StatusRejected || s == StatusHired || s == StatusWithdrawn
}

// TerminalStatuses returns the statuses that permit no further transitions,
// for use in SQL IN clauses.
func TerminalStatuses() []ApplicationStatus {
	return []ApplicationStatus{StatusRejected, StatusHired, StatusWithdrawn}
}
