package models

import "time"

// Candidate represents a job-seeker account.
type Candidate struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:varchar(255);not null"`     // Display name.
	Email    string `gorm:"type:text;not null;uniqueIndex"` // Unique login email.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Headline string `gorm:"type:varchar(255)"` // Short professional headline.
	Location string `gorm:"type:varchar(255)"` // Candidate location.

	Active bool `gorm:"not null;default:true"` // Whether the candidate can sign in.

	Resumes      []Resume         `gorm:"foreignKey:CandidateID"` // Uploaded resumes.
	Applications []JobApplication `gorm:"foreignKey:CandidateID"` // Submitted applications.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Resume is an uploaded CV referenced by applications and gated downloads.
type Resume struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	CandidateID uint64 `gorm:"not null;index"` // Owning candidate ID.

	Title    string `gorm:"type:varchar(255);not null"` // Resume title.
	FilePath string `gorm:"type:text;not null"`         // Stored file path.

	IsPrimary bool `gorm:"not null;default:false"` // Default resume for profile applies.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
