package models

import "time"

// Job is a posting owned by one employer.
type Job struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	EmployerID uint64   `gorm:"not null;index"`        // Owning employer ID.
	Employer   Employer `gorm:"foreignKey:EmployerID"` // Owning employer record.

	Title       string `gorm:"type:varchar(255);not null"` // Job title.
	Description string `gorm:"type:text"`                  // Job description.
	Location    string `gorm:"type:varchar(255)"`          // Job location.

	SalaryMin float64 `gorm:"type:decimal(12,2);not null;default:0"` // Salary range lower bound.
	SalaryMax float64 `gorm:"type:decimal(12,2);not null;default:0"` // Salary range upper bound.
	Currency  string  `gorm:"type:varchar(8);not null;default:USD"`  // Salary currency code.

	IsFeatured bool `gorm:"not null;default:false"` // Whether the posting is featured.
	IsActive   bool `gorm:"not null;default:true"`  // Whether the posting accepts applications.

	Applications []JobApplication `gorm:"foreignKey:JobID"` // Applications received.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
