package models

import "time"

// Employer is the tenant root owning jobs, subscriptions and applications.
type Employer struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	CompanyName string `gorm:"type:varchar(255);not null"`     // Company display name.
	Email       string `gorm:"type:text;not null;uniqueIndex"` // Unique login email.
	Password    string `gorm:"type:text;not null"`             // Hashed password.

	Website  string `gorm:"type:varchar(255)"` // Company website URL.
	Location string `gorm:"type:varchar(255)"` // Company location.

	Active bool `gorm:"not null;default:true"` // Whether the employer can sign in.

	Jobs          []Job          `gorm:"foreignKey:EmployerID"` // Jobs posted by this employer.
	Subscriptions []Subscription `gorm:"foreignKey:EmployerID"` // Purchase history.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
