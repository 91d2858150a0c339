package db

import (
	"errors"
	"fmt"

	"github.com/hiredeck/hiredeck/internal/models"

	"gorm.io/gorm"
)

// Migrate runs schema migrations and seeds baseline catalog rows.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Employer{},
		&models.Candidate{},
		&models.Resume{},
		&models.Job{},
		&models.SubscriptionPlan{},
		&models.Subscription{},
		&models.JobApplication{},
		&models.Notification{},
		&models.WebhookEvent{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errSeed := ensureDefaultPlans(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// ensureDefaultPlans seeds the plan catalog when it is empty so a fresh
// install has purchasable tiers.
func ensureDefaultPlans(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.SubscriptionPlan{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("db: count plans: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	seed := []models.SubscriptionPlan{
		{
			Name:              "Starter",
			Price:             29,
			Currency:          "USD",
			DurationDays:      30,
			JobPostsLimit:     3,
			FeaturedJobsLimit: 0,
			ResumeViewsLimit:  10,
			PaymentType:       models.PlanPaymentOneTime,
			GatewayPlanIDs:    []byte(`{}`),
			SortOrder:         1,
			IsActive:          true,
		},
		{
			Name:              "Growth",
			Price:             99,
			Currency:          "USD",
			DurationDays:      30,
			JobPostsLimit:     15,
			FeaturedJobsLimit: 3,
			ResumeViewsLimit:  100,
			PaymentType:       models.PlanPaymentRecurring,
			GatewayPlanIDs:    []byte(`{}`),
			SortOrder:         2,
			IsActive:          true,
			IsFeatured:        true,
		},
		{
			Name:              "Enterprise",
			Price:             299,
			Currency:          "USD",
			DurationDays:      30,
			JobPostsLimit:     100,
			FeaturedJobsLimit: 20,
			ResumeViewsLimit:  1000,
			PaymentType:       models.PlanPaymentRecurring,
			GatewayPlanIDs:    []byte(`{}`),
			SortOrder:         3,
			IsActive:          true,
		},
	}

	for i := range seed {
		if errCreate := conn.Create(&seed[i]).Error; errCreate != nil {
			if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
				continue
			}
			return fmt.Errorf("db: seed plan %q: %w", seed[i].Name, errCreate)
		}
	}
	return nil
}
