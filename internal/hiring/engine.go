package hiring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hiredeck/hiredeck/internal/metrics"
	"github.com/hiredeck/hiredeck/internal/models"
	"github.com/hiredeck/hiredeck/internal/notify"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Typed failures surfaced to the HTTP layer.
var (
	// ErrApplicationNotFound indicates the application does not exist.
	ErrApplicationNotFound = errors.New("hiring: application not found")
	// ErrForbidden indicates the acting account does not own the
	// application's job (or the application itself, for withdrawals).
	ErrForbidden = errors.New("hiring: not the owner")
	// ErrInvalidStatus indicates a status outside the closed enumeration.
	ErrInvalidStatus = errors.New("hiring: invalid status")
	// ErrTerminalStatus indicates a transition out of a terminal state.
	ErrTerminalStatus = errors.New("hiring: application is in a terminal state")
)

// Engine enforces the application-status state machine and the rule that
// only the owning employer drives employer-side transitions. All
// JobApplication mutations in the system flow through this type.
type Engine struct {
	db       *gorm.DB
	notifier notify.Dispatcher
}

// NewEngine constructs an Engine.
func NewEngine(db *gorm.DB, notifier notify.Dispatcher) *Engine {
	return &Engine{db: db, notifier: notifier}
}

// loadOwned fetches an application with its job and verifies the job
// belongs to employerID. An ownership mismatch is Forbidden, not NotFound:
// both rows exist, only the relationship is invalid for this actor.
func (e *Engine) loadOwned(ctx context.Context, employerID, applicationID uint64) (*models.JobApplication, error) {
	var app models.JobApplication
	if errFind := e.db.WithContext(ctx).Preload("Job").First(&app, applicationID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("hiring: load application: %w", errFind)
	}
	if app.Job.EmployerID != employerID {
		return nil, ErrForbidden
	}
	return &app, nil
}

// applyTransition runs updates against the application only while it is in
// a non-terminal status. The guard lives in the UPDATE's WHERE clause, so
// two writers racing past the load-time check cannot both transition the
// row; the loser sees zero affected rows.
func (e *Engine) applyTransition(ctx context.Context, applicationID uint64, updates map[string]any) (bool, error) {
	res := e.db.WithContext(ctx).Model(&models.JobApplication{}).
		Where("id = ? AND status NOT IN ?", applicationID, models.TerminalStatuses()).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ChangeStatus transitions one application to newStatus on behalf of the
// owning employer, updating notes when given and notifying the candidate.
// Any non-terminal status may move to any other status; terminal states
// (rejected, hired, withdrawn) are frozen.
func (e *Engine) ChangeStatus(ctx context.Context, employerID, applicationID uint64, newStatus models.ApplicationStatus, notes string) (*models.JobApplication, error) {
	if !models.ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	app, errLoad := e.loadOwned(ctx, employerID, applicationID)
	if errLoad != nil {
		return nil, errLoad
	}
	if models.TerminalStatus(app.Status) {
		return nil, fmt.Errorf("%w: %s", ErrTerminalStatus, app.Status)
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":     newStatus,
		"updated_at": now,
	}
	if notes != "" {
		updates["employer_notes"] = notes
	}
	applied, errUpdate := e.applyTransition(ctx, app.ID, updates)
	if errUpdate != nil {
		return nil, fmt.Errorf("hiring: update status: %w", errUpdate)
	}
	if !applied {
		// A concurrent writer moved the row to a terminal status after
		// the load above.
		return nil, fmt.Errorf("%w: %s", ErrTerminalStatus, app.Status)
	}
	app.Status = newStatus
	if notes != "" {
		app.EmployerNotes = notes
	}
	app.UpdatedAt = now

	metrics.StageTransitions.WithLabelValues(string(newStatus)).Inc()
	e.notifier.Send(ctx, notify.Message{
		RecipientType:    models.RecipientCandidate,
		RecipientID:      app.CandidateID,
		Event:            notify.EventApplicationStatusChanged,
		Subject:          notify.StatusChangedSubject(app.Job.Title, newStatus),
		JobApplicationID: &app.ID,
	})
	return app, nil
}

// BatchChangeStatus applies ChangeStatus to each ID best-effort: every
// application gets its own ownership check and transaction, invalid or
// forbidden IDs are skipped, and the count of successful transitions is
// returned. Per-item failures are logged, not fatal.
func (e *Engine) BatchChangeStatus(ctx context.Context, employerID uint64, applicationIDs []uint64, newStatus models.ApplicationStatus, notes string) (int, error) {
	if !models.ValidStatus(newStatus) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	changed := 0
	for _, id := range applicationIDs {
		if _, errChange := e.ChangeStatus(ctx, employerID, id, newStatus, notes); errChange != nil {
			log.WithError(errChange).WithFields(log.Fields{
				"application_id": id,
				"employer_id":    employerID,
				"status":         newStatus,
			}).Warn("hiring: batch item skipped")
			continue
		}
		changed++
	}
	return changed, nil
}

// Withdraw is the candidate-side terminal transition. Only the applying
// candidate may withdraw; the owning employer is notified.
func (e *Engine) Withdraw(ctx context.Context, candidateID, applicationID uint64, reason string) (*models.JobApplication, error) {
	var app models.JobApplication
	if errFind := e.db.WithContext(ctx).Preload("Job").First(&app, applicationID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("hiring: load application: %w", errFind)
	}
	if app.CandidateID != candidateID {
		return nil, ErrForbidden
	}
	if models.TerminalStatus(app.Status) {
		return nil, fmt.Errorf("%w: %s", ErrTerminalStatus, app.Status)
	}

	now := time.Now().UTC()
	applied, errUpdate := e.applyTransition(ctx, app.ID, map[string]any{
		"status":            models.StatusWithdrawn,
		"withdrawal_reason": reason,
		"withdrawn_at":      now,
		"updated_at":        now,
	})
	if errUpdate != nil {
		return nil, fmt.Errorf("hiring: withdraw: %w", errUpdate)
	}
	if !applied {
		return nil, fmt.Errorf("%w: %s", ErrTerminalStatus, app.Status)
	}
	app.Status = models.StatusWithdrawn
	app.WithdrawalReason = reason
	app.WithdrawnAt = &now

	metrics.StageTransitions.WithLabelValues(string(models.StatusWithdrawn)).Inc()
	e.notifier.Send(ctx, notify.Message{
		RecipientType:    models.RecipientEmployer,
		RecipientID:      app.Job.EmployerID,
		Event:            notify.EventApplicationWithdrawn,
		Subject:          fmt.Sprintf("An application for %q was withdrawn", app.Job.Title),
		Body:             reason,
		JobApplicationID: &app.ID,
	})
	return &app, nil
}

// PipelineBucket is the simplified 4-bucket employer view over the richer
// status set.
type PipelineBucket string

// PipelineBucket values.
const (
	// BucketUnsorted groups applications still moving through review.
	BucketUnsorted PipelineBucket = "unsorted"
	// BucketShortlisted groups shortlisted applications.
	BucketShortlisted PipelineBucket = "shortlisted"
	// BucketOfferSent groups applications with outstanding offers.
	BucketOfferSent PipelineBucket = "offer_sent"
	// BucketRejected groups rejected applications.
	BucketRejected PipelineBucket = "rejected"
)

// bucketStatuses maps each pipeline bucket to the statuses it covers.
var bucketStatuses = map[PipelineBucket][]models.ApplicationStatus{
	BucketUnsorted:    {models.StatusUnsorted, models.StatusApplied, models.StatusScreening, models.StatusInterview},
	BucketShortlisted: {models.StatusShortlisted, models.StatusHired},
	BucketOfferSent:   {models.StatusOfferSent},
	BucketRejected:    {models.StatusRejected},
}

// ListByBucket returns the employer's applications for one job filtered to
// a pipeline bucket, newest first.
func (e *Engine) ListByBucket(ctx context.Context, employerID, jobID uint64, bucket PipelineBucket) ([]models.JobApplication, error) {
	statuses, ok := bucketStatuses[bucket]
	if !ok {
		return nil, fmt.Errorf("%w: bucket %q", ErrInvalidStatus, bucket)
	}

	var job models.Job
	if errFind := e.db.WithContext(ctx).First(&job, jobID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("hiring: load job: %w", errFind)
	}
	if job.EmployerID != employerID {
		return nil, ErrForbidden
	}

	var apps []models.JobApplication
	if errFind := e.db.WithContext(ctx).
		Where("job_id = ? AND status IN ?", jobID, statuses).
		Order("created_at DESC").
		Find(&apps).Error; errFind != nil {
		return nil, fmt.Errorf("hiring: list applications: %w", errFind)
	}
	return apps, nil
}
