package hiring

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hiredeck/hiredeck/internal/db"
	"github.com/hiredeck/hiredeck/internal/models"
	"github.com/hiredeck/hiredeck/internal/notify"

	"gorm.io/gorm"
)

func newTestEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()

	conn, errOpen := db.Open("file:" + filepath.Join(t.TempDir(), "hiredeck-test.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return NewEngine(conn, notify.NewStoreDispatcher(conn)), conn
}

type fixture struct {
	owner    models.Employer
	intruder models.Employer
	job      models.Job
	cand     models.Candidate
	app      models.JobApplication
}

func seedFixture(t *testing.T, conn *gorm.DB) *fixture {
	t.Helper()

	f := &fixture{
		owner:    models.Employer{CompanyName: "Acme", Email: "jobs@acme.test", Password: "x", Active: true},
		intruder: models.Employer{CompanyName: "Rival", Email: "jobs@rival.test", Password: "x", Active: true},
		cand:     models.Candidate{Name: "Jordan Reyes", Email: "jordan@mail.test", Password: "x", Active: true},
	}
	for _, row := range []any{&f.owner, &f.intruder, &f.cand} {
		if errCreate := conn.Create(row).Error; errCreate != nil {
			t.Fatalf("seed: %v", errCreate)
		}
	}
	f.job = models.Job{EmployerID: f.owner.ID, Title: "Backend Engineer", IsActive: true}
	if errCreate := conn.Create(&f.job).Error; errCreate != nil {
		t.Fatalf("seed job: %v", errCreate)
	}
	f.app = models.JobApplication{
		JobID:       f.job.ID,
		CandidateID: f.cand.ID,
		Status:      models.StatusApplied,
		ApplyVia:    models.ApplyViaProfileCV,
	}
	if errCreate := conn.Create(&f.app).Error; errCreate != nil {
		t.Fatalf("seed application: %v", errCreate)
	}
	return f
}

func TestChangeStatus_OwnerMovesStage(t *testing.T) {
	e, conn := newTestEngine(t)
	f := seedFixture(t, conn)

	app, err := e.ChangeStatus(context.Background(), f.owner.ID, f.app.ID, models.StatusShortlisted, "strong take-home")
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	if app.Status != models.StatusShortlisted {
		t.Fatalf("expected shortlisted, got %s", app.Status)
	}
	if app.EmployerNotes != "strong take-home" {
		t.Fatalf("expected notes stored, got %q", app.EmployerNotes)
	}

	var stored models.JobApplication
	conn.First(&stored, f.app.ID)
	if stored.Status != models.StatusShortlisted {
		t.Fatalf("expected persisted status, got %s", stored.Status)
	}

	var note models.Notification
	if errFind := conn.Where("event = ? AND recipient_type = ? AND recipient_id = ?",
		notify.EventApplicationStatusChanged, models.RecipientCandidate, f.cand.ID).First(&note).Error; errFind != nil {
		t.Fatalf("expected candidate notification: %v", errFind)
	}
	if note.JobApplicationID == nil || *note.JobApplicationID != f.app.ID {
		t.Fatalf("notification should reference the application: %+v", note)
	}
}

func TestChangeStatus_CrossEmployerForbidden(t *testing.T) {
	e, conn := newTestEngine(t)
	f := seedFixture(t, conn)

	_, err := e.ChangeStatus(context.Background(), f.intruder.ID, f.app.ID, models.StatusRejected, "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	var stored models.JobApplication
	conn.First(&stored, f.app.ID)
	if stored.Status != models.StatusApplied {
		t.Fatalf("forbidden change must not mutate, got %s", stored.Status)
	}
}

func TestChangeStatus_MissingApplication(t *testing.T) {
	e, conn := newTestEngine(t)
	f := seedFixture(t, conn)

	_, err := e.ChangeStatus(context.Background(), f.owner.ID, 9999, models.StatusRejected, "")
	if !errors.Is(err, ErrApplicationNotFound) {
		t.Fatalf("expected ErrApplicationNotFound, got %v", err)
	}
}

func TestChangeStatus_InvalidStatus(t *testing.T) {
	e, conn := newTestEngine(t)
	f := seedFixture(t, conn)

	_, err := e.ChangeStatus(context.Background(), f.owner.ID, f.app.ID, "archived", "")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestChangeStatus_TerminalIsFrozen(t *testing.T) {
	e, conn := newTestEngine(t)
	f := seedFixture(t, conn)

	if _, err := e.ChangeStatus(context.Background(), f.owner.ID, f.app.ID, models.StatusHired, ""); err != nil {
		t.Fatalf("hire: %v", err)
	}

	_, err := e.ChangeStatus(context.Background(), f.owner.ID, f.app.ID, models.StatusScreening, "")
	if !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("expected ErrTerminalStatus, got %v", err)
	}

	var stored models.JobApplication
	conn.First(&stored, f.app.ID)
	if stored.Status != models.StatusHired {
		t.Fatalf("terminal state must stay frozen, got %s", stored.Status)
	}
}

func TestApplyTransition_TerminalRowUntouched(t *testing.T) {
	e, conn := newTestEngine(t)
	f := seedFixture(t, conn)

	// A writer that loaded the row while it was still open races a
	// terminal transition that commits first. Its update must hit the
	// status guard in the WHERE clause and change nothing.
	if errSet := conn.Model(&models.JobApplication{}).
		Where("id = ?", f.app.ID).
		Update("status", models.StatusHired).Error; errSet != nil {
		t.Fatalf("seed status: %v", errSet)
	}

	applied, err := e.applyTransition(context.Background(), f.app.ID, map[string]any{"status": models.StatusScreening})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied {
		t.Fatalf("terminal row must not transition")
	}

	var stored models.JobApplication
	conn.First(&stored, f.app.ID)
	if stored.Status != models.StatusHired {
		t.Fatalf("expected status unchanged, got %s", stored.Status)
	}
}

func TestBatchChangeStatus_BestEffort(t *testing.T) {
	e, conn := newTestEngine(t)
	f := seedFixture(t, conn)

	second := models.JobApplication{JobID: f.job.ID, CandidateID: f.cand.ID, Status: models.StatusScreening}
	if errCreate := conn.Create(&second).Error; errCreate != nil {
		t.Fatalf("seed second: %v", errCreate)
	}

	// An application under another employer's job must be skipped, not fail
	// the whole batch.
	rivalJob := models.Job{EmployerID: f.intruder.ID, Title: "Designer", IsActive: true}
	if errCreate := conn.Create(&rivalJob).Error; errCreate != nil {
		t.Fatalf("seed rival job: %v", errCreate)
	}
	foreign := models.JobApplication{JobID: rivalJob.ID, CandidateID: f.cand.ID, Status: models.StatusApplied}
	if errCreate := conn.Create(&foreign).Error; errCreate != nil {
		t.Fatalf("seed foreign: %v", errCreate)
	}

	changed, err := e.BatchChangeStatus(context.Background(), f.owner.ID,
		[]uint64{f.app.ID, second.ID, foreign.ID, 9999}, models.StatusRejected, "")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if changed != 2 {
		t.Fatalf("expected 2 changed, got %d", changed)
	}

	var stored models.JobApplication
	conn.First(&stored, foreign.ID)
	if stored.Status != models.StatusApplied {
		t.Fatalf("foreign application must be untouched, got %s", stored.Status)
	}
}

func TestWithdraw(t *testing.T) {
	e, conn := newTestEngine(t)
	f := seedFixture(t, conn)

	app, err := e.Withdraw(context.Background(), f.cand.ID, f.app.ID, "accepted another offer")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if app.Status != models.StatusWithdrawn {
		t.Fatalf("expected withdrawn, got %s", app.Status)
	}
	if app.WithdrawalReason != "accepted another offer" || app.WithdrawnAt == nil {
		t.Fatalf("expected reason and timestamp recorded: %+v", app)
	}

	var note models.Notification
	if errFind := conn.Where("event = ? AND recipient_type = ? AND recipient_id = ?",
		notify.EventApplicationWithdrawn, models.RecipientEmployer, f.owner.ID).First(&note).Error; errFind != nil {
		t.Fatalf("expected employer notification: %v", errFind)
	}

	// Terminal afterwards, for both sides.
	if _, errAgain := e.Withdraw(context.Background(), f.cand.ID, f.app.ID, "x"); !errors.Is(errAgain, ErrTerminalStatus) {
		t.Fatalf("expected ErrTerminalStatus on double withdraw, got %v", errAgain)
	}
	if _, errChange := e.ChangeStatus(context.Background(), f.owner.ID, f.app.ID, models.StatusScreening, ""); !errors.Is(errChange, ErrTerminalStatus) {
		t.Fatalf("expected ErrTerminalStatus after withdrawal, got %v", errChange)
	}
}

func TestWithdraw_WrongCandidateForbidden(t *testing.T) {
	e, conn := newTestEngine(t)
	f := seedFixture(t, conn)

	other := models.Candidate{Name: "Sam Li", Email: "sam@mail.test", Password: "x", Active: true}
	if errCreate := conn.Create(&other).Error; errCreate != nil {
		t.Fatalf("seed: %v", errCreate)
	}

	if _, err := e.Withdraw(context.Background(), other.ID, f.app.ID, "nope"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestListByBucket(t *testing.T) {
	e, conn := newTestEngine(t)
	f := seedFixture(t, conn)

	statuses := []models.ApplicationStatus{
		models.StatusScreening, models.StatusShortlisted, models.StatusOfferSent,
		models.StatusRejected, models.StatusHired,
	}
	for _, s := range statuses {
		app := models.JobApplication{JobID: f.job.ID, CandidateID: f.cand.ID, Status: s}
		if errCreate := conn.Create(&app).Error; errCreate != nil {
			t.Fatalf("seed %s: %v", s, errCreate)
		}
	}

	cases := []struct {
		bucket PipelineBucket
		want   int
	}{
		{BucketUnsorted, 2},    // seeded applied + screening
		{BucketShortlisted, 2}, // shortlisted + hired
		{BucketOfferSent, 1},
		{BucketRejected, 1},
	}
	for _, tc := range cases {
		apps, err := e.ListByBucket(context.Background(), f.owner.ID, f.job.ID, tc.bucket)
		if err != nil {
			t.Fatalf("bucket %s: %v", tc.bucket, err)
		}
		if len(apps) != tc.want {
			t.Fatalf("bucket %s: expected %d, got %d", tc.bucket, tc.want, len(apps))
		}
	}

	if _, err := e.ListByBucket(context.Background(), f.intruder.ID, f.job.ID, BucketUnsorted); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign job, got %v", err)
	}
	if _, err := e.ListByBucket(context.Background(), f.owner.ID, f.job.ID, "everything"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus for unknown bucket, got %v", err)
	}
}
