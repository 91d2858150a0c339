package notify

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hiredeck/hiredeck/internal/db"
	"github.com/hiredeck/hiredeck/internal/models"
)

func TestStoreDispatcherPersistsRows(t *testing.T) {
	conn, errOpen := db.Open("file:" + filepath.Join(t.TempDir(), "hiredeck-test.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	d := NewStoreDispatcher(conn)
	appID := uint64(7)
	d.Send(context.Background(), Message{
		RecipientType:    models.RecipientCandidate,
		RecipientID:      12,
		Event:            EventApplicationStatusChanged,
		Subject:          StatusChangedSubject("Backend Engineer", models.StatusShortlisted),
		JobApplicationID: &appID,
	})

	var row models.Notification
	if errFind := conn.First(&row).Error; errFind != nil {
		t.Fatalf("expected a notification row: %v", errFind)
	}
	if row.RecipientType != models.RecipientCandidate || row.RecipientID != 12 {
		t.Fatalf("unexpected recipient: %+v", row)
	}
	if row.JobApplicationID == nil || *row.JobApplicationID != 7 {
		t.Fatalf("expected application reference, got %+v", row.JobApplicationID)
	}
	if row.ReadAt != nil {
		t.Fatalf("new notifications start unread")
	}
}

func TestStoreDispatcherNilReceiverIsSafe(t *testing.T) {
	var d *StoreDispatcher
	d.Send(context.Background(), Message{Event: EventSubscriptionActivated})
}
