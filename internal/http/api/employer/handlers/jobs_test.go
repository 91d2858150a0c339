package handlers

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/db"
	"github.com/hiredeck/hiredeck/internal/models"
	"gorm.io/gorm"
)

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, errOpen := db.Open("file:" + filepath.Join(t.TempDir(), "hiredeck-test.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedHandlerEmployer(t *testing.T, conn *gorm.DB) *models.Employer {
	t.Helper()
	employer := models.Employer{CompanyName: "Acme", Email: "jobs@acme.test", Password: "x", Active: true}
	if errCreate := conn.Create(&employer).Error; errCreate != nil {
		t.Fatalf("seed employer: %v", errCreate)
	}
	return &employer
}

func seedQuotaSubscription(t *testing.T, conn *gorm.DB, employerID uint64, jobPosts, featured int) *models.Subscription {
	t.Helper()
	now := time.Now().UTC()
	end := now.AddDate(0, 0, 30)
	sub := models.Subscription{
		EmployerID:         employerID,
		SubscriptionPlanID: 1,
		PaymentProvider:    "testpay",
		PaymentReference:   "sess_handler",
		StartDate:          &now,
		EndDate:            &end,
		JobPostsLeft:       jobPosts,
		FeaturedJobsLeft:   featured,
		CVDownloadsLeft:    10,
		IsActive:           true,
	}
	if errCreate := conn.Create(&sub).Error; errCreate != nil {
		t.Fatalf("seed subscription: %v", errCreate)
	}
	return &sub
}

// performJSON invokes handler with a JSON POST body; a non-nil employer is
// installed in the context the way the auth middleware would.
func performJSON(t *testing.T, handler gin.HandlerFunc, employer *models.Employer, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if employer != nil {
		c.Set("employer", employer)
	}
	handler(c)
	return w
}

func TestJobCreate_ConsumesQuota(t *testing.T) {
	conn := newHandlerDB(t)
	employer := seedHandlerEmployer(t, conn)
	sub := seedQuotaSubscription(t, conn, employer.ID, 5, 2)
	h := NewJobHandler(conn)

	w := performJSON(t, h.Create, employer, `{"title":"Backend Engineer"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var stored models.Subscription
	if errFind := conn.First(&stored, sub.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if stored.JobPostsLeft != 4 || stored.FeaturedJobsLeft != 2 {
		t.Fatalf("expected job_posts=4 featured=2, got %d/%d", stored.JobPostsLeft, stored.FeaturedJobsLeft)
	}
}

func TestJobCreate_FeaturedConsumesBothQuotas(t *testing.T) {
	conn := newHandlerDB(t)
	employer := seedHandlerEmployer(t, conn)
	sub := seedQuotaSubscription(t, conn, employer.ID, 5, 2)
	h := NewJobHandler(conn)

	w := performJSON(t, h.Create, employer, `{"title":"Backend Engineer","featured":true}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var job models.Job
	if errFind := conn.Where("employer_id = ?", employer.ID).First(&job).Error; errFind != nil {
		t.Fatalf("find job: %v", errFind)
	}
	if !job.IsFeatured {
		t.Fatalf("expected featured job")
	}

	var stored models.Subscription
	conn.First(&stored, sub.ID)
	if stored.JobPostsLeft != 4 || stored.FeaturedJobsLeft != 1 {
		t.Fatalf("expected job_posts=4 featured=1, got %d/%d", stored.JobPostsLeft, stored.FeaturedJobsLeft)
	}
}

func TestJobCreate_FeaturedDenialLeavesQuotaUntouched(t *testing.T) {
	conn := newHandlerDB(t)
	employer := seedHandlerEmployer(t, conn)
	sub := seedQuotaSubscription(t, conn, employer.ID, 5, 0)
	h := NewJobHandler(conn)

	w := performJSON(t, h.Create, employer, `{"title":"Backend Engineer","featured":true}`)
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", w.Code, w.Body.String())
	}

	var jobs int64
	conn.Model(&models.Job{}).Count(&jobs)
	if jobs != 0 {
		t.Fatalf("denied request must create no job, got %d", jobs)
	}

	// The job-post unit rolls back with the featured denial.
	var stored models.Subscription
	if errFind := conn.First(&stored, sub.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if stored.JobPostsLeft != 5 || stored.FeaturedJobsLeft != 0 {
		t.Fatalf("expected quotas untouched (5/0), got %d/%d", stored.JobPostsLeft, stored.FeaturedJobsLeft)
	}
}

func TestJobCreate_NoQuotaIsPaymentRequired(t *testing.T) {
	conn := newHandlerDB(t)
	employer := seedHandlerEmployer(t, conn)
	h := NewJobHandler(conn)

	w := performJSON(t, h.Create, employer, `{"title":"Backend Engineer"}`)
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 without a subscription, got %d", w.Code)
	}
}
