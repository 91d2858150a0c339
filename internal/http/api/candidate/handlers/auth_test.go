package handlers

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/config"
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

func performJSON(t *testing.T, handler gin.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler(c)
	return w
}

func TestRegister_DuplicateEmailIsConflict(t *testing.T) {
	conn := newHandlerDB(t)
	h := NewAuthHandler(conn, config.JWTConfig{Secret: "test-secret", Expiry: time.Hour})

	body := `{"name":"Jordan Reyes","email":"jordan@mail.test","password":"hunter2"}`
	first := performJSON(t, h.Register, body)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}

	second := performJSON(t, h.Register, body)
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d: %s", second.Code, second.Body.String())
	}

	var count int64
	conn.Model(&models.Candidate{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one candidate row, got %d", count)
	}
}
