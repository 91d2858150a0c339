package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/hiredeck/hiredeck/internal/config"
	"github.com/hiredeck/hiredeck/internal/models"
)

func TestRegister_DuplicateEmailIsConflict(t *testing.T) {
	conn := newHandlerDB(t)
	h := NewAuthHandler(conn, config.JWTConfig{Secret: "test-secret", Expiry: time.Hour})

	body := `{"company_name":"Acme","email":"jobs@acme.test","password":"hunter2"}`
	first := performJSON(t, h.Register, nil, body)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}

	second := performJSON(t, h.Register, nil, body)
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d: %s", second.Code, second.Body.String())
	}

	var count int64
	conn.Model(&models.Employer{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one employer row, got %d", count)
	}
}
