package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/config"
	"github.com/hiredeck/hiredeck/internal/models"
	"github.com/hiredeck/hiredeck/internal/security"
	"gorm.io/gorm"
)

// AuthHandler manages employer registration and login.
type AuthHandler struct {
	db     *gorm.DB         // Database handle for employer records.
	jwtCfg config.JWTConfig // Token signing settings.
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// registerRequest captures the payload for creating an employer account.
type registerRequest struct {
	CompanyName string `json:"company_name"` // Company display name.
	Email       string `json:"email"`        // Login email.
	Password    string `json:"password"`     // Plaintext password.
	Website     string `json:"website"`      // Optional company website.
	Location    string `json:"location"`     // Optional company location.
}

// Register creates an employer account and returns a session token.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	companyName := strings.TrimSpace(body.CompanyName)
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if companyName == "" || email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "company_name, email and password are required"})
		return
	}

	hashed, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		return
	}

	employer := models.Employer{
		CompanyName: companyName,
		Email:       email,
		Password:    hashed,
		Website:     strings.TrimSpace(body.Website),
		Location:    strings.TrimSpace(body.Location),
		Active:      true,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&employer).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		return
	}

	token, errToken := security.IssueToken(h.jwtCfg.Secret, employer.ID, security.ActorEmployer, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"employer": gin.H{
			"id":           employer.ID,
			"company_name": employer.CompanyName,
			"email":        employer.Email,
		},
	})
}

// loginRequest captures employer login credentials.
type loginRequest struct {
	Email    string `json:"email"`    // Login email.
	Password string `json:"password"` // Plaintext password.
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	var employer models.Employer
	errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&employer).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if !security.CheckPassword(employer.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !employer.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		return
	}

	token, errToken := security.IssueToken(h.jwtCfg.Secret, employer.ID, security.ActorEmployer, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"employer": gin.H{
			"id":           employer.ID,
			"company_name": employer.CompanyName,
			"email":        employer.Email,
		},
	})
}
