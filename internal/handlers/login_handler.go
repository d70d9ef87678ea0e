package handlers

import (
	"net/http"
	"strings"

	"go-consign/internal/auth"
	"go-consign/internal/database"
	"go-consign/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"max=120"`
}

// AuthHandler issues tokens.
type AuthHandler struct {
	issuer            *auth.Issuer
	allowRegistration bool
}

func NewAuthHandler(issuer *auth.Issuer, allowRegistration bool) *AuthHandler {
	return &AuthHandler{issuer: issuer, allowRegistration: allowRegistration}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input LoginRequest
	// 1. Validate input JSON
	if !bindAndValidate(c, &input) {
		return
	}

	// 2. Find user in DB
	var user models.User
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := database.DB.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	// 3. Verify password (bcrypt)
	if !auth.CheckPassword(user.PasswordHash, input.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	// 4. Generate JWT
	token, err := h.issuer.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"role":      user.Role,
		"email":     user.Email,
		"full_name": user.FullName,
	})
}

// Register bootstraps the first admin. It only works while the feature is
// enabled and the users table is empty; later accounts are made by an admin.
func (h *AuthHandler) Register(c *gin.Context) {
	if !h.allowRegistration {
		c.JSON(http.StatusForbidden, gin.H{"error": "Registration is disabled"})
		return
	}

	var input RegisterRequest
	if !bindAndValidate(c, &input) {
		return
	}

	db := database.DB.WithContext(c.Request.Context())
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		respondError(c, err)
		return
	}
	if count > 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "Registration is closed, ask an administrator"})
		return
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	user := models.User{
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		FullName:     strings.TrimSpace(input.FullName),
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := db.Create(&user).Error; err != nil {
		respondError(c, err)
		return
	}

	log.Info().Str("email", user.Email).Msg("bootstrap admin registered")
	c.JSON(http.StatusCreated, user)
}
