package handlers

import (
	"net/http"
	"strings"

	"go-consign/internal/auth"
	"go-consign/internal/database"
	"go-consign/internal/middleware"
	"go-consign/internal/models"

	"github.com/gin-gonic/gin"
)

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"max=120"`
	Role     string `json:"role" validate:"omitempty,oneof=admin user"`
}

// UpdateUserRequest changes the password only when one is given.
type UpdateUserRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,max=120"`
	Password string  `json:"password" validate:"omitempty,min=6"`
	Role     string  `json:"role" validate:"omitempty,oneof=admin user"`
}

// --- GET: /api/users ---
func GetUsers(c *gin.Context) {
	var users []models.User
	if err := database.DB.WithContext(c.Request.Context()).Order("email").Find(&users).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// --- POST: /api/users ---
func CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !bindAndValidate(c, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	role := req.Role
	if role == "" {
		role = models.RoleUser
	}

	user := models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		Role:         role,
	}
	if err := database.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// --- PUT: /api/users/:id ---
func UpdateUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if id == middleware.GetUserID(c) && req.Role != "" && req.Role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot remove your own admin role"})
		return
	}

	user, err := applyUserUpdate(c, id, req.FullName, req.Password, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// --- DELETE: /api/users/:id ---
func DeleteUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if id == middleware.GetUserID(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot delete your own account"})
		return
	}

	res := database.DB.WithContext(c.Request.Context()).Delete(&models.User{}, id)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

type ProfileRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,max=120"`
	Password string  `json:"password" validate:"omitempty,min=6"`
}

// --- GET: /api/profile ---
func GetProfile(c *gin.Context) {
	var user models.User
	if err := database.DB.WithContext(c.Request.Context()).First(&user, middleware.GetUserID(c)).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// --- PUT: /api/profile ---
func UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}
	user, err := applyUserUpdate(c, middleware.GetUserID(c), req.FullName, req.Password, "")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func applyUserUpdate(c *gin.Context, id uint, fullName *string, password, role string) (*models.User, error) {
	db := database.DB.WithContext(c.Request.Context())

	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if fullName != nil {
		updates["full_name"] = strings.TrimSpace(*fullName)
	}
	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
	}
	if role != "" {
		updates["role"] = role
	}
	if len(updates) > 0 {
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	user = models.User{}
	if err := db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
