package handlers

import (
	"errors"
	"net/http"
	"time"

	"shortlink-api/internal/cache"
	"shortlink-api/internal/database"
	"shortlink-api/internal/memoize"
	"shortlink-api/internal/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ProfileResponse is the safe view of a user record.
type ProfileResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// UpdateProfileRequest represents the profile update payload
type UpdateProfileRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// GetProfile handles GET /api/users/profile
// Returns the authenticated user's profile
func GetProfile(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in token"})
			return
		}

		db := database.GetDB().WithContext(c.Request.Context())

		profile, err := memoize.Do(m.Get(cache.User), "user_profile_"+userID, 30*time.Minute,
			func() (ProfileResponse, error) {
				var user models.User
				if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
					return ProfileResponse{}, err
				}
				return ProfileResponse{
					ID:        user.ID,
					Username:  user.Username,
					Email:     user.Email,
					IsAdmin:   user.IsAdmin,
					CreatedAt: user.CreatedAt,
				}, nil
			})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch profile"})
			}
			return
		}

		c.JSON(http.StatusOK, profile)
	}
}

// UpdateProfile handles PUT /api/users/profile
// Updates email or password, then drops the cached profile
func UpdateProfile(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in token"})
			return
		}

		var req UpdateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Email == nil && req.Password == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
			return
		}

		db := database.GetDB().WithContext(c.Request.Context())

		var user models.User
		result := db.Where("id = ?", userID).First(&user)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch profile"})
			}
			return
		}

		if req.Email != nil && *req.Email != user.Email {
			var taken int64
			if err := db.Model(&models.User{}).
				Where("email = ? AND id <> ?", *req.Email, userID).
				Count(&taken).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
				return
			}
			if taken > 0 {
				c.JSON(http.StatusConflict, gin.H{"error": "Email already taken"})
				return
			}
			user.Email = *req.Email
		}

		if req.Password != nil {
			if len(*req.Password) < 8 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters"})
				return
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
				return
			}
			user.Password = string(hash)
		}

		if err := db.Save(&user).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
			return
		}

		m.Invalidate(cache.User, "user_profile_"+userID)

		c.JSON(http.StatusOK, ProfileResponse{
			ID:        user.ID,
			Username:  user.Username,
			Email:     user.Email,
			IsAdmin:   user.IsAdmin,
			CreatedAt: user.CreatedAt,
		})
	}
}
