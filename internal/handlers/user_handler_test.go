package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"shortlink-api/internal/cache"
	"shortlink-api/internal/database"
	"shortlink-api/internal/middleware"
	"shortlink-api/internal/models"
	"shortlink-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupProfileTest(t *testing.T) (*gin.Engine, *cache.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	database.DB = db

	m := cache.NewManager(cache.ManagerConfig{CleanupInterval: -1})
	t.Cleanup(m.Close)

	r := gin.New()
	api := r.Group("/api", middleware.JWTAuthMiddleware())
	api.GET("/users/profile", GetProfile(m))
	api.PUT("/users/profile", UpdateProfile(m))
	return r, m
}

func seedUser(t *testing.T, id, username, email, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	require.NoError(t, database.DB.Create(&models.User{
		ID:       id,
		Username: username,
		Email:    email,
		Password: string(hash),
	}).Error)
}

func getProfile(t *testing.T, r *gin.Engine, userID, username string) ProfileResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
	req.Header.Set("Authorization", bearer(t, userID, username))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var profile ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	return profile
}

func TestGetProfile_MemoizedUntilInvalidated(t *testing.T) {
	r, m := setupProfileTest(t)
	seedUser(t, "u-1", "alice", "alice@example.com", "s3cret-pass")

	profile := getProfile(t, r, "u-1", "alice")
	require.Equal(t, "alice@example.com", profile.Email)

	// Change the row behind the cache: the profile endpoint must keep
	// serving the memoized copy until the key is dropped.
	require.NoError(t, database.DB.Model(&models.User{}).
		Where("id = ?", "u-1").
		Update("email", "changed@example.com").Error)

	profile = getProfile(t, r, "u-1", "alice")
	require.Equal(t, "alice@example.com", profile.Email)

	m.Invalidate(cache.User, "user_profile_u-1")
	profile = getProfile(t, r, "u-1", "alice")
	require.Equal(t, "changed@example.com", profile.Email)
}

func TestUpdateProfile_RefreshesCachedProfile(t *testing.T) {
	r, _ := setupProfileTest(t)
	seedUser(t, "u-1", "alice", "alice@example.com", "s3cret-pass")

	// Prime the cached profile.
	getProfile(t, r, "u-1", "alice")

	body, _ := json.Marshal(map[string]string{"email": "new@example.com"})
	req := httptest.NewRequest(http.MethodPut, "/api/users/profile", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, "u-1", "alice"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var updated ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	require.Equal(t, "new@example.com", updated.Email)

	profile := getProfile(t, r, "u-1", "alice")
	require.Equal(t, "new@example.com", profile.Email)
}

func TestUpdateProfile_EmailTaken(t *testing.T) {
	r, _ := setupProfileTest(t)
	seedUser(t, "u-1", "alice", "alice@example.com", "s3cret-pass")
	seedUser(t, "u-2", "bob", "bob@example.com", "s3cret-pass")

	body, _ := json.Marshal(map[string]string{"email": "bob@example.com"})
	req := httptest.NewRequest(http.MethodPut, "/api/users/profile", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, "u-1", "alice"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "Email already taken")
}

func TestUpdateProfile_RejectsShortPassword(t *testing.T) {
	r, _ := setupProfileTest(t)
	seedUser(t, "u-1", "alice", "alice@example.com", "s3cret-pass")

	body, _ := json.Marshal(map[string]string{"password": "short"})
	req := httptest.NewRequest(http.MethodPut, "/api/users/profile", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, "u-1", "alice"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "Password must be at least 8 characters")
}

func TestUpdateProfile_NothingToUpdate(t *testing.T) {
	r, _ := setupProfileTest(t)
	seedUser(t, "u-1", "alice", "alice@example.com", "s3cret-pass")

	req := httptest.NewRequest(http.MethodPut, "/api/users/profile", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, "u-1", "alice"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "Nothing to update")
}
