package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-demo/meeting/internal/middleware"
	"github.com/go-demo/meeting/internal/pkg/utils"
	"github.com/go-demo/meeting/internal/repository"
	"github.com/go-demo/meeting/internal/service"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func setupAuthHandlerTest(t *testing.T) (*gin.Engine, *sqlx.DB, string) {
	t.Helper()

	db, prefix := repository.SetupIsolatedTestDB(t)

	gin.SetMode(gin.TestMode)

	jwtManager := utils.NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour, "test")
	authService := service.NewAuthService(repository.NewUserRepository(db), jwtManager, zap.NewNop())
	handler := NewAuthHandler(authService)

	router := gin.New()

	// Public routes
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/register", handler.Register)
		auth.POST("/login", handler.Login)
		auth.POST("/refresh", handler.RefreshToken)
	}

	// Protected routes
	authProtected := router.Group("/api/v1/auth")
	authProtected.Use(middleware.Auth(jwtManager))
	{
		authProtected.GET("/me", handler.GetMe)
		authProtected.PUT("/profile", handler.UpdateProfile)
	}

	return router, db, prefix
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	jsonBody, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerUser(t *testing.T, router *gin.Engine, id, password string) string {
	t.Helper()

	w := postJSON(t, router, "/api/v1/auth/register", map[string]interface{}{
		"id":       id,
		"password": password,
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("Register failed with status %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp["data"].(map[string]interface{})
	token := data["token"].(map[string]interface{})
	return token["access_token"].(string)
}

func TestAuthHandler_Register(t *testing.T) {
	router, db, prefix := setupAuthHandlerTest(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	w := postJSON(t, router, "/api/v1/auth/register", map[string]interface{}{
		"id":       prefix + "_newuser",
		"password": "Password123",
	}, "")

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)

	data := resp["data"].(map[string]interface{})
	if data["user"] == nil {
		t.Error("Expected user in response")
	}
	if data["token"] == nil {
		t.Error("Expected token in response")
	}
}

func TestAuthHandler_Register_WeakPassword(t *testing.T) {
	router, db, prefix := setupAuthHandlerTest(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	w := postJSON(t, router, "/api/v1/auth/register", map[string]interface{}{
		"id":       prefix + "_newuser",
		"password": "short",
	}, "")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuthHandler_Register_Duplicate(t *testing.T) {
	router, db, prefix := setupAuthHandlerTest(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	registerUser(t, router, prefix+"_alice", "Password123")

	w := postJSON(t, router, "/api/v1/auth/register", map[string]interface{}{
		"id":       prefix + "_alice",
		"password": "Password123",
	}, "")

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuthHandler_Login(t *testing.T) {
	router, db, prefix := setupAuthHandlerTest(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	registerUser(t, router, prefix+"_alice", "Password123")

	w := postJSON(t, router, "/api/v1/auth/login", map[string]interface{}{
		"id":       prefix + "_alice",
		"password": "Password123",
	}, "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = postJSON(t, router, "/api/v1/auth/login", map[string]interface{}{
		"id":       prefix + "_alice",
		"password": "WrongPassword1",
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for wrong password, got %d", w.Code)
	}
}

func TestAuthHandler_GetMe(t *testing.T) {
	router, db, prefix := setupAuthHandlerTest(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	userID := prefix + "_alice"
	token := registerUser(t, router, userID, "Password123")

	req := httptest.NewRequest("GET", "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp["data"].(map[string]interface{})
	if data["id"] != userID {
		t.Errorf("Expected id %q, got %v", userID, data["id"])
	}
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	router, db, prefix := setupAuthHandlerTest(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	w := postJSON(t, router, "/api/v1/auth/register", map[string]interface{}{
		"id":       prefix + "_alice",
		"password": "Password123",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("Register failed: %s", w.Body.String())
	}

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp["data"].(map[string]interface{})
	token := data["token"].(map[string]interface{})

	w = postJSON(t, router, "/api/v1/auth/refresh", map[string]interface{}{
		"refresh_token": token["refresh_token"],
	}, "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}
