package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fichapro/internal/config"
	"fichapro/models"
)

func newServerTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:servertest?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(
		&models.User{},
		&models.Restaurant{},
		&models.RestaurantRole{},
		&models.Ingredient{},
		&models.Recipe{},
		&models.RecipeItem{},
		&models.TechnicalSheet{},
		&models.TechnicalSheetItem{},
		&models.ActivityRecord{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func TestNewAppliesSessionDefaultsAndServesLogin(t *testing.T) {
	db := newServerTestDatabase(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if err := db.Create(&models.User{Email: "user@example.com", PasswordHash: string(hash)}).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	srv, err := New(Config{Addr: ":8080", Auth: config.AuthConfig{}, Database: db})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	payload, _ := json.Marshal(map[string]string{"email": "user@example.com", "password": "password123"})
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBuffer(payload))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected login to succeed, got %d: %s", rr.Code, rr.Body.String())
	}

	cookies := rr.Result().Cookies()
	found := false
	for _, cookie := range cookies {
		if cookie.Name == "fichapro_session" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected default session cookie to be set, cookies: %v", cookies)
	}
}

func TestHandlerTagsRequestsWithAnID(t *testing.T) {
	db := newServerTestDatabase(t)

	srv, err := New(Config{Addr: ":8080", Auth: config.AuthConfig{}, Database: db})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header to be set")
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	srv.Handler().ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "caller-supplied" {
		t.Fatalf("expected caller-supplied id to be echoed, got %q", got)
	}
}
