package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	applog "fichapro/internal/log"
	"fichapro/models"
)

const (
	sessionAuthenticatedKey = "auth:authenticated"
	sessionUserIDKey        = "auth:user:id"
	sessionUserEmailKey     = "auth:user:email"
	sessionUserNameKey      = "auth:user:name"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func createUser(r *http.Request, email, name, password string) (*models.User, error) {
	if database == nil {
		return nil, gorm.ErrInvalidDB
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hashed),
	}

	if err := database.WithContext(r.Context()).Create(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

func findUserByEmail(r *http.Request, email string) (*models.User, error) {
	if database == nil {
		return nil, gorm.ErrInvalidDB
	}

	user := &models.User{}
	err := database.WithContext(r.Context()).Where("lower(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(user).Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Signup registers a new account and opens a session for it.
func Signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if strings.TrimSpace(payload.Email) == "" || len(payload.Password) < 8 {
		writeJSONError(w, http.StatusBadRequest, "email and a password of at least 8 characters are required")
		return
	}

	user, err := createUser(r, payload.Email, payload.Name, payload.Password)
	if err != nil {
		applog.Error(r.Context(), "failed to create user", "error", err)
		writeJSONError(w, http.StatusBadRequest, "unable to create account")
		return
	}

	if err := establishSession(r, user); err != nil {
		applog.Error(r.Context(), "failed to establish session", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to sign in")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": user.ID, "email": user.Email, "name": user.Name})
}

// Login verifies the provided credentials and populates the session.
func Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if sessionManager == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "authentication not available")
		return
	}

	var payload credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	user, err := findUserByEmail(r, payload.Email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			applog.Error(r.Context(), "failed to load user during login", "error", err)
		}
		writeJSONError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
		writeJSONError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if err := establishSession(r, user); err != nil {
		applog.Error(r.Context(), "failed to establish session", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to sign in")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": user.ID, "email": user.Email, "name": user.Name, "admin": user.Admin})
}

func establishSession(r *http.Request, user *models.User) error {
	if sessionManager == nil {
		return errors.New("session manager not configured")
	}
	if err := sessionManager.RenewToken(r.Context()); err != nil {
		return err
	}
	sessionManager.Put(r.Context(), sessionAuthenticatedKey, true)
	sessionManager.Put(r.Context(), sessionUserIDKey, int(user.ID))
	sessionManager.Put(r.Context(), sessionUserEmailKey, user.Email)
	sessionManager.Put(r.Context(), sessionUserNameKey, user.Name)
	return nil
}

// Logout destroys the current session.
func Logout(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPost:
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if sessionManager != nil {
		if err := sessionManager.Destroy(r.Context()); err != nil {
			applog.Error(r.Context(), "failed to destroy session", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// RequireAuthentication ensures the caller holds an active session or a
// valid bearer token before accessing the resource.
func RequireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := currentUserID(r); !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// currentUserID resolves the acting user from the session cookie or,
// failing that, from a bearer token.
func currentUserID(r *http.Request) (uint, bool) {
	if sessionManager != nil &&
		sessionManager.GetBool(r.Context(), sessionAuthenticatedKey) {
		if id := sessionManager.GetInt(r.Context(), sessionUserIDKey); id > 0 {
			return uint(id), true
		}
	}
	return bearerUserID(r)
}

func currentUser(r *http.Request) (*models.User, bool) {
	id, ok := currentUserID(r)
	if !ok || database == nil {
		return nil, false
	}
	user := &models.User{}
	if err := database.WithContext(r.Context()).First(user, id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			applog.Error(r.Context(), "failed to load current user", "error", err, "id", id)
		}
		return nil, false
	}
	return user, true
}
