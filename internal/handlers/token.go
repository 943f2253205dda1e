package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	applog "fichapro/internal/log"
)

type tokenClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// IssueToken exchanges valid credentials for a signed bearer token, for
// API clients that do not carry the session cookie.
func IssueToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if len(jwtSecret) == 0 {
		writeJSONError(w, http.StatusServiceUnavailable, "token authentication not configured")
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
			applog.Error(r.Context(), "failed to load user during token issue", "error", err)
		}
		writeJSONError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
		writeJSONError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	ttl := tokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	expiresAt := time.Now().Add(ttl)
	claims := tokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
	if err != nil {
		applog.Error(r.Context(), "failed to sign token", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"token": signed, "expires_at": expiresAt.UTC()})
}

func bearerUserID(r *http.Request) (uint, bool) {
	if len(jwtSecret) == 0 {
		return 0, false
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return 0, false
	}
	tokenStr := strings.TrimPrefix(header, "Bearer ")

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid || claims.UserID == 0 {
		return 0, false
	}
	return claims.UserID, true
}
