package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"fichapro/internal/activity"
	applog "fichapro/internal/log"
	"fichapro/models"
)

type roleRequest struct {
	UserID       uint   `json:"user_id"`
	RestaurantID uint   `json:"restaurant_id"`
	Role         string `json:"role"`
}

// RoleResource manages user-restaurant role links. All operations are
// reserved for global administrators; everyone else inspects their own
// links through /api/me.
func RoleResource(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}
	if !user.Admin {
		writeJSONError(w, http.StatusForbidden, "administrator access required")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/roles")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			listRoles(w, r)
		case http.MethodPost:
			createRole(w, r, user)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	linkID, err := parseID(path)
	if err != nil {
		applog.Debug(r.Context(), "invalid role link identifier", "identifier", path, "error", err)
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		showRole(w, r, linkID)
	case http.MethodPut:
		updateRole(w, r, user, linkID)
	case http.MethodDelete:
		deleteRole(w, r, user, linkID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := database.WithContext(ctx).Preload("Restaurant").Order("id asc")
	if raw := r.URL.Query().Get("restaurant_id"); raw != "" {
		restaurantID, err := parseID(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid restaurant_id")
			return
		}
		query = query.Where("restaurant_id = ?", restaurantID)
	}

	var links []models.RestaurantRole
	if err := query.Find(&links).Error; err != nil {
		applog.Error(ctx, "failed to list role links", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load role links")
		return
	}
	writeJSON(w, http.StatusOK, links)
}

func showRole(w http.ResponseWriter, r *http.Request, linkID uint) {
	ctx := r.Context()
	var link models.RestaurantRole
	if err := database.WithContext(ctx).Preload("Restaurant").First(&link, linkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load role link", "error", err, "id", linkID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load role link")
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func createRole(w http.ResponseWriter, r *http.Request, actor *models.User) {
	ctx := r.Context()
	payload, ok := decodeRoleRequest(w, r)
	if !ok {
		return
	}

	var member models.User
	if err := database.WithContext(ctx).First(&member, payload.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSONError(w, http.StatusBadRequest, "user not found")
			return
		}
		applog.Error(ctx, "failed to load user for role link", "error", err, "user", payload.UserID)
		writeJSONError(w, http.StatusInternalServerError, "unable to create role link")
		return
	}
	var restaurant models.Restaurant
	if err := database.WithContext(ctx).First(&restaurant, payload.RestaurantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSONError(w, http.StatusBadRequest, "restaurant not found")
			return
		}
		applog.Error(ctx, "failed to load restaurant for role link", "error", err, "restaurant", payload.RestaurantID)
		writeJSONError(w, http.StatusInternalServerError, "unable to create role link")
		return
	}

	var count int64
	if err := database.WithContext(ctx).
		Model(&models.RestaurantRole{}).
		Where("user_id = ? AND restaurant_id = ?", payload.UserID, payload.RestaurantID).
		Count(&count).Error; err != nil {
		applog.Error(ctx, "failed to check existing role link", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to create role link")
		return
	}
	if count > 0 {
		writeJSONError(w, http.StatusConflict, "user already holds a role at this restaurant")
		return
	}

	link := models.RestaurantRole{
		UserID:       payload.UserID,
		RestaurantID: payload.RestaurantID,
		Role:         payload.Role,
	}
	if err := database.WithContext(ctx).Create(&link).Error; err != nil {
		applog.Error(ctx, "failed to create role link", "error", err)
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("create failed: %v", err))
		return
	}

	description := fmt.Sprintf("granted %s at %s", link.Role, restaurant.Name)
	recordActivity(r, actor, "", activity.KindUser, activity.ActionCreated, member.Email, description)
	writeJSON(w, http.StatusCreated, link)
}

func updateRole(w http.ResponseWriter, r *http.Request, actor *models.User, linkID uint) {
	ctx := r.Context()
	var link models.RestaurantRole
	if err := database.WithContext(ctx).Preload("Restaurant").Preload("User").First(&link, linkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load role link for update", "error", err, "id", linkID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load role link")
		return
	}

	var payload roleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if !models.ValidRole(payload.Role) {
		writeJSONError(w, http.StatusBadRequest, "role must be one of master, editor, ordinary")
		return
	}
	if payload.UserID != 0 && payload.UserID != link.UserID {
		writeJSONError(w, http.StatusBadRequest, "role link cannot change user")
		return
	}
	if payload.RestaurantID != 0 && payload.RestaurantID != link.RestaurantID {
		writeJSONError(w, http.StatusBadRequest, "role link cannot change restaurant")
		return
	}

	if err := database.WithContext(ctx).Model(&link).Update("role", payload.Role).Error; err != nil {
		applog.Error(ctx, "failed to update role link", "error", err, "id", linkID)
		writeJSONError(w, http.StatusInternalServerError, "unable to update role link")
		return
	}

	name := fmt.Sprintf("user %d", link.UserID)
	if link.User != nil {
		name = link.User.Email
	}
	recordActivity(r, actor, "", activity.KindUser, activity.ActionEdited, name, fmt.Sprintf("role changed to %s", payload.Role))
	writeJSON(w, http.StatusOK, link)
}

func deleteRole(w http.ResponseWriter, r *http.Request, actor *models.User, linkID uint) {
	ctx := r.Context()
	var link models.RestaurantRole
	if err := database.WithContext(ctx).Preload("User").First(&link, linkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load role link for delete", "error", err, "id", linkID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load role link")
		return
	}

	if err := database.WithContext(ctx).Delete(&link).Error; err != nil {
		applog.Error(ctx, "failed to delete role link", "error", err, "id", linkID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete role link")
		return
	}

	name := fmt.Sprintf("user %d", link.UserID)
	if link.User != nil {
		name = link.User.Email
	}
	recordActivity(r, actor, "", activity.KindUser, activity.ActionDeleted, name, fmt.Sprintf("role %s revoked", link.Role))
	w.WriteHeader(http.StatusNoContent)
}

func decodeRoleRequest(w http.ResponseWriter, r *http.Request) (roleRequest, bool) {
	var payload roleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return payload, false
	}
	if payload.UserID == 0 {
		writeJSONError(w, http.StatusBadRequest, "user_id is required")
		return payload, false
	}
	if payload.RestaurantID == 0 {
		writeJSONError(w, http.StatusBadRequest, "restaurant_id is required")
		return payload, false
	}
	if !models.ValidRole(payload.Role) {
		writeJSONError(w, http.StatusBadRequest, "role must be one of master, editor, ordinary")
		return payload, false
	}
	return payload, true
}
