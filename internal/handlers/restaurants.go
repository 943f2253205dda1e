package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"fichapro/internal/activity"
	"fichapro/internal/auth"
	applog "fichapro/internal/log"
	"fichapro/models"
)

type restaurantRequest struct {
	Name             string  `json:"name"`
	TaxID            string  `json:"tax_id"`
	Email            string  `json:"email"`
	Phone            string  `json:"phone"`
	LogoPath         string  `json:"logo_path"`
	PostalCode       string  `json:"postal_code"`
	Street           string  `json:"street"`
	Number           string  `json:"number"`
	Complement       string  `json:"complement"`
	District         string  `json:"district"`
	City             string  `json:"city"`
	State            string  `json:"state"`
	CorrectionFactor float64 `json:"correction_factor"`
}

// RestaurantResource handles REST-style interactions for restaurant records.
// Listing and reads are scoped to the actor's role links; mutations are
// reserved for global administrators.
func RestaurantResource(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/restaurants")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			listRestaurants(w, r, user)
		case http.MethodPost:
			createRestaurant(w, r, user)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	restaurantID, err := parseID(path)
	if err != nil {
		applog.Debug(r.Context(), "invalid restaurant identifier", "identifier", path, "error", err)
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		showRestaurant(w, r, user, restaurantID)
	case http.MethodPut:
		updateRestaurant(w, r, user, restaurantID)
	case http.MethodDelete:
		deleteRestaurant(w, r, user, restaurantID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listRestaurants(w http.ResponseWriter, r *http.Request, user *models.User) {
	ctx := r.Context()
	query := database.WithContext(ctx).Order("name asc")
	if !user.Admin {
		linked, err := auth.LinkedRestaurantIDs(ctx, database, user.ID)
		if err != nil {
			applog.Error(ctx, "failed to load role links", "error", err, "user", user.ID)
			writeJSONError(w, http.StatusInternalServerError, "unable to load restaurants")
			return
		}
		if len(linked) == 0 {
			writeJSON(w, http.StatusOK, []models.Restaurant{})
			return
		}
		query = query.Where("id IN ?", linked)
	}

	var restaurants []models.Restaurant
	if err := query.Find(&restaurants).Error; err != nil {
		applog.Error(ctx, "failed to list restaurants", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load restaurants")
		return
	}
	writeJSON(w, http.StatusOK, restaurants)
}

func showRestaurant(w http.ResponseWriter, r *http.Request, user *models.User, restaurantID uint) {
	restaurant, _, ok := loadRestaurantForRead(w, r, user, restaurantID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, restaurant)
}

func createRestaurant(w http.ResponseWriter, r *http.Request, user *models.User) {
	ctx := r.Context()
	if !user.Admin {
		writeJSONError(w, http.StatusForbidden, "administrator access required")
		return
	}

	payload, ok := decodeRestaurantRequest(w, r)
	if !ok {
		return
	}
	if !taxIDAvailable(w, r, strings.TrimSpace(payload.TaxID), 0) {
		return
	}

	restaurant := models.Restaurant{
		Name:             payload.Name,
		TaxID:            strings.TrimSpace(payload.TaxID),
		Email:            strings.TrimSpace(payload.Email),
		Phone:            strings.TrimSpace(payload.Phone),
		LogoPath:         strings.TrimSpace(payload.LogoPath),
		PostalCode:       strings.TrimSpace(payload.PostalCode),
		Street:           strings.TrimSpace(payload.Street),
		Number:           strings.TrimSpace(payload.Number),
		Complement:       strings.TrimSpace(payload.Complement),
		District:         strings.TrimSpace(payload.District),
		City:             strings.TrimSpace(payload.City),
		State:            strings.TrimSpace(payload.State),
		CorrectionFactor: payload.CorrectionFactor,
	}
	if restaurant.CorrectionFactor == 0 {
		restaurant.CorrectionFactor = 1.0
	}

	if err := database.WithContext(ctx).Create(&restaurant).Error; err != nil {
		applog.Error(ctx, "failed to create restaurant", "error", err)
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("create failed: %v", err))
		return
	}

	recordActivity(r, user, "", activity.KindRestaurant, activity.ActionCreated, restaurant.Name, "restaurant registered")
	writeJSON(w, http.StatusCreated, restaurant)
}

func updateRestaurant(w http.ResponseWriter, r *http.Request, user *models.User, restaurantID uint) {
	ctx := r.Context()
	if !user.Admin {
		writeJSONError(w, http.StatusForbidden, "administrator access required")
		return
	}

	var restaurant models.Restaurant
	if err := database.WithContext(ctx).First(&restaurant, restaurantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load restaurant for update", "error", err, "id", restaurantID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load restaurant")
		return
	}

	payload, ok := decodeRestaurantRequest(w, r)
	if !ok {
		return
	}
	if !taxIDAvailable(w, r, strings.TrimSpace(payload.TaxID), restaurant.ID) {
		return
	}

	factor := payload.CorrectionFactor
	if factor == 0 {
		factor = 1.0
	}

	updates := map[string]any{
		"name":              payload.Name,
		"tax_id":            strings.TrimSpace(payload.TaxID),
		"email":             strings.TrimSpace(payload.Email),
		"phone":             strings.TrimSpace(payload.Phone),
		"logo_path":         strings.TrimSpace(payload.LogoPath),
		"postal_code":       strings.TrimSpace(payload.PostalCode),
		"street":            strings.TrimSpace(payload.Street),
		"number":            strings.TrimSpace(payload.Number),
		"complement":        strings.TrimSpace(payload.Complement),
		"district":          strings.TrimSpace(payload.District),
		"city":              strings.TrimSpace(payload.City),
		"state":             strings.TrimSpace(payload.State),
		"correction_factor": factor,
	}

	if err := database.WithContext(ctx).Model(&restaurant).Updates(updates).Error; err != nil {
		applog.Error(ctx, "failed to update restaurant", "error", err, "id", restaurantID)
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("update failed: %v", err))
		return
	}

	if err := database.WithContext(ctx).First(&restaurant, restaurantID).Error; err != nil {
		applog.Error(ctx, "failed to reload restaurant after update", "error", err, "id", restaurantID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load updated record")
		return
	}

	recordActivity(r, user, "", activity.KindRestaurant, activity.ActionEdited, restaurant.Name, "restaurant details changed")
	writeJSON(w, http.StatusOK, restaurant)
}

func deleteRestaurant(w http.ResponseWriter, r *http.Request, user *models.User, restaurantID uint) {
	ctx := r.Context()
	if !user.Admin {
		writeJSONError(w, http.StatusForbidden, "administrator access required")
		return
	}

	var restaurant models.Restaurant
	if err := database.WithContext(ctx).First(&restaurant, restaurantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load restaurant for delete", "error", err, "id", restaurantID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load restaurant")
		return
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipeIDs []uint
		if err := tx.Model(&models.Recipe{}).Where("restaurant_id = ?", restaurantID).Pluck("id", &recipeIDs).Error; err != nil {
			return err
		}
		var sheetIDs []uint
		if err := tx.Model(&models.TechnicalSheet{}).Where("restaurant_id = ?", restaurantID).Pluck("id", &sheetIDs).Error; err != nil {
			return err
		}
		if len(recipeIDs) > 0 {
			if err := tx.Where("recipe_id IN ?", recipeIDs).Delete(&models.RecipeItem{}).Error; err != nil {
				return err
			}
		}
		if len(sheetIDs) > 0 {
			if err := tx.Where("sheet_id IN ?", sheetIDs).Delete(&models.TechnicalSheetItem{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("restaurant_id = ?", restaurantID).Delete(&models.Recipe{}).Error; err != nil {
			return err
		}
		if err := tx.Where("restaurant_id = ?", restaurantID).Delete(&models.TechnicalSheet{}).Error; err != nil {
			return err
		}
		if err := tx.Where("restaurant_id = ?", restaurantID).Delete(&models.Ingredient{}).Error; err != nil {
			return err
		}
		if err := tx.Where("restaurant_id = ?", restaurantID).Delete(&models.RestaurantRole{}).Error; err != nil {
			return err
		}
		return tx.Delete(&restaurant).Error
	})
	if err != nil {
		applog.Error(ctx, "failed to delete restaurant", "error", err, "id", restaurantID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete restaurant")
		return
	}

	recordActivity(r, user, "", activity.KindRestaurant, activity.ActionDeleted, restaurant.Name, "restaurant removed")
	w.WriteHeader(http.StatusNoContent)
}

func decodeRestaurantRequest(w http.ResponseWriter, r *http.Request) (restaurantRequest, bool) {
	var payload restaurantRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return payload, false
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return payload, false
	}
	if payload.CorrectionFactor < 0 {
		writeJSONError(w, http.StatusBadRequest, "correction_factor must not be negative")
		return payload, false
	}
	return payload, true
}

// taxIDAvailable reports whether taxID is free to use, ignoring the
// record identified by excludeID. Blank tax IDs are always allowed.
func taxIDAvailable(w http.ResponseWriter, r *http.Request, taxID string, excludeID uint) bool {
	if taxID == "" {
		return true
	}
	ctx := r.Context()
	var count int64
	query := database.WithContext(ctx).Model(&models.Restaurant{}).Where("tax_id = ?", taxID)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		applog.Error(ctx, "failed to check tax id", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to validate tax_id")
		return false
	}
	if count > 0 {
		writeJSONError(w, http.StatusConflict, "tax_id already registered")
		return false
	}
	return true
}

// requestUser resolves the authenticated user behind the request and
// writes the failure response itself when there is none.
func requestUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	if database == nil {
		applog.Debug(r.Context(), "request without database")
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return nil, false
	}
	user, ok := currentUser(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return user, true
}

// restaurantRole looks up the actor's role at the restaurant. Global
// administrators have no link rows; callers combine the role with
// user.Admin through auth.CanRead / auth.CanManage.
func restaurantRole(r *http.Request, user *models.User, restaurantID uint) (string, error) {
	return auth.RoleFor(r.Context(), database, user.ID, restaurantID)
}

// loadRestaurantForRead loads the restaurant and enforces read access,
// writing the failure response itself. Inaccessible records 404 rather
// than 403 so their existence is not disclosed.
func loadRestaurantForRead(w http.ResponseWriter, r *http.Request, user *models.User, restaurantID uint) (*models.Restaurant, string, bool) {
	ctx := r.Context()
	var restaurant models.Restaurant
	if err := database.WithContext(ctx).First(&restaurant, restaurantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return nil, "", false
		}
		applog.Error(ctx, "failed to load restaurant", "error", err, "id", restaurantID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load restaurant")
		return nil, "", false
	}

	role, err := restaurantRole(r, user, restaurantID)
	if err != nil {
		applog.Error(ctx, "failed to resolve restaurant role", "error", err, "restaurant", restaurantID, "user", user.ID)
		writeJSONError(w, http.StatusInternalServerError, "unable to resolve access")
		return nil, "", false
	}
	if !auth.CanRead(user.Admin, role) {
		applog.Debug(ctx, "restaurant access denied", "restaurant", restaurantID, "user", user.ID)
		http.NotFound(w, r)
		return nil, "", false
	}
	return &restaurant, role, true
}

func recordActivity(r *http.Request, user *models.User, role, kind, action, name, description string) {
	if role == "" && user.Admin {
		role = "admin"
	}
	userID := user.ID
	activity.Record(r.Context(), database, activity.Entry{
		UserID:      &userID,
		Role:        role,
		Kind:        kind,
		Action:      action,
		Name:        name,
		Description: description,
	})
}
