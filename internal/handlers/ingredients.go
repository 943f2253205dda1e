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
	"fichapro/internal/costing"
	applog "fichapro/internal/log"
	"fichapro/models"
)

type ingredientRequest struct {
	RestaurantID    uint    `json:"restaurant_id"`
	Name            string  `json:"name"`
	ReferenceWeight float64 `json:"reference_weight"`
	Unit            string  `json:"unit"`
	Price           float64 `json:"price"`
}

// IngredientResource handles REST-style interactions for ingredient
// records. Reads are scoped to the actor's linked restaurants; writes
// require admin, master or editor at the owning restaurant.
func IngredientResource(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/ingredients")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			listIngredients(w, r, user)
		case http.MethodPost:
			createIngredient(w, r, user)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	ingredientID, err := parseID(path)
	if err != nil {
		applog.Debug(r.Context(), "invalid ingredient identifier", "identifier", path, "error", err)
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		showIngredient(w, r, user, ingredientID)
	case http.MethodPut:
		updateIngredient(w, r, user, ingredientID)
	case http.MethodDelete:
		deleteIngredient(w, r, user, ingredientID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listIngredients(w http.ResponseWriter, r *http.Request, user *models.User) {
	ctx := r.Context()
	query := database.WithContext(ctx).Order("name asc")

	if raw := r.URL.Query().Get("restaurant_id"); raw != "" {
		restaurantID, err := parseID(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid restaurant_id")
			return
		}
		role, err := restaurantRole(r, user, restaurantID)
		if err != nil {
			applog.Error(ctx, "failed to resolve restaurant role", "error", err, "restaurant", restaurantID, "user", user.ID)
			writeJSONError(w, http.StatusInternalServerError, "unable to resolve access")
			return
		}
		if !auth.CanRead(user.Admin, role) {
			writeJSON(w, http.StatusOK, []models.Ingredient{})
			return
		}
		query = query.Where("restaurant_id = ?", restaurantID)
	} else if !user.Admin {
		linked, err := auth.LinkedRestaurantIDs(ctx, database, user.ID)
		if err != nil {
			applog.Error(ctx, "failed to load role links", "error", err, "user", user.ID)
			writeJSONError(w, http.StatusInternalServerError, "unable to load ingredients")
			return
		}
		if len(linked) == 0 {
			writeJSON(w, http.StatusOK, []models.Ingredient{})
			return
		}
		query = query.Where("restaurant_id IN ?", linked)
	}

	var ingredients []models.Ingredient
	if err := query.Find(&ingredients).Error; err != nil {
		applog.Error(ctx, "failed to list ingredients", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredients")
		return
	}
	writeJSON(w, http.StatusOK, ingredients)
}

func showIngredient(w http.ResponseWriter, r *http.Request, user *models.User, ingredientID uint) {
	ingredient, _, ok := loadIngredient(w, r, user, ingredientID, false)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ingredient)
}

func createIngredient(w http.ResponseWriter, r *http.Request, user *models.User) {
	ctx := r.Context()
	payload, ok := decodeIngredientRequest(w, r)
	if !ok {
		return
	}
	if payload.RestaurantID == 0 {
		writeJSONError(w, http.StatusBadRequest, "restaurant_id is required")
		return
	}

	role, err := restaurantRole(r, user, payload.RestaurantID)
	if err != nil {
		applog.Error(ctx, "failed to resolve restaurant role", "error", err, "restaurant", payload.RestaurantID, "user", user.ID)
		writeJSONError(w, http.StatusInternalServerError, "unable to resolve access")
		return
	}
	if !auth.CanManage(user.Admin, role) {
		writeJSONError(w, http.StatusForbidden, "editor access required")
		return
	}

	unit := payload.Unit
	if unit == "" {
		unit = models.UnitGram
	}
	ingredient := models.Ingredient{
		RestaurantID:    payload.RestaurantID,
		Name:            payload.Name,
		ReferenceWeight: payload.ReferenceWeight,
		Unit:            unit,
		Price:           payload.Price,
	}

	if err := database.WithContext(ctx).Create(&ingredient).Error; err != nil {
		applog.Error(ctx, "failed to create ingredient", "error", err)
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("create failed: %v", err))
		return
	}

	recordActivity(r, user, role, activity.KindIngredient, activity.ActionCreated, ingredient.Name, "ingredient registered")
	writeJSON(w, http.StatusCreated, ingredient)
}

func updateIngredient(w http.ResponseWriter, r *http.Request, user *models.User, ingredientID uint) {
	ctx := r.Context()
	ingredient, role, ok := loadIngredient(w, r, user, ingredientID, true)
	if !ok {
		return
	}

	payload, ok := decodeIngredientRequest(w, r)
	if !ok {
		return
	}
	if payload.RestaurantID != 0 && payload.RestaurantID != ingredient.RestaurantID {
		writeJSONError(w, http.StatusBadRequest, "ingredient cannot change restaurant")
		return
	}

	unit := payload.Unit
	if unit == "" {
		unit = models.UnitGram
	}

	updates := map[string]any{
		"name":             payload.Name,
		"reference_weight": payload.ReferenceWeight,
		"unit":             unit,
		"price":            payload.Price,
	}
	if err := database.WithContext(ctx).Model(ingredient).Updates(updates).Error; err != nil {
		applog.Error(ctx, "failed to update ingredient", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("update failed: %v", err))
		return
	}

	// Price or weight edits ripple into every composite using the
	// ingredient, directly or through nested sub-recipes.
	if err := costing.RecalculateIngredientDependents(ctx, database, ingredientID); err != nil {
		applog.Error(ctx, "failed to repropagate after ingredient update", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to recompute dependent records")
		return
	}

	if err := database.WithContext(ctx).First(ingredient, ingredientID).Error; err != nil {
		applog.Error(ctx, "failed to reload ingredient after update", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load updated record")
		return
	}

	recordActivity(r, user, role, activity.KindIngredient, activity.ActionEdited, ingredient.Name, "ingredient details changed")
	writeJSON(w, http.StatusOK, ingredient)
}

func deleteIngredient(w http.ResponseWriter, r *http.Request, user *models.User, ingredientID uint) {
	ctx := r.Context()
	ingredient, role, ok := loadIngredient(w, r, user, ingredientID, true)
	if !ok {
		return
	}

	// Owners are captured before the delete removes the referencing lines.
	recipeIDs, sheetIDs, err := costing.IngredientOwners(ctx, database, ingredientID)
	if err != nil {
		applog.Error(ctx, "failed to list ingredient owners", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete ingredient")
		return
	}

	err = database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ingredient_id = ?", ingredientID).Delete(&models.RecipeItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("ingredient_id = ?", ingredientID).Delete(&models.TechnicalSheetItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(ingredient).Error
	})
	if err != nil {
		applog.Error(ctx, "failed to delete ingredient", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete ingredient")
		return
	}

	if err := costing.RecalculateComposites(ctx, database, recipeIDs, sheetIDs); err != nil {
		applog.Error(ctx, "failed to repropagate after ingredient delete", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to recompute dependent records")
		return
	}

	recordActivity(r, user, role, activity.KindIngredient, activity.ActionDeleted, ingredient.Name, "ingredient removed")
	w.WriteHeader(http.StatusNoContent)
}

func decodeIngredientRequest(w http.ResponseWriter, r *http.Request) (ingredientRequest, bool) {
	var payload ingredientRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return payload, false
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return payload, false
	}
	if payload.Unit != "" && !models.ValidUnit(payload.Unit) {
		writeJSONError(w, http.StatusBadRequest, "unit must be one of g, ml, un")
		return payload, false
	}
	if payload.ReferenceWeight < 0 {
		writeJSONError(w, http.StatusBadRequest, "reference_weight must not be negative")
		return payload, false
	}
	if payload.Price < 0 {
		writeJSONError(w, http.StatusBadRequest, "price must not be negative")
		return payload, false
	}
	return payload, true
}

// loadIngredient loads the ingredient and enforces read or manage
// access, writing the failure response itself.
func loadIngredient(w http.ResponseWriter, r *http.Request, user *models.User, ingredientID uint, manage bool) (*models.Ingredient, string, bool) {
	ctx := r.Context()
	var ingredient models.Ingredient
	if err := database.WithContext(ctx).First(&ingredient, ingredientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return nil, "", false
		}
		applog.Error(ctx, "failed to load ingredient", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredient")
		return nil, "", false
	}

	role, err := restaurantRole(r, user, ingredient.RestaurantID)
	if err != nil {
		applog.Error(ctx, "failed to resolve restaurant role", "error", err, "restaurant", ingredient.RestaurantID, "user", user.ID)
		writeJSONError(w, http.StatusInternalServerError, "unable to resolve access")
		return nil, "", false
	}
	if !auth.CanRead(user.Admin, role) {
		applog.Debug(ctx, "ingredient access denied", "id", ingredientID, "user", user.ID)
		http.NotFound(w, r)
		return nil, "", false
	}
	if manage && !auth.CanManage(user.Admin, role) {
		writeJSONError(w, http.StatusForbidden, "editor access required")
		return nil, "", false
	}
	return &ingredient, role, true
}
