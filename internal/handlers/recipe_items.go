package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"fichapro/internal/auth"
	"fichapro/internal/costing"
	applog "fichapro/internal/log"
	"fichapro/models"
)

type recipeItemRequest struct {
	RecipeID        uint    `json:"recipe_id"`
	IngredientID    *uint   `json:"ingredient_id"`
	SubRecipeID     *uint   `json:"sub_recipe_id"`
	Quantity        float64 `json:"quantity"`
	IC              float64 `json:"ic"`
	IPC             float64 `json:"ipc"`
	ApplyAdjustment *bool   `json:"apply_adjustment"`
}

type lineItemResponse struct {
	ID              uint    `json:"id"`
	IngredientID    *uint   `json:"ingredient_id,omitempty"`
	SubRecipeID     *uint   `json:"sub_recipe_id,omitempty"`
	ComponentName   string  `json:"component_name,omitempty"`
	Quantity        float64 `json:"quantity"`
	Unit            string  `json:"unit,omitempty"`
	IC              float64 `json:"ic"`
	ICDirection     string  `json:"ic_direction,omitempty"`
	IPC             float64 `json:"ipc"`
	ApplyAdjustment bool    `json:"apply_adjustment"`
}

func projectLineItems(items []models.RecipeItem) []lineItemResponse {
	responses := make([]lineItemResponse, 0, len(items))
	for _, item := range items {
		entry := lineItemResponse{
			ID:              item.ID,
			IngredientID:    item.IngredientID,
			SubRecipeID:     item.SubRecipeID,
			Quantity:        item.Quantity,
			IC:              item.IC,
			IPC:             item.IPC,
			ApplyAdjustment: item.ApplyAdjustment,
		}
		switch {
		case item.Ingredient != nil:
			entry.ComponentName = item.Ingredient.Name
			entry.Unit = item.Ingredient.Unit
		case item.SubRecipe != nil:
			entry.ComponentName = item.SubRecipe.Name
		}
		responses = append(responses, entry)
	}
	return responses
}

// RecipeItemResource handles REST-style interactions for recipe line
// items. Every mutation re-derives the owning recipe and everything
// upward of it.
func RecipeItemResource(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/recipe-items")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			listRecipeItems(w, r, user)
		case http.MethodPost:
			createRecipeItem(w, r, user)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	itemID, err := parseID(path)
	if err != nil {
		applog.Debug(r.Context(), "invalid recipe item identifier", "identifier", path, "error", err)
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		showRecipeItem(w, r, user, itemID)
	case http.MethodPut:
		updateRecipeItem(w, r, user, itemID)
	case http.MethodDelete:
		deleteRecipeItem(w, r, user, itemID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listRecipeItems(w http.ResponseWriter, r *http.Request, user *models.User) {
	ctx := r.Context()
	raw := r.URL.Query().Get("recipe_id")
	if raw == "" {
		writeJSONError(w, http.StatusBadRequest, "recipe_id is required")
		return
	}
	recipeID, err := parseID(raw)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid recipe_id")
		return
	}

	if _, _, ok := loadRecipe(w, r, user, recipeID, false); !ok {
		return
	}

	var items []models.RecipeItem
	if err := database.WithContext(ctx).
		Preload("Ingredient").
		Preload("SubRecipe").
		Where("recipe_id = ?", recipeID).
		Order("id asc").
		Find(&items).Error; err != nil {
		applog.Error(ctx, "failed to list recipe items", "error", err, "recipe", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe items")
		return
	}
	writeJSON(w, http.StatusOK, projectLineItems(items))
}

func showRecipeItem(w http.ResponseWriter, r *http.Request, user *models.User, itemID uint) {
	item, _, ok := loadRecipeItem(w, r, user, itemID, false)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projectLineItems([]models.RecipeItem{*item})[0])
}

func createRecipeItem(w http.ResponseWriter, r *http.Request, user *models.User) {
	ctx := r.Context()
	payload, ok := decodeRecipeItemRequest(w, r)
	if !ok {
		return
	}
	if payload.RecipeID == 0 {
		writeJSONError(w, http.StatusBadRequest, "recipe_id is required")
		return
	}

	recipe, _, ok := loadRecipe(w, r, user, payload.RecipeID, true)
	if !ok {
		return
	}
	if !validateRecipeItemRefs(w, r, recipe, payload.IngredientID, payload.SubRecipeID) {
		return
	}

	item := models.RecipeItem{
		RecipeID:        payload.RecipeID,
		IngredientID:    payload.IngredientID,
		SubRecipeID:     payload.SubRecipeID,
		Quantity:        payload.Quantity,
		IC:              payload.IC,
		IPC:             payload.IPC,
		ApplyAdjustment: payload.ApplyAdjustment == nil || *payload.ApplyAdjustment,
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		return costing.RecalculateRecipe(ctx, tx, payload.RecipeID)
	})
	if err != nil {
		applog.Error(ctx, "failed to create recipe item", "error", err, "recipe", payload.RecipeID)
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("create failed: %v", err))
		return
	}

	if err := costing.RecalculateRecipeDependents(ctx, database, payload.RecipeID); err != nil {
		applog.Error(ctx, "failed to repropagate recipe dependents", "error", err, "recipe", payload.RecipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to recompute dependent records")
		return
	}

	respondWithRecipeItem(w, r, item.ID, http.StatusCreated)
}

func updateRecipeItem(w http.ResponseWriter, r *http.Request, user *models.User, itemID uint) {
	ctx := r.Context()
	item, _, ok := loadRecipeItem(w, r, user, itemID, true)
	if !ok {
		return
	}

	payload, ok := decodeRecipeItemRequest(w, r)
	if !ok {
		return
	}

	targetRecipeID := item.RecipeID
	if payload.RecipeID != 0 && payload.RecipeID != item.RecipeID {
		targetRecipeID = payload.RecipeID
	}
	targetRecipe, _, ok := loadRecipe(w, r, user, targetRecipeID, true)
	if !ok {
		return
	}
	if !validateRecipeItemRefs(w, r, targetRecipe, payload.IngredientID, payload.SubRecipeID) {
		return
	}

	previousRecipeID := item.RecipeID
	updates := map[string]any{
		"recipe_id":        targetRecipeID,
		"ingredient_id":    payload.IngredientID,
		"sub_recipe_id":    payload.SubRecipeID,
		"quantity":         payload.Quantity,
		"ic":               payload.IC,
		"ipc":              payload.IPC,
		"apply_adjustment": payload.ApplyAdjustment == nil || *payload.ApplyAdjustment,
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.RecipeItem{}).Where("id = ?", itemID).Updates(updates).Error; err != nil {
			return err
		}
		if err := costing.RecalculateRecipe(ctx, tx, targetRecipeID); err != nil {
			return err
		}
		// Moving a line between recipes leaves the previous owner stale too.
		if previousRecipeID != targetRecipeID {
			return costing.RecalculateRecipe(ctx, tx, previousRecipeID)
		}
		return nil
	})
	if err != nil {
		applog.Error(ctx, "failed to update recipe item", "error", err, "id", itemID)
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("update failed: %v", err))
		return
	}

	touched := []uint{targetRecipeID}
	if previousRecipeID != targetRecipeID {
		touched = append(touched, previousRecipeID)
	}
	for _, recipeID := range touched {
		if err := costing.RecalculateRecipeDependents(ctx, database, recipeID); err != nil {
			applog.Error(ctx, "failed to repropagate recipe dependents", "error", err, "recipe", recipeID)
			writeJSONError(w, http.StatusInternalServerError, "unable to recompute dependent records")
			return
		}
	}

	respondWithRecipeItem(w, r, itemID, http.StatusOK)
}

func deleteRecipeItem(w http.ResponseWriter, r *http.Request, user *models.User, itemID uint) {
	ctx := r.Context()
	item, _, ok := loadRecipeItem(w, r, user, itemID, true)
	if !ok {
		return
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.RecipeItem{}, itemID).Error; err != nil {
			return err
		}
		return costing.RecalculateRecipe(ctx, tx, item.RecipeID)
	})
	if err != nil {
		applog.Error(ctx, "failed to delete recipe item", "error", err, "id", itemID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete recipe item")
		return
	}

	if err := costing.RecalculateRecipeDependents(ctx, database, item.RecipeID); err != nil {
		applog.Error(ctx, "failed to repropagate recipe dependents", "error", err, "recipe", item.RecipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to recompute dependent records")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func decodeRecipeItemRequest(w http.ResponseWriter, r *http.Request) (recipeItemRequest, bool) {
	var payload recipeItemRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return payload, false
	}
	if payload.Quantity <= 0 {
		writeJSONError(w, http.StatusBadRequest, "quantity must be positive")
		return payload, false
	}
	if (payload.IngredientID == nil) == (payload.SubRecipeID == nil) {
		writeJSONError(w, http.StatusBadRequest, "exactly one of ingredient_id and sub_recipe_id is required")
		return payload, false
	}
	if payload.IC < 0 || payload.IPC < 0 {
		writeJSONError(w, http.StatusBadRequest, "ic and ipc must not be negative")
		return payload, false
	}
	if payload.IC == 0 {
		payload.IC = 100
	}
	if payload.IPC == 0 {
		payload.IPC = 100
	}
	return payload, true
}

// validateRecipeItemRefs checks that the referenced component exists,
// belongs to the same restaurant as the owning recipe, and — for
// sub-recipe references — does not close a composition cycle.
func validateRecipeItemRefs(w http.ResponseWriter, r *http.Request, recipe *models.Recipe, ingredientID, subRecipeID *uint) bool {
	ctx := r.Context()
	switch {
	case ingredientID != nil:
		var ingredient models.Ingredient
		if err := database.WithContext(ctx).First(&ingredient, *ingredientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				writeJSONError(w, http.StatusBadRequest, "ingredient not found")
				return false
			}
			applog.Error(ctx, "failed to load referenced ingredient", "error", err, "id", *ingredientID)
			writeJSONError(w, http.StatusInternalServerError, "unable to validate ingredient reference")
			return false
		}
		if ingredient.RestaurantID != recipe.RestaurantID {
			writeJSONError(w, http.StatusBadRequest, "ingredient belongs to another restaurant")
			return false
		}
	case subRecipeID != nil:
		var sub models.Recipe
		if err := database.WithContext(ctx).First(&sub, *subRecipeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				writeJSONError(w, http.StatusBadRequest, "sub-recipe not found")
				return false
			}
			applog.Error(ctx, "failed to load referenced recipe", "error", err, "id", *subRecipeID)
			writeJSONError(w, http.StatusInternalServerError, "unable to validate recipe reference")
			return false
		}
		if sub.RestaurantID != recipe.RestaurantID {
			writeJSONError(w, http.StatusBadRequest, "sub-recipe belongs to another restaurant")
			return false
		}
		cyclic, err := costing.CreatesCycle(ctx, database, recipe.ID, *subRecipeID)
		if err != nil {
			applog.Error(ctx, "failed to check for composition cycle", "error", err, "recipe", recipe.ID, "sub", *subRecipeID)
			writeJSONError(w, http.StatusInternalServerError, "unable to validate recipe reference")
			return false
		}
		if cyclic {
			writeJSONError(w, http.StatusBadRequest, "sub-recipe reference would create a cycle")
			return false
		}
	}
	return true
}

func loadRecipeItem(w http.ResponseWriter, r *http.Request, user *models.User, itemID uint, manage bool) (*models.RecipeItem, string, bool) {
	ctx := r.Context()
	var item models.RecipeItem
	if err := database.WithContext(ctx).
		Preload("Ingredient").
		Preload("SubRecipe").
		First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return nil, "", false
		}
		applog.Error(ctx, "failed to load recipe item", "error", err, "id", itemID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe item")
		return nil, "", false
	}

	var recipe models.Recipe
	if err := database.WithContext(ctx).First(&recipe, item.RecipeID).Error; err != nil {
		applog.Error(ctx, "failed to load owning recipe", "error", err, "recipe", item.RecipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe item")
		return nil, "", false
	}

	role, err := restaurantRole(r, user, recipe.RestaurantID)
	if err != nil {
		applog.Error(ctx, "failed to resolve restaurant role", "error", err, "restaurant", recipe.RestaurantID, "user", user.ID)
		writeJSONError(w, http.StatusInternalServerError, "unable to resolve access")
		return nil, "", false
	}
	if !auth.CanRead(user.Admin, role) {
		http.NotFound(w, r)
		return nil, "", false
	}
	if manage && !auth.CanManage(user.Admin, role) {
		writeJSONError(w, http.StatusForbidden, "editor access required")
		return nil, "", false
	}
	return &item, role, true
}

func respondWithRecipeItem(w http.ResponseWriter, r *http.Request, itemID uint, status int) {
	ctx := r.Context()
	var item models.RecipeItem
	if err := database.WithContext(ctx).
		Preload("Ingredient").
		Preload("SubRecipe").
		First(&item, itemID).Error; err != nil {
		applog.Error(ctx, "failed to reload recipe item", "error", err, "id", itemID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe item")
		return
	}
	writeJSON(w, status, projectLineItems([]models.RecipeItem{item})[0])
}
