package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"fichapro/internal/activity"
	"fichapro/internal/auth"
	"fichapro/internal/costing"
	applog "fichapro/internal/log"
	"fichapro/models"
)

type recipeRequest struct {
	RestaurantID     uint     `json:"restaurant_id"`
	Name             string   `json:"name"`
	PrepTimeMinutes  uint     `json:"prep_time_minutes"`
	SuggestedPortion string   `json:"suggested_portion"`
	Preparation      string   `json:"preparation"`
	YieldWeight      *float64 `json:"yield_weight"`
	Yield            string   `json:"yield"`
	ImagePath        string   `json:"image_path"`
}

type recipeResponse struct {
	ID               uint               `json:"id"`
	RestaurantID     uint               `json:"restaurant_id"`
	Name             string             `json:"name"`
	PrepTimeMinutes  uint               `json:"prep_time_minutes"`
	SuggestedPortion string             `json:"suggested_portion"`
	Preparation      string             `json:"preparation"`
	YieldWeight      *float64           `json:"yield_weight,omitempty"`
	Yield            string             `json:"yield"`
	ImagePath        string             `json:"image_path,omitempty"`
	TotalCost        *float64           `json:"total_cost"`
	FinalWeight      float64            `json:"final_weight"`
	RestaurantPrice  *float64           `json:"restaurant_price"`
	PlatformPrice    *float64           `json:"platform_price"`
	Items            []lineItemResponse `json:"items"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// RecipeResource handles REST-style interactions for recipe records.
// Responses carry live resolver figures; cost and suggested prices are
// withheld from actors without cost visibility.
func RecipeResource(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/recipes")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			listRecipes(w, r, user)
		case http.MethodPost:
			createRecipe(w, r, user)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	recipeID, err := parseID(path)
	if err != nil {
		applog.Debug(r.Context(), "invalid recipe identifier", "identifier", path, "error", err)
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		showRecipe(w, r, user, recipeID)
	case http.MethodPut:
		updateRecipe(w, r, user, recipeID)
	case http.MethodDelete:
		deleteRecipe(w, r, user, recipeID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listRecipes(w http.ResponseWriter, r *http.Request, user *models.User) {
	ctx := r.Context()
	query := database.WithContext(ctx).
		Preload("Items.Ingredient").
		Preload("Items.SubRecipe").
		Order("name asc")

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
			writeJSON(w, http.StatusOK, []recipeResponse{})
			return
		}
		query = query.Where("restaurant_id = ?", restaurantID)
	} else if !user.Admin {
		linked, err := auth.LinkedRestaurantIDs(ctx, database, user.ID)
		if err != nil {
			applog.Error(ctx, "failed to load role links", "error", err, "user", user.ID)
			writeJSONError(w, http.StatusInternalServerError, "unable to load recipes")
			return
		}
		if len(linked) == 0 {
			writeJSON(w, http.StatusOK, []recipeResponse{})
			return
		}
		query = query.Where("restaurant_id IN ?", linked)
	}

	var recipes []models.Recipe
	if err := query.Find(&recipes).Error; err != nil {
		applog.Error(ctx, "failed to list recipes", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipes")
		return
	}

	responses := make([]recipeResponse, 0, len(recipes))
	for i := range recipes {
		projected, err := projectRecipeFor(ctx, user, &recipes[i])
		if err != nil {
			applog.Error(ctx, "failed to project recipe", "error", err, "id", recipes[i].ID)
			writeJSONError(w, http.StatusInternalServerError, "unable to load recipes")
			return
		}
		responses = append(responses, projected)
	}
	writeJSON(w, http.StatusOK, responses)
}

func showRecipe(w http.ResponseWriter, r *http.Request, user *models.User, recipeID uint) {
	ctx := r.Context()
	recipe, _, ok := loadRecipe(w, r, user, recipeID, false)
	if !ok {
		return
	}
	projected, err := projectRecipeFor(ctx, user, recipe)
	if err != nil {
		applog.Error(ctx, "failed to project recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe")
		return
	}
	writeJSON(w, http.StatusOK, projected)
}

func createRecipe(w http.ResponseWriter, r *http.Request, user *models.User) {
	ctx := r.Context()
	payload, ok := decodeRecipeRequest(w, r)
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

	recipe := models.Recipe{
		RestaurantID:     payload.RestaurantID,
		Name:             payload.Name,
		PrepTimeMinutes:  payload.PrepTimeMinutes,
		SuggestedPortion: strings.TrimSpace(payload.SuggestedPortion),
		Preparation:      payload.Preparation,
		YieldWeight:      payload.YieldWeight,
		Yield:            strings.TrimSpace(payload.Yield),
		ImagePath:        strings.TrimSpace(payload.ImagePath),
	}
	if err := database.WithContext(ctx).Create(&recipe).Error; err != nil {
		applog.Error(ctx, "failed to create recipe", "error", err)
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("create failed: %v", err))
		return
	}

	if err := costing.RecalculateRecipe(ctx, database, recipe.ID); err != nil {
		applog.Error(ctx, "failed to propagate new recipe", "error", err, "id", recipe.ID)
		writeJSONError(w, http.StatusInternalServerError, "unable to compute derived fields")
		return
	}

	recordActivity(r, user, role, activity.KindRecipe, activity.ActionCreated, recipe.Name, "recipe registered")
	respondWithRecipe(w, r, user, recipe.ID, http.StatusCreated)
}

func updateRecipe(w http.ResponseWriter, r *http.Request, user *models.User, recipeID uint) {
	ctx := r.Context()
	recipe, role, ok := loadRecipe(w, r, user, recipeID, true)
	if !ok {
		return
	}

	payload, ok := decodeRecipeRequest(w, r)
	if !ok {
		return
	}
	if payload.RestaurantID != 0 && payload.RestaurantID != recipe.RestaurantID {
		writeJSONError(w, http.StatusBadRequest, "recipe cannot change restaurant")
		return
	}

	updates := map[string]any{
		"name":              payload.Name,
		"prep_time_minutes": payload.PrepTimeMinutes,
		"suggested_portion": strings.TrimSpace(payload.SuggestedPortion),
		"preparation":       payload.Preparation,
		"yield_weight":      payload.YieldWeight,
		"yield":             strings.TrimSpace(payload.Yield),
		"image_path":        strings.TrimSpace(payload.ImagePath),
	}
	if err := database.WithContext(ctx).Model(&models.Recipe{}).Where("id = ?", recipeID).Updates(updates).Error; err != nil {
		applog.Error(ctx, "failed to update recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("update failed: %v", err))
		return
	}

	// A yield-weight change alters how sheets pro-rate this recipe.
	if err := costing.RecalculateRecipe(ctx, database, recipeID); err != nil {
		applog.Error(ctx, "failed to repropagate after recipe update", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to recompute derived fields")
		return
	}
	if err := costing.RecalculateRecipeDependents(ctx, database, recipeID); err != nil {
		applog.Error(ctx, "failed to repropagate recipe dependents", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to recompute dependent records")
		return
	}

	recordActivity(r, user, role, activity.KindRecipe, activity.ActionEdited, payload.Name, "recipe details changed")
	respondWithRecipe(w, r, user, recipeID, http.StatusOK)
}

func deleteRecipe(w http.ResponseWriter, r *http.Request, user *models.User, recipeID uint) {
	ctx := r.Context()
	recipe, role, ok := loadRecipe(w, r, user, recipeID, true)
	if !ok {
		return
	}

	recipeIDs, sheetIDs, err := costing.RecipeOwners(ctx, database, recipeID)
	if err != nil {
		applog.Error(ctx, "failed to list recipe owners", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete recipe")
		return
	}

	err = database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ? OR sub_recipe_id = ?", recipeID, recipeID).Delete(&models.RecipeItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.TechnicalSheetItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Recipe{}, recipeID).Error
	})
	if err != nil {
		applog.Error(ctx, "failed to delete recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete recipe")
		return
	}

	if err := costing.RecalculateComposites(ctx, database, recipeIDs, sheetIDs); err != nil {
		applog.Error(ctx, "failed to repropagate after recipe delete", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to recompute dependent records")
		return
	}

	recordActivity(r, user, role, activity.KindRecipe, activity.ActionDeleted, recipe.Name, "recipe removed")
	w.WriteHeader(http.StatusNoContent)
}

// respondWithRecipe reloads the recipe after a mutation so the response
// reflects the persisted row and the freshly propagated figures.
func respondWithRecipe(w http.ResponseWriter, r *http.Request, user *models.User, recipeID uint, status int) {
	ctx := r.Context()
	var recipe models.Recipe
	if err := database.WithContext(ctx).
		Preload("Items.Ingredient").
		Preload("Items.SubRecipe").
		First(&recipe, recipeID).Error; err != nil {
		applog.Error(ctx, "failed to reload recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe")
		return
	}
	projected, err := projectRecipeFor(ctx, user, &recipe)
	if err != nil {
		applog.Error(ctx, "failed to project recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe")
		return
	}
	writeJSON(w, status, projected)
}

func decodeRecipeRequest(w http.ResponseWriter, r *http.Request) (recipeRequest, bool) {
	var payload recipeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return payload, false
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return payload, false
	}
	if payload.YieldWeight != nil && *payload.YieldWeight <= 0 {
		writeJSONError(w, http.StatusBadRequest, "yield_weight must be positive")
		return payload, false
	}
	return payload, true
}

func loadRecipe(w http.ResponseWriter, r *http.Request, user *models.User, recipeID uint, manage bool) (*models.Recipe, string, bool) {
	ctx := r.Context()
	var recipe models.Recipe
	if err := database.WithContext(ctx).
		Preload("Items.Ingredient").
		Preload("Items.SubRecipe").
		First(&recipe, recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return nil, "", false
		}
		applog.Error(ctx, "failed to load recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe")
		return nil, "", false
	}

	role, err := restaurantRole(r, user, recipe.RestaurantID)
	if err != nil {
		applog.Error(ctx, "failed to resolve restaurant role", "error", err, "restaurant", recipe.RestaurantID, "user", user.ID)
		writeJSONError(w, http.StatusInternalServerError, "unable to resolve access")
		return nil, "", false
	}
	if !auth.CanRead(user.Admin, role) {
		applog.Debug(ctx, "recipe access denied", "id", recipeID, "user", user.ID)
		http.NotFound(w, r)
		return nil, "", false
	}
	if manage && !auth.CanManage(user.Admin, role) {
		writeJSONError(w, http.StatusForbidden, "editor access required")
		return nil, "", false
	}
	return &recipe, role, true
}

// projectRecipeFor derives the live figures for the recipe and gates
// cost and prices against the actor's role at the owning restaurant.
func projectRecipeFor(ctx context.Context, user *models.User, recipe *models.Recipe) (recipeResponse, error) {
	role, err := auth.RoleFor(ctx, database, user.ID, recipe.RestaurantID)
	if err != nil {
		return recipeResponse{}, err
	}
	return projectRecipe(ctx, recipe, costing.Actor{Admin: user.Admin, Role: role})
}

func projectRecipe(ctx context.Context, recipe *models.Recipe, actor costing.Actor) (recipeResponse, error) {
	var restaurant models.Restaurant
	if err := database.WithContext(ctx).First(&restaurant, recipe.RestaurantID).Error; err != nil {
		return recipeResponse{}, err
	}

	resolver := costing.NewResolver(database)
	cost, err := resolver.RecipeCost(ctx, recipe.ID)
	if err != nil {
		return recipeResponse{}, err
	}
	weight, err := resolver.RecipeWeight(ctx, recipe.ID)
	if err != nil {
		return recipeResponse{}, err
	}
	if recipe.YieldWeight != nil {
		weight = *recipe.YieldWeight
	}

	response := recipeResponse{
		ID:               recipe.ID,
		RestaurantID:     recipe.RestaurantID,
		Name:             recipe.Name,
		PrepTimeMinutes:  recipe.PrepTimeMinutes,
		SuggestedPortion: recipe.SuggestedPortion,
		Preparation:      recipe.Preparation,
		YieldWeight:      recipe.YieldWeight,
		Yield:            yieldLabel(recipe.Yield, weight),
		ImagePath:        recipe.ImagePath,
		FinalWeight:      costing.Round2(weight),
		Items:            projectLineItems(recipe.Items),
		CreatedAt:        recipe.CreatedAt,
		UpdatedAt:        recipe.UpdatedAt,
	}

	if actor.CanViewCost() {
		rounded := costing.Round2(cost)
		restaurantPrice, platformPrice := costing.SuggestedPrices(cost, restaurant.CorrectionFactor)
		response.TotalCost = &rounded
		response.RestaurantPrice = &restaurantPrice
		response.PlatformPrice = &platformPrice
	}
	return response, nil
}

// yieldLabel prefers the free-form yield text; without one it renders
// the resolved weight, or flags that nothing could be derived yet.
func yieldLabel(override string, weight float64) string {
	if override != "" {
		return override
	}
	if weight > 0 {
		return fmt.Sprintf("%.2fg", weight)
	}
	return "not calculated"
}
