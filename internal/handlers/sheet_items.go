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

type sheetItemRequest struct {
	SheetID         uint    `json:"sheet_id"`
	IngredientID    *uint   `json:"ingredient_id"`
	RecipeID        *uint   `json:"recipe_id"`
	Quantity        float64 `json:"quantity"`
	Unit            string  `json:"unit"`
	IC              float64 `json:"ic"`
	ICDirection     string  `json:"ic_direction"`
	IPC             float64 `json:"ipc"`
	ApplyAdjustment *bool   `json:"apply_adjustment"`
}

func projectSheetLineItems(items []models.TechnicalSheetItem) []lineItemResponse {
	responses := make([]lineItemResponse, 0, len(items))
	for _, item := range items {
		entry := lineItemResponse{
			ID:              item.ID,
			IngredientID:    item.IngredientID,
			SubRecipeID:     item.RecipeID,
			Quantity:        item.Quantity,
			Unit:            item.Unit,
			IC:              item.IC,
			ICDirection:     item.ICDirection,
			IPC:             item.IPC,
			ApplyAdjustment: item.ApplyAdjustment,
		}
		switch {
		case item.Ingredient != nil:
			entry.ComponentName = item.Ingredient.Name
		case item.Recipe != nil:
			entry.ComponentName = item.Recipe.Name
		}
		responses = append(responses, entry)
	}
	return responses
}

// SheetItemResource handles REST-style interactions for technical sheet
// line items. Every mutation re-derives the owning sheet. Sheets cannot
// be referenced as components, so no cycle check is needed here.
func SheetItemResource(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/sheet-items")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			listSheetItems(w, r, user)
		case http.MethodPost:
			createSheetItem(w, r, user)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	itemID, err := parseID(path)
	if err != nil {
		applog.Debug(r.Context(), "invalid sheet item identifier", "identifier", path, "error", err)
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		showSheetItem(w, r, user, itemID)
	case http.MethodPut:
		updateSheetItem(w, r, user, itemID)
	case http.MethodDelete:
		deleteSheetItem(w, r, user, itemID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listSheetItems(w http.ResponseWriter, r *http.Request, user *models.User) {
	ctx := r.Context()
	raw := r.URL.Query().Get("sheet_id")
	if raw == "" {
		writeJSONError(w, http.StatusBadRequest, "sheet_id is required")
		return
	}
	sheetID, err := parseID(raw)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid sheet_id")
		return
	}

	if _, _, ok := loadTechnicalSheet(w, r, user, sheetID, false); !ok {
		return
	}

	var items []models.TechnicalSheetItem
	if err := database.WithContext(ctx).
		Preload("Ingredient").
		Preload("Recipe").
		Where("sheet_id = ?", sheetID).
		Order("id asc").
		Find(&items).Error; err != nil {
		applog.Error(ctx, "failed to list sheet items", "error", err, "sheet", sheetID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load sheet items")
		return
	}
	writeJSON(w, http.StatusOK, projectSheetLineItems(items))
}

func showSheetItem(w http.ResponseWriter, r *http.Request, user *models.User, itemID uint) {
	item, _, ok := loadSheetItem(w, r, user, itemID, false)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projectSheetLineItems([]models.TechnicalSheetItem{*item})[0])
}

func createSheetItem(w http.ResponseWriter, r *http.Request, user *models.User) {
	ctx := r.Context()
	payload, ok := decodeSheetItemRequest(w, r)
	if !ok {
		return
	}
	if payload.SheetID == 0 {
		writeJSONError(w, http.StatusBadRequest, "sheet_id is required")
		return
	}

	sheet, _, ok := loadTechnicalSheet(w, r, user, payload.SheetID, true)
	if !ok {
		return
	}
	if !validateSheetItemRefs(w, r, sheet, payload.IngredientID, payload.RecipeID) {
		return
	}

	item := models.TechnicalSheetItem{
		SheetID:         payload.SheetID,
		IngredientID:    payload.IngredientID,
		RecipeID:        payload.RecipeID,
		Quantity:        payload.Quantity,
		Unit:            payload.Unit,
		IC:              payload.IC,
		ICDirection:     payload.ICDirection,
		IPC:             payload.IPC,
		ApplyAdjustment: payload.ApplyAdjustment == nil || *payload.ApplyAdjustment,
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		return costing.RecalculateSheet(ctx, tx, payload.SheetID)
	})
	if err != nil {
		applog.Error(ctx, "failed to create sheet item", "error", err, "sheet", payload.SheetID)
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("create failed: %v", err))
		return
	}

	respondWithSheetItem(w, r, item.ID, http.StatusCreated)
}

func updateSheetItem(w http.ResponseWriter, r *http.Request, user *models.User, itemID uint) {
	ctx := r.Context()
	item, _, ok := loadSheetItem(w, r, user, itemID, true)
	if !ok {
		return
	}

	payload, ok := decodeSheetItemRequest(w, r)
	if !ok {
		return
	}

	targetSheetID := item.SheetID
	if payload.SheetID != 0 && payload.SheetID != item.SheetID {
		targetSheetID = payload.SheetID
	}
	targetSheet, _, ok := loadTechnicalSheet(w, r, user, targetSheetID, true)
	if !ok {
		return
	}
	if !validateSheetItemRefs(w, r, targetSheet, payload.IngredientID, payload.RecipeID) {
		return
	}

	previousSheetID := item.SheetID
	updates := map[string]any{
		"sheet_id":         targetSheetID,
		"ingredient_id":    payload.IngredientID,
		"recipe_id":        payload.RecipeID,
		"quantity":         payload.Quantity,
		"unit":             payload.Unit,
		"ic":               payload.IC,
		"ic_direction":     payload.ICDirection,
		"ipc":              payload.IPC,
		"apply_adjustment": payload.ApplyAdjustment == nil || *payload.ApplyAdjustment,
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.TechnicalSheetItem{}).Where("id = ?", itemID).Updates(updates).Error; err != nil {
			return err
		}
		if err := costing.RecalculateSheet(ctx, tx, targetSheetID); err != nil {
			return err
		}
		if previousSheetID != targetSheetID {
			return costing.RecalculateSheet(ctx, tx, previousSheetID)
		}
		return nil
	})
	if err != nil {
		applog.Error(ctx, "failed to update sheet item", "error", err, "id", itemID)
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("update failed: %v", err))
		return
	}

	respondWithSheetItem(w, r, itemID, http.StatusOK)
}

func deleteSheetItem(w http.ResponseWriter, r *http.Request, user *models.User, itemID uint) {
	ctx := r.Context()
	item, _, ok := loadSheetItem(w, r, user, itemID, true)
	if !ok {
		return
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.TechnicalSheetItem{}, itemID).Error; err != nil {
			return err
		}
		return costing.RecalculateSheet(ctx, tx, item.SheetID)
	})
	if err != nil {
		applog.Error(ctx, "failed to delete sheet item", "error", err, "id", itemID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete sheet item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func decodeSheetItemRequest(w http.ResponseWriter, r *http.Request) (sheetItemRequest, bool) {
	var payload sheetItemRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return payload, false
	}
	if payload.Quantity <= 0 {
		writeJSONError(w, http.StatusBadRequest, "quantity must be positive")
		return payload, false
	}
	if (payload.IngredientID == nil) == (payload.RecipeID == nil) {
		writeJSONError(w, http.StatusBadRequest, "exactly one of ingredient_id and recipe_id is required")
		return payload, false
	}
	if payload.Unit == "" {
		payload.Unit = models.UnitGram
	} else if !models.ValidUnit(payload.Unit) {
		writeJSONError(w, http.StatusBadRequest, "unit must be one of g, ml, un")
		return payload, false
	}
	if payload.ICDirection == "" {
		payload.ICDirection = models.ICDirectionLoss
	} else if !models.ValidICDirection(payload.ICDirection) {
		writeJSONError(w, http.StatusBadRequest, "ic_direction must be loss or gain")
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

func validateSheetItemRefs(w http.ResponseWriter, r *http.Request, sheet *models.TechnicalSheet, ingredientID, recipeID *uint) bool {
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
		if ingredient.RestaurantID != sheet.RestaurantID {
			writeJSONError(w, http.StatusBadRequest, "ingredient belongs to another restaurant")
			return false
		}
	case recipeID != nil:
		var recipe models.Recipe
		if err := database.WithContext(ctx).First(&recipe, *recipeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				writeJSONError(w, http.StatusBadRequest, "recipe not found")
				return false
			}
			applog.Error(ctx, "failed to load referenced recipe", "error", err, "id", *recipeID)
			writeJSONError(w, http.StatusInternalServerError, "unable to validate recipe reference")
			return false
		}
		if recipe.RestaurantID != sheet.RestaurantID {
			writeJSONError(w, http.StatusBadRequest, "recipe belongs to another restaurant")
			return false
		}
	}
	return true
}

func loadSheetItem(w http.ResponseWriter, r *http.Request, user *models.User, itemID uint, manage bool) (*models.TechnicalSheetItem, string, bool) {
	ctx := r.Context()
	var item models.TechnicalSheetItem
	if err := database.WithContext(ctx).
		Preload("Ingredient").
		Preload("Recipe").
		First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return nil, "", false
		}
		applog.Error(ctx, "failed to load sheet item", "error", err, "id", itemID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load sheet item")
		return nil, "", false
	}

	var sheet models.TechnicalSheet
	if err := database.WithContext(ctx).First(&sheet, item.SheetID).Error; err != nil {
		applog.Error(ctx, "failed to load owning sheet", "error", err, "sheet", item.SheetID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load sheet item")
		return nil, "", false
	}

	role, err := restaurantRole(r, user, sheet.RestaurantID)
	if err != nil {
		applog.Error(ctx, "failed to resolve restaurant role", "error", err, "restaurant", sheet.RestaurantID, "user", user.ID)
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

func respondWithSheetItem(w http.ResponseWriter, r *http.Request, itemID uint, status int) {
	ctx := r.Context()
	var item models.TechnicalSheetItem
	if err := database.WithContext(ctx).
		Preload("Ingredient").
		Preload("Recipe").
		First(&item, itemID).Error; err != nil {
		applog.Error(ctx, "failed to reload sheet item", "error", err, "id", itemID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load sheet item")
		return
	}
	writeJSON(w, status, projectSheetLineItems([]models.TechnicalSheetItem{item})[0])
}
