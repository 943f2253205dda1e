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

type technicalSheetRequest struct {
	RestaurantID uint   `json:"restaurant_id"`
	Name         string `json:"name"`
	Yield        string `json:"yield"`
	Preparation  string `json:"preparation"`
	ImagePath    string `json:"image_path"`
}

type technicalSheetResponse struct {
	ID              uint               `json:"id"`
	RestaurantID    uint               `json:"restaurant_id"`
	Name            string             `json:"name"`
	Yield           string             `json:"yield"`
	Preparation     string             `json:"preparation"`
	ImagePath       string             `json:"image_path,omitempty"`
	TotalCost       *float64           `json:"total_cost"`
	FinalWeight     float64            `json:"final_weight"`
	RestaurantPrice *float64           `json:"restaurant_price"`
	PlatformPrice   *float64           `json:"platform_price"`
	Items           []lineItemResponse `json:"items"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// TechnicalSheetResource handles REST-style interactions for technical
// sheet records, the plated-dish counterpart of recipes.
func TechnicalSheetResource(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/technical-sheets")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			listTechnicalSheets(w, r, user)
		case http.MethodPost:
			createTechnicalSheet(w, r, user)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	sheetID, err := parseID(path)
	if err != nil {
		applog.Debug(r.Context(), "invalid technical sheet identifier", "identifier", path, "error", err)
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		showTechnicalSheet(w, r, user, sheetID)
	case http.MethodPut:
		updateTechnicalSheet(w, r, user, sheetID)
	case http.MethodDelete:
		deleteTechnicalSheet(w, r, user, sheetID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listTechnicalSheets(w http.ResponseWriter, r *http.Request, user *models.User) {
	ctx := r.Context()
	query := database.WithContext(ctx).
		Preload("Items.Ingredient").
		Preload("Items.Recipe").
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
			writeJSON(w, http.StatusOK, []technicalSheetResponse{})
			return
		}
		query = query.Where("restaurant_id = ?", restaurantID)
	} else if !user.Admin {
		linked, err := auth.LinkedRestaurantIDs(ctx, database, user.ID)
		if err != nil {
			applog.Error(ctx, "failed to load role links", "error", err, "user", user.ID)
			writeJSONError(w, http.StatusInternalServerError, "unable to load technical sheets")
			return
		}
		if len(linked) == 0 {
			writeJSON(w, http.StatusOK, []technicalSheetResponse{})
			return
		}
		query = query.Where("restaurant_id IN ?", linked)
	}

	var sheets []models.TechnicalSheet
	if err := query.Find(&sheets).Error; err != nil {
		applog.Error(ctx, "failed to list technical sheets", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load technical sheets")
		return
	}

	responses := make([]technicalSheetResponse, 0, len(sheets))
	for i := range sheets {
		projected, err := projectTechnicalSheetFor(ctx, user, &sheets[i])
		if err != nil {
			applog.Error(ctx, "failed to project technical sheet", "error", err, "id", sheets[i].ID)
			writeJSONError(w, http.StatusInternalServerError, "unable to load technical sheets")
			return
		}
		responses = append(responses, projected)
	}
	writeJSON(w, http.StatusOK, responses)
}

func showTechnicalSheet(w http.ResponseWriter, r *http.Request, user *models.User, sheetID uint) {
	ctx := r.Context()
	sheet, _, ok := loadTechnicalSheet(w, r, user, sheetID, false)
	if !ok {
		return
	}
	projected, err := projectTechnicalSheetFor(ctx, user, sheet)
	if err != nil {
		applog.Error(ctx, "failed to project technical sheet", "error", err, "id", sheetID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load technical sheet")
		return
	}
	writeJSON(w, http.StatusOK, projected)
}

func createTechnicalSheet(w http.ResponseWriter, r *http.Request, user *models.User) {
	ctx := r.Context()
	payload, ok := decodeTechnicalSheetRequest(w, r)
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

	sheet := models.TechnicalSheet{
		RestaurantID: payload.RestaurantID,
		Name:         payload.Name,
		Yield:        strings.TrimSpace(payload.Yield),
		Preparation:  payload.Preparation,
		ImagePath:    strings.TrimSpace(payload.ImagePath),
	}
	if err := database.WithContext(ctx).Create(&sheet).Error; err != nil {
		applog.Error(ctx, "failed to create technical sheet", "error", err)
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("create failed: %v", err))
		return
	}

	if err := costing.RecalculateSheet(ctx, database, sheet.ID); err != nil {
		applog.Error(ctx, "failed to propagate new technical sheet", "error", err, "id", sheet.ID)
		writeJSONError(w, http.StatusInternalServerError, "unable to compute derived fields")
		return
	}

	recordActivity(r, user, role, activity.KindTechnicalSheet, activity.ActionCreated, sheet.Name, "technical sheet registered")
	respondWithTechnicalSheet(w, r, user, sheet.ID, http.StatusCreated)
}

func updateTechnicalSheet(w http.ResponseWriter, r *http.Request, user *models.User, sheetID uint) {
	ctx := r.Context()
	sheet, role, ok := loadTechnicalSheet(w, r, user, sheetID, true)
	if !ok {
		return
	}

	payload, ok := decodeTechnicalSheetRequest(w, r)
	if !ok {
		return
	}
	if payload.RestaurantID != 0 && payload.RestaurantID != sheet.RestaurantID {
		writeJSONError(w, http.StatusBadRequest, "technical sheet cannot change restaurant")
		return
	}

	updates := map[string]any{
		"name":        payload.Name,
		"yield":       strings.TrimSpace(payload.Yield),
		"preparation": payload.Preparation,
		"image_path":  strings.TrimSpace(payload.ImagePath),
	}
	if err := database.WithContext(ctx).Model(&models.TechnicalSheet{}).Where("id = ?", sheetID).Updates(updates).Error; err != nil {
		applog.Error(ctx, "failed to update technical sheet", "error", err, "id", sheetID)
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("update failed: %v", err))
		return
	}

	if err := costing.RecalculateSheet(ctx, database, sheetID); err != nil {
		applog.Error(ctx, "failed to repropagate after technical sheet update", "error", err, "id", sheetID)
		writeJSONError(w, http.StatusInternalServerError, "unable to recompute derived fields")
		return
	}

	recordActivity(r, user, role, activity.KindTechnicalSheet, activity.ActionEdited, payload.Name, "technical sheet details changed")
	respondWithTechnicalSheet(w, r, user, sheetID, http.StatusOK)
}

func deleteTechnicalSheet(w http.ResponseWriter, r *http.Request, user *models.User, sheetID uint) {
	ctx := r.Context()
	sheet, role, ok := loadTechnicalSheet(w, r, user, sheetID, true)
	if !ok {
		return
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sheet_id = ?", sheetID).Delete(&models.TechnicalSheetItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.TechnicalSheet{}, sheetID).Error
	})
	if err != nil {
		applog.Error(ctx, "failed to delete technical sheet", "error", err, "id", sheetID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete technical sheet")
		return
	}

	recordActivity(r, user, role, activity.KindTechnicalSheet, activity.ActionDeleted, sheet.Name, "technical sheet removed")
	w.WriteHeader(http.StatusNoContent)
}

func decodeTechnicalSheetRequest(w http.ResponseWriter, r *http.Request) (technicalSheetRequest, bool) {
	var payload technicalSheetRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return payload, false
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return payload, false
	}
	return payload, true
}

func loadTechnicalSheet(w http.ResponseWriter, r *http.Request, user *models.User, sheetID uint, manage bool) (*models.TechnicalSheet, string, bool) {
	ctx := r.Context()
	var sheet models.TechnicalSheet
	if err := database.WithContext(ctx).
		Preload("Items.Ingredient").
		Preload("Items.Recipe").
		First(&sheet, sheetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return nil, "", false
		}
		applog.Error(ctx, "failed to load technical sheet", "error", err, "id", sheetID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load technical sheet")
		return nil, "", false
	}

	role, err := restaurantRole(r, user, sheet.RestaurantID)
	if err != nil {
		applog.Error(ctx, "failed to resolve restaurant role", "error", err, "restaurant", sheet.RestaurantID, "user", user.ID)
		writeJSONError(w, http.StatusInternalServerError, "unable to resolve access")
		return nil, "", false
	}
	if !auth.CanRead(user.Admin, role) {
		applog.Debug(ctx, "technical sheet access denied", "id", sheetID, "user", user.ID)
		http.NotFound(w, r)
		return nil, "", false
	}
	if manage && !auth.CanManage(user.Admin, role) {
		writeJSONError(w, http.StatusForbidden, "editor access required")
		return nil, "", false
	}
	return &sheet, role, true
}

func projectTechnicalSheetFor(ctx context.Context, user *models.User, sheet *models.TechnicalSheet) (technicalSheetResponse, error) {
	role, err := auth.RoleFor(ctx, database, user.ID, sheet.RestaurantID)
	if err != nil {
		return technicalSheetResponse{}, err
	}
	return projectTechnicalSheet(ctx, sheet, costing.Actor{Admin: user.Admin, Role: role})
}

func projectTechnicalSheet(ctx context.Context, sheet *models.TechnicalSheet, actor costing.Actor) (technicalSheetResponse, error) {
	var restaurant models.Restaurant
	if err := database.WithContext(ctx).First(&restaurant, sheet.RestaurantID).Error; err != nil {
		return technicalSheetResponse{}, err
	}

	resolver := costing.NewResolver(database)
	cost, err := resolver.SheetCost(ctx, sheet.ID)
	if err != nil {
		return technicalSheetResponse{}, err
	}
	weight, err := resolver.SheetWeight(ctx, sheet.ID)
	if err != nil {
		return technicalSheetResponse{}, err
	}

	response := technicalSheetResponse{
		ID:           sheet.ID,
		RestaurantID: sheet.RestaurantID,
		Name:         sheet.Name,
		Yield:        yieldLabel(sheet.Yield, weight),
		Preparation:  sheet.Preparation,
		ImagePath:    sheet.ImagePath,
		FinalWeight:  costing.Round2(weight),
		Items:        projectSheetLineItems(sheet.Items),
		CreatedAt:    sheet.CreatedAt,
		UpdatedAt:    sheet.UpdatedAt,
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

func respondWithTechnicalSheet(w http.ResponseWriter, r *http.Request, user *models.User, sheetID uint, status int) {
	ctx := r.Context()
	var sheet models.TechnicalSheet
	if err := database.WithContext(ctx).
		Preload("Items.Ingredient").
		Preload("Items.Recipe").
		First(&sheet, sheetID).Error; err != nil {
		applog.Error(ctx, "failed to reload technical sheet", "error", err, "id", sheetID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load technical sheet")
		return
	}
	projected, err := projectTechnicalSheetFor(ctx, user, &sheet)
	if err != nil {
		applog.Error(ctx, "failed to project technical sheet", "error", err, "id", sheetID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load technical sheet")
		return
	}
	writeJSON(w, status, projected)
}
