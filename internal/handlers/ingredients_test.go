package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"fichapro/internal/costing"
	"fichapro/models"
)

func TestIngredientCreateRequiresEditorRole(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	restaurant := seedRestaurant(t, db, "Cantina", 1.0)
	ordinary := seedUser(t, db, "ordinary@example.com", false)
	seedRole(t, db, ordinary.ID, restaurant.ID, models.RoleOrdinary)

	payload := ingredientRequest{RestaurantID: restaurant.ID, Name: "Flour", ReferenceWeight: 1000, Price: 8}
	req := authenticatedRequest(t, sm, ordinary, http.MethodPost, "/api/ingredients", payload)
	rr := httptest.NewRecorder()
	IngredientResource(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for ordinary role, got %d", rr.Code)
	}

	editor := seedUser(t, db, "editor@example.com", false)
	seedRole(t, db, editor.ID, restaurant.ID, models.RoleEditor)

	req = authenticatedRequest(t, sm, editor, http.MethodPost, "/api/ingredients", payload)
	rr = httptest.NewRecorder()
	IngredientResource(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 for editor role, got %d: %s", rr.Code, rr.Body.String())
	}

	var count int64
	if err := db.Model(&models.ActivityRecord{}).Where("kind = ? AND action = ?", "ingredient", "created").Count(&count).Error; err != nil || count != 1 {
		t.Fatalf("expected one activity record, count=%d err=%v", count, err)
	}
}

func TestIngredientListScopedToLinkedRestaurants(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	mine := seedRestaurant(t, db, "Mine", 1.0)
	other := seedRestaurant(t, db, "Other", 1.0)
	seedIngredient(t, db, mine.ID, "Flour", 1000, 8)
	seedIngredient(t, db, other.ID, "Sugar", 1000, 6)

	user := seedUser(t, db, "user@example.com", false)
	seedRole(t, db, user.ID, mine.ID, models.RoleOrdinary)

	req := authenticatedRequest(t, sm, user, http.MethodGet, "/api/ingredients", nil)
	rr := httptest.NewRecorder()
	IngredientResource(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var ingredients []models.Ingredient
	decodeResponse(t, rr, &ingredients)
	if len(ingredients) != 1 || ingredients[0].Name != "Flour" {
		t.Fatalf("expected only the linked restaurant's ingredient, got %+v", ingredients)
	}

	admin := seedUser(t, db, "admin@example.com", true)
	req = authenticatedRequest(t, sm, admin, http.MethodGet, "/api/ingredients", nil)
	rr = httptest.NewRecorder()
	IngredientResource(rr, req)
	decodeResponse(t, rr, &ingredients)
	if len(ingredients) != 2 {
		t.Fatalf("expected admin to see both ingredients, got %d", len(ingredients))
	}
}

func TestIngredientUpdateRepropagatesDependents(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	restaurant := seedRestaurant(t, db, "Cantina", 1.0)
	master := seedUser(t, db, "master@example.com", false)
	seedRole(t, db, master.ID, restaurant.ID, models.RoleMaster)

	ingredient := seedIngredient(t, db, restaurant.ID, "Tomato", 1000, 10)
	recipe := seedRecipe(t, db, restaurant.ID, "Sauce")
	ingredientID := ingredient.ID
	if err := db.Create(&models.RecipeItem{
		RecipeID: recipe.ID, IngredientID: &ingredientID,
		Quantity: 500, IC: 100, IPC: 100, ApplyAdjustment: true,
	}).Error; err != nil {
		t.Fatalf("failed to seed recipe item: %v", err)
	}
	if err := costing.RecalculateRecipe(context.Background(), db, recipe.ID); err != nil {
		t.Fatalf("failed to propagate: %v", err)
	}

	payload := ingredientRequest{Name: "Tomato", ReferenceWeight: 1000, Price: 20}
	req := authenticatedRequest(t, sm, master, http.MethodPut, "/api/ingredients/"+itoa(ingredientID), payload)
	rr := httptest.NewRecorder()
	IngredientResource(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var updated models.Recipe
	if err := db.First(&updated, recipe.ID).Error; err != nil {
		t.Fatalf("failed to reload recipe: %v", err)
	}
	if updated.TotalCost == nil || *updated.TotalCost != 10.00 {
		t.Fatalf("expected persisted cost 10.00 after price doubling, got %+v", updated.TotalCost)
	}
}

func TestIngredientDeleteRemovesLinesAndRepropagates(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	restaurant := seedRestaurant(t, db, "Cantina", 1.0)
	master := seedUser(t, db, "master@example.com", false)
	seedRole(t, db, master.ID, restaurant.ID, models.RoleMaster)

	ingredient := seedIngredient(t, db, restaurant.ID, "Tomato", 1000, 10)
	recipe := seedRecipe(t, db, restaurant.ID, "Sauce")
	ingredientID := ingredient.ID
	if err := db.Create(&models.RecipeItem{
		RecipeID: recipe.ID, IngredientID: &ingredientID,
		Quantity: 500, IC: 100, IPC: 100, ApplyAdjustment: true,
	}).Error; err != nil {
		t.Fatalf("failed to seed recipe item: %v", err)
	}
	if err := costing.RecalculateRecipe(context.Background(), db, recipe.ID); err != nil {
		t.Fatalf("failed to propagate: %v", err)
	}

	req := authenticatedRequest(t, sm, master, http.MethodDelete, "/api/ingredients/"+itoa(ingredientID), nil)
	rr := httptest.NewRecorder()
	IngredientResource(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}

	var itemCount int64
	if err := db.Model(&models.RecipeItem{}).Where("ingredient_id = ?", ingredientID).Count(&itemCount).Error; err != nil || itemCount != 0 {
		t.Fatalf("expected referencing lines removed, count=%d err=%v", itemCount, err)
	}

	var updated models.Recipe
	if err := db.First(&updated, recipe.ID).Error; err != nil {
		t.Fatalf("failed to reload recipe: %v", err)
	}
	if updated.TotalCost == nil || *updated.TotalCost != 0 {
		t.Fatalf("expected recipe cost 0 after ingredient delete, got %+v", updated.TotalCost)
	}
}

func TestIngredientShowHiddenFromUnlinkedUser(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	restaurant := seedRestaurant(t, db, "Cantina", 1.0)
	ingredient := seedIngredient(t, db, restaurant.ID, "Flour", 1000, 8)
	outsider := seedUser(t, db, "outsider@example.com", false)

	req := authenticatedRequest(t, sm, outsider, http.MethodGet, "/api/ingredients/"+itoa(ingredient.ID), nil)
	rr := httptest.NewRecorder()
	IngredientResource(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unlinked user, got %d", rr.Code)
	}
}
